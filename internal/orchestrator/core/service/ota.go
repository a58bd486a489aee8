package service

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blang/semver/v4"
	"github.com/google/uuid"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/internal/pkg/metrics"
)

// Overall OTA statuses.
const (
	OTAStatusCompleted      = "completed"
	OTAStatusPending        = "pending"
	OTAStatusPartialFailure = "partial_failure"
	OTAStatusFailed         = "failed"
)

const otaPushTimeout = 30 * time.Second

// installSteps are reported for every device that accepted a pushed update.
var installSteps = []string{
	"POST /ota-update request",
	"Device verifies firmware signature",
	"Write firmware to flash memory",
	"Set bootloader update flag",
	"Device reboots to apply update",
	"Verify firmware version after reboot",
}

// OTAPushRequest sends one firmware image to several devices.
type OTAPushRequest struct {
	UpdateID      string
	TargetDevices []string
	Firmware      model.Firmware
}

// OTAPullRequest is a device asking whether newer firmware exists.
type OTAPullRequest struct {
	UpdateID       string
	DeviceID       string
	CurrentVersion string
}

// OTADeviceStatus is the firmware state of one device.
type OTADeviceStatus struct {
	DeviceID        string    `json:"device_id"`
	CurrentVersion  string    `json:"current_version"`
	LatestVersion   string    `json:"latest_version"`
	OTAEnabled      bool      `json:"ota_enabled"`
	UpdateAvailable bool      `json:"update_available"`
	LastCheck       time.Time `json:"last_check"`
}

// PushFirmware delivers firmware to every target device. The signature is
// verified before any device is contacted; a failed check rejects the update
// for all targets.
func (s *Service) PushFirmware(ctx context.Context, req OTAPushRequest) (*model.OTARecord, error) {
	if len(req.TargetDevices) == 0 {
		return nil, core.MissingField("target_devices")
	}
	if req.Firmware.Version == "" {
		return nil, core.MissingField("firmware.version")
	}

	rec := s.newOTARecord(req.UpdateID, model.OTAPush, req.Firmware.Version)
	logger := s.logger.WithValues("update", rec.UpdateID, "version", req.Firmware.Version)

	signatureValid := s.verifier.Verify(req.Firmware.Reference, req.Firmware.Signature)
	if !signatureValid {
		logger.Info("Firmware signature verification failed, update rejected")
	}

	for _, id := range req.TargetDevices {
		update := model.DeviceUpdate{DeviceID: id, TargetVersion: req.Firmware.Version}

		device, ok := s.registry.FindDevice(id)
		switch {
		case !ok:
			update.Status = model.OTAFailed
			update.Message = "Device not found"
		case !signatureValid:
			update.Status = model.OTARejected
			update.Message = "Firmware signature verification failed"
		case device.Status != "active" && device.Status != "idle":
			update.Status = model.OTAPending
			update.Message = fmt.Sprintf("Device status is %s, pending until device comes online", device.Status)
		default:
			update = s.deliverFirmware(ctx, device, req.Firmware)
		}

		metrics.OTAOutcomes.WithLabelValues(string(model.OTAPush), string(update.Status)).Inc()
		rec.Devices = append(rec.Devices, update)
	}

	rec.Status = pushStatus(rec.Devices)
	logger.Info("Firmware push finished", "status", rec.Status, "devices", len(rec.Devices))
	return rec, nil
}

// deliverFirmware POSTs the update to the device's /ota-update endpoint.
func (s *Service) deliverFirmware(ctx context.Context, device *model.Device, fw model.Firmware) model.DeviceUpdate {
	update := model.DeviceUpdate{
		DeviceID:       device.ID,
		CurrentVersion: firmwareVersion(device),
		TargetVersion:  fw.Version,
	}
	if device.IP == "" {
		update.Status = model.OTAFailed
		update.Message = fmt.Sprintf("device %s has no ip address", device.ID)
		return update
	}

	downloadURL, err := s.downloadURL(ctx, fw.Reference)
	if err != nil {
		update.Status = model.OTAFailed
		update.Message = err.Error()
		return update
	}
	update.DownloadURL = downloadURL

	resp, err := s.transport.Do(ctx, &core.DeviceRequest{
		Method: http.MethodPost,
		URL:    fmt.Sprintf("http://%s/ota-update", net.JoinHostPort(device.IP, strconv.Itoa(s.cfg.OTADevicePort))),
		Body: map[string]any{
			"version":      fw.Version,
			"download_url": downloadURL,
			"signature":    fw.Signature,
		},
		Timeout: otaPushTimeout,
	})
	if err != nil {
		update.Status = model.OTAFailed
		update.Message = err.Error()
		return update
	}
	update.ResponseCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		update.Status = model.OTAFailed
		update.Message = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(resp.Text))
		return update
	}

	update.Status = model.OTACompleted
	update.Steps = installSteps
	return update
}

// PullFirmware answers a device update check against the firmware catalog.
func (s *Service) PullFirmware(ctx context.Context, req OTAPullRequest) (*model.OTARecord, error) {
	if req.DeviceID == "" {
		return nil, core.MissingField("device_id")
	}

	catalog, err := s.firmware.OTAConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load firmware catalog: %w", err)
	}

	current := req.CurrentVersion
	if current == "" {
		current = model.DefaultFirmwareVersion
		if device, ok := s.registry.FindDevice(req.DeviceID); ok {
			current = firmwareVersion(device)
		}
	}

	rec := s.newOTARecord(req.UpdateID, model.OTAPull, catalog.LatestVersion)
	update := model.DeviceUpdate{DeviceID: req.DeviceID, CurrentVersion: current}

	switch {
	case !IsNewerVersion(catalog.LatestVersion, current):
		update.Status = model.OTAUpToDate
		rec.Status = OTAStatusCompleted
	case !s.verifier.Verify(catalog.FirmwareKey, catalog.Signature):
		update.Status = model.OTARejected
		update.TargetVersion = catalog.LatestVersion
		update.Message = "Firmware signature verification failed"
		rec.Status = OTAStatusFailed
	default:
		update.TargetVersion = catalog.LatestVersion
		url, err := s.downloadURL(ctx, catalog.FirmwareKey)
		if err != nil {
			update.Status = model.OTAFailed
			update.Message = err.Error()
			rec.Status = OTAStatusFailed
			break
		}
		update.Status = model.OTACompleted
		update.DownloadURL = url
		rec.Status = OTAStatusCompleted
	}

	metrics.OTAOutcomes.WithLabelValues(string(model.OTAPull), string(update.Status)).Inc()
	rec.Devices = append(rec.Devices, update)
	return rec, nil
}

// OTAStatus reports the firmware version of every known device, or of one.
func (s *Service) OTAStatus(ctx context.Context, deviceID string) ([]OTADeviceStatus, error) {
	catalog, err := s.firmware.OTAConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load firmware catalog: %w", err)
	}

	now := s.now()
	out := []OTADeviceStatus{}
	for _, d := range s.knownDevices() {
		if deviceID != "" && d.ID != deviceID {
			continue
		}
		current := firmwareVersion(&d)
		out = append(out, OTADeviceStatus{
			DeviceID:        d.ID,
			CurrentVersion:  current,
			LatestVersion:   catalog.LatestVersion,
			OTAEnabled:      true,
			UpdateAvailable: IsNewerVersion(catalog.LatestVersion, current),
			LastCheck:       now,
		})
	}
	if deviceID != "" && len(out) == 0 {
		return nil, core.NotFound("device", deviceID)
	}
	return out, nil
}

// downloadURL presigns object keys when a firmware store is configured. Plain
// URLs are handed out unchanged.
func (s *Service) downloadURL(ctx context.Context, ref string) (string, error) {
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") || s.storage == nil {
		return ref, nil
	}
	url, err := s.storage.GeneratePresignedURL(ctx, ref, s.cfg.URLExpiry)
	if err != nil {
		return "", fmt.Errorf("presign firmware %s: %w", ref, err)
	}
	return url, nil
}

func (s *Service) newOTARecord(id string, mode model.OTAMode, version string) *model.OTARecord {
	if id == "" {
		id = "ota-" + uuid.NewString()
	}
	return &model.OTARecord{
		UpdateID:        id,
		Mode:            mode,
		FirmwareVersion: version,
		Status:          OTAStatusPending,
		Devices:         []model.DeviceUpdate{},
		Timestamp:       s.now(),
	}
}

// pushStatus is partial_failure when any device failed or was rejected,
// completed when all completed and pending otherwise.
func pushStatus(updates []model.DeviceUpdate) string {
	completed := 0
	for _, u := range updates {
		switch u.Status {
		case model.OTAFailed, model.OTARejected:
			return OTAStatusPartialFailure
		case model.OTACompleted:
			completed++
		}
	}
	if completed == len(updates) {
		return OTAStatusCompleted
	}
	return OTAStatusPending
}

// IsNewerVersion compares semantic versions, tolerating a leading "v" and
// missing minor or patch parts. Unparseable versions are never newer.
func IsNewerVersion(candidate, current string) bool {
	c, err := semver.ParseTolerant(candidate)
	if err != nil {
		return false
	}
	cur, err := semver.ParseTolerant(current)
	if err != nil {
		return false
	}
	return c.GT(cur)
}

func firmwareVersion(d *model.Device) string {
	if d.FirmwareVersion == "" {
		return model.DefaultFirmwareVersion
	}
	return d.FirmwareVersion
}
