package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

// OnlineWindow is how recently a device must have been seen to count as online.
const OnlineWindow = 5 * time.Minute

// DeploymentStatus is the overall picture of the deployment.
type DeploymentStatus struct {
	TotalDevices    int            `json:"total_devices"`
	StatusBreakdown map[string]int `json:"status_breakdown"`
	RecentlyActive  int            `json:"recently_active"`
	Devices         []model.Device `json:"devices"`
	NetworkConfig   map[string]any `json:"network_config"`
}

// Connectivity describes when a device was last heard from.
type Connectivity struct {
	DeviceID      string         `json:"device_id"`
	IP            string         `json:"ip,omitempty"`
	Status        string         `json:"status,omitempty"`
	LastSeen      string         `json:"last_seen,omitempty"`
	TimeSinceSeen string         `json:"time_since_seen,omitempty"`
	IsOnline      bool           `json:"is_online"`
	Location      model.Location `json:"location"`
}

// DeploymentStatus counts devices by status and recent activity.
func (s *Service) DeploymentStatus() *DeploymentStatus {
	devices := s.knownDevices()
	now := s.now()

	st := &DeploymentStatus{
		TotalDevices:    len(devices),
		StatusBreakdown: map[string]int{},
		Devices:         devices,
		NetworkConfig:   map[string]any{},
	}
	for i := range devices {
		status := devices[i].Status
		if status == "" {
			status = "unknown"
		}
		st.StatusBreakdown[status]++
		if devices[i].SeenWithin(now, OnlineWindow) {
			st.RecentlyActive++
		}
	}
	if dep := s.registry.Deployment(); dep != nil && dep.NetworkConfig != nil {
		st.NetworkConfig = dep.NetworkConfig
	}
	return st
}

// DeviceInfo returns the registry record of a device.
func (s *Service) DeviceInfo(deviceID string) (*model.Device, error) {
	if deviceID == "" {
		return nil, core.MissingField("device_id")
	}
	d, ok := s.registry.FindDevice(deviceID)
	if !ok {
		return nil, core.NotFound("device", deviceID)
	}
	return d, nil
}

// DeviceConnectivity reports whether a device was seen within OnlineWindow.
func (s *Service) DeviceConnectivity(deviceID string) (*Connectivity, error) {
	d, err := s.DeviceInfo(deviceID)
	if err != nil {
		return nil, err
	}

	c := &Connectivity{
		DeviceID: d.ID,
		IP:       d.IP,
		Status:   d.Status,
		LastSeen: d.LastSeen,
		Location: d.Location,
	}
	if seen, ok := d.LastSeenTime(); ok {
		since := s.now().Sub(seen)
		c.TimeSinceSeen = since.Round(time.Second).String()
		c.IsOnline = since < OnlineWindow
	}
	return c, nil
}

// DevicesByLocation matches the location against device names and location tags.
func (s *Service) DevicesByLocation(location string) ([]model.Device, error) {
	if location == "" {
		return nil, core.MissingField("location_id")
	}
	return s.filterDevices(func(d *model.Device) bool {
		return locatedIn(d, location)
	}), nil
}

// DevicesByService returns devices exposing a service whose name contains name.
func (s *Service) DevicesByService(name string) ([]model.Device, error) {
	if name == "" {
		return nil, core.MissingField("service_name")
	}
	return s.filterDevices(func(d *model.Device) bool {
		return offers(d, name, false)
	}), nil
}

// DevicesByStatus matches the device status case-insensitively.
func (s *Service) DevicesByStatus(status string) ([]model.Device, error) {
	if status == "" {
		return nil, core.MissingField("status")
	}
	return s.filterDevices(func(d *model.Device) bool {
		return strings.EqualFold(d.Status, status)
	}), nil
}

// DevicesByCapability returns devices in location offering capability, matched
// against service names and service details.
func (s *Service) DevicesByCapability(location, capability string) ([]model.Device, error) {
	if location == "" {
		return nil, core.MissingField("location_id")
	}
	if capability == "" {
		return nil, core.MissingField("capability")
	}
	return s.filterDevices(func(d *model.Device) bool {
		return locatedIn(d, location) && offers(d, capability, true)
	}), nil
}

// ActiveDevices returns devices seen within the last minutes.
func (s *Service) ActiveDevices(minutes int) ([]model.Device, error) {
	if minutes < 0 {
		return nil, core.InvalidField("minutes", "must not be negative")
	}
	if minutes == 0 {
		minutes = int(OnlineWindow / time.Minute)
	}
	now := s.now()
	window := time.Duration(minutes) * time.Minute
	return s.filterDevices(func(d *model.Device) bool {
		return d.SeenWithin(now, window)
	}), nil
}

// RefreshRegistry reloads the device snapshot and returns the device count.
func (s *Service) RefreshRegistry(ctx context.Context) (int, error) {
	if err := s.registry.Refresh(ctx); err != nil {
		return 0, fmt.Errorf("refresh registry: %w", err)
	}
	return len(s.knownDevices()), nil
}

func (s *Service) filterDevices(keep func(*model.Device) bool) []model.Device {
	out := []model.Device{}
	for _, d := range s.knownDevices() {
		if keep(&d) {
			out = append(out, d)
		}
	}
	return out
}

func locatedIn(d *model.Device, location string) bool {
	loc := strings.ToLower(location)
	for _, v := range []string{d.Name, d.Location.Area, d.Location.DetectionArea} {
		if strings.Contains(strings.ToLower(v), loc) {
			return true
		}
	}
	return false
}

func offers(d *model.Device, what string, inDetails bool) bool {
	w := strings.ToLower(what)
	for _, svc := range d.Services {
		if strings.Contains(strings.ToLower(svc.Name), w) {
			return true
		}
		if inDetails && strings.Contains(strings.ToLower(fmt.Sprint(svc.Details)), w) {
			return true
		}
	}
	return false
}
