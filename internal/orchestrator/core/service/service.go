package service

import (
	"context"
	"sync"
	"time"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/pkg/log"
)

// Config tunes plan execution and firmware delivery.
type Config struct {
	// Concurrency caps the steps running at once in parallel mode.
	Concurrency int
	// PlanTimeout bounds a whole plan run. Zero disables the limit.
	PlanTimeout time.Duration
	// DevicePort is used when neither the step nor the device names a port.
	DevicePort int
	// OTADevicePort receives pushed firmware updates.
	OTADevicePort int
	// URLExpiry is the lifetime of presigned firmware links.
	URLExpiry time.Duration
	// Broker is the MQTT broker address written into generated device configurations.
	Broker string
}

// Ports are the adapters the service drives. Publisher, Storage and Controller may be nil.
type Ports struct {
	Transport  core.DeviceTransport
	Publisher  core.CommandPublisher
	Storage    core.FirmwareStorage
	Verifier   core.SignatureVerifier
	Controller core.FlowController
	History    core.HistoryStore
	// Recorder queues finished records. When nil records go straight to History.
	Recorder core.HistoryRecorder
}

// Service implements the orchestration use cases on top of the repository and
// the device, broker, firmware and SDN controller adapters.
type Service struct {
	registry core.DeviceRegistry
	plans    core.PlanRepository
	policies core.PolicyRepository
	flows    core.FlowRepository
	firmware core.FirmwareCatalog

	transport  core.DeviceTransport
	publisher  core.CommandPublisher
	storage    core.FirmwareStorage
	verifier   core.SignatureVerifier
	controller core.FlowController
	history    core.HistoryStore
	recorder   core.HistoryRecorder

	// running holds header copies of executions that are not finalized yet.
	running sync.Map

	cfg    Config
	now    func() time.Time
	logger log.Logger
}

// New creates the core service.
func New(repo core.Repository, ports Ports, cfg Config) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.DevicePort <= 0 {
		cfg.DevicePort = 80
	}
	if cfg.OTADevicePort <= 0 {
		cfg.OTADevicePort = 80
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = time.Hour
	}
	if cfg.Broker == "" {
		cfg.Broker = "mqtt://127.0.0.1:1883"
	}

	s := &Service{
		registry:   repo.Registry(),
		plans:      repo.Plans(),
		policies:   repo.Policies(),
		flows:      repo.Flows(),
		firmware:   repo.Firmware(),
		transport:  ports.Transport,
		publisher:  ports.Publisher,
		storage:    ports.Storage,
		verifier:   ports.Verifier,
		controller: ports.Controller,
		history:    ports.History,
		recorder:   ports.Recorder,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     log.WithName("orchestrator"),
	}
	if s.recorder == nil {
		s.recorder = directRecorder{store: ports.History, logger: s.logger}
	}
	if s.verifier == nil {
		s.verifier = denyAll{}
	}
	return s
}

// Registry exposes the device registry for readiness checks.
func (s *Service) Registry() core.DeviceRegistry {
	return s.registry
}

// knownDevices merges devices.json with the deployment devices it does not list.
func (s *Service) knownDevices() []model.Device {
	devices := s.registry.Devices()
	seen := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		seen[d.ID] = struct{}{}
	}
	if dep := s.registry.Deployment(); dep != nil {
		for _, d := range dep.Devices {
			if _, ok := seen[d.ID]; !ok {
				seen[d.ID] = struct{}{}
				devices = append(devices, d)
			}
		}
	}
	return devices
}

// denyAll rejects every firmware image.
type denyAll struct{}

func (denyAll) Verify(string, string) bool { return false }

// directRecorder appends synchronously and swallows store errors.
type directRecorder struct {
	store  core.HistoryStore
	logger log.Logger
}

func (r directRecorder) Record(rec *model.ExecutionRecord) {
	if r.store == nil {
		return
	}
	if err := r.store.Append(context.Background(), rec); err != nil {
		r.logger.Error(err, "Failed to save execution history", "execution", rec.ExecutionID)
	}
}
