package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/pkg/log"
)

const (
	DevicesFile    = "devices.json"
	DeploymentFile = "deployment_monitoring.json"
)

var _ core.DeviceRegistry = (*Registry)(nil)

// Registry is a read-through snapshot of devices.json and the deployment
// document. Readers always see a complete snapshot; Refresh swaps it.
type Registry struct {
	docs   *Documents
	logger log.Logger

	mu         sync.RWMutex
	devices    []model.Device
	deployment model.Deployment
	loaded     atomic.Bool

	// debounce delays a reload after file events.
	debounce time.Duration
}

// NewRegistry returns an empty registry. Call Refresh to load it.
func NewRegistry(docs *Documents) *Registry {
	return &Registry{
		docs:     docs,
		logger:   log.WithName("registry"),
		debounce: 200 * time.Millisecond,
	}
}

// Refresh reloads both documents and replaces the snapshot.
func (r *Registry) Refresh(ctx context.Context) error {
	var raw json.RawMessage
	if _, err := r.docs.Read(DevicesFile, &raw); err != nil {
		return err
	}
	devices, err := decodeDevices(raw)
	if err != nil {
		return fmt.Errorf("decode %s: %w", DevicesFile, err)
	}

	var deployment model.Deployment
	if _, err := r.docs.Read(DeploymentFile, &deployment); err != nil {
		return err
	}

	r.mu.Lock()
	r.devices = devices
	r.deployment = deployment
	r.mu.Unlock()
	r.loaded.Store(true)

	r.logger.Debug("Device registry refreshed", "devices", len(devices), "deploymentDevices", len(deployment.Devices))
	return nil
}

// Ready reports whether a snapshot has been loaded.
func (r *Registry) Ready() bool {
	return r.loaded.Load()
}

// FindDevice looks in devices.json first, then in the deployment devices.
func (r *Registry) FindDevice(id string) (*model.Device, bool) {
	if id == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, list := range [][]model.Device{r.devices, r.deployment.Devices} {
		for i := range list {
			if list[i].ID == id {
				d := cloneDevice(list[i])
				return &d, true
			}
		}
	}
	return nil, false
}

// FindService returns the named service of a device.
func (r *Registry) FindService(device *model.Device, name string) (*model.Service, bool) {
	if device == nil {
		return nil, false
	}
	return device.FindService(name)
}

// Devices returns a copy of devices.json.
func (r *Registry) Devices() []model.Device {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneDevices(r.devices)
}

// Deployment returns a copy of the deployment document.
func (r *Registry) Deployment() *model.Deployment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return &model.Deployment{
		Devices:       cloneDevices(r.deployment.Devices),
		Locations:     slices.Clone(r.deployment.Locations),
		NetworkConfig: r.deployment.NetworkConfig,
	}
}

// Start watches the data directory and refreshes the snapshot when one of
// the registry documents changes. It returns when ctx is done.
func (r *Registry) Start(ctx context.Context) error {
	if err := os.MkdirAll(r.docs.Dir(), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create registry watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.docs.Dir()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", r.docs.Dir(), err)
	}
	r.logger.Info("Watching device registry", "dir", r.docs.Dir())

	var pending <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if r.watched(evt) {
				pending = time.After(r.debounce)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Error(err, "Registry watcher error")

		case <-pending:
			pending = nil
			if err := r.Refresh(ctx); err != nil {
				r.logger.Error(err, "Failed to reload device registry")
				continue
			}
			r.logger.Info("Device registry reloaded")
		}
	}
}

func (r *Registry) watched(evt fsnotify.Event) bool {
	if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) && !evt.Has(fsnotify.Remove) {
		return false
	}
	switch filepath.Base(evt.Name) {
	case DevicesFile, DeploymentFile:
		return true
	}
	return false
}

// decodeDevices accepts a bare list or an object with a devices list.
func decodeDevices(raw json.RawMessage) ([]model.Device, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var devices []model.Device
		err := json.Unmarshal(trimmed, &devices)
		return devices, err
	}
	var wrapped struct {
		Devices []model.Device `json:"devices"`
	}
	err := json.Unmarshal(trimmed, &wrapped)
	return wrapped.Devices, err
}

func cloneDevice(d model.Device) model.Device {
	d.Services = slices.Clone(d.Services)
	d.Capabilities = slices.Clone(d.Capabilities)
	if d.Battery != nil {
		b := *d.Battery
		d.Battery = &b
	}
	return d
}

func cloneDevices(in []model.Device) []model.Device {
	if in == nil {
		return nil
	}
	out := make([]model.Device, len(in))
	for i := range in {
		out[i] = cloneDevice(in[i])
	}
	return out
}
