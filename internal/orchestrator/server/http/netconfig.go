package http

import (
	"context"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/service"
)

func (h *handler) networkConfigurationTask() *task {
	return &task{
		name:          "network-configuration",
		defaultAction: "configure_from_intent",
		actions: map[string]action{
			"configure_from_intent": bind(h.configureFromIntent),
			"ota_update":            bind(h.otaUpdate),
			"ota_push":              bind(h.otaPush),
			"ota_pull":              bind(h.otaPull),
			"ota_status":            bind(h.otaStatus),
			"configure_network":     bind(h.configureNetwork),
			"apply_configuration":   bind(h.applyConfiguration),
			"deploy_configuration":  bind(h.deployConfiguration),
		},
	}
}

type intentRequest struct {
	UserIntent string `json:"user_intent"`
	Intent     string `json:"intent"`
}

func (r *intentRequest) normalize() {
	r.UserIntent = firstNonEmpty(r.UserIntent, r.Intent)
}

func (h *handler) configureFromIntent(ctx context.Context, req *intentRequest) (any, error) {
	return h.svc.ConfigureFromIntent(ctx, req.UserIntent)
}

const (
	updatePush = "push"
	updatePull = "pull"
)

type otaRequest struct {
	// UpdateType selects push or pull for ota_update.
	UpdateType     string         `json:"update_type"`
	UpdateID       string         `json:"update_id"`
	TargetDevices  []string       `json:"target_devices"`
	Firmware       model.Firmware `json:"firmware"`
	DeviceID       string         `json:"device_id"`
	CurrentVersion string         `json:"current_version"`
}

func (h *handler) otaUpdate(ctx context.Context, req *otaRequest) (any, error) {
	switch req.UpdateType {
	case updatePush, "":
		return h.otaPush(ctx, req)
	case updatePull:
		return h.otaPull(ctx, req)
	default:
		return nil, core.InvalidField("update_type", "must be push or pull")
	}
}

func (h *handler) otaPush(ctx context.Context, req *otaRequest) (any, error) {
	return h.svc.PushFirmware(ctx, service.OTAPushRequest{
		UpdateID:      req.UpdateID,
		TargetDevices: req.TargetDevices,
		Firmware:      req.Firmware,
	})
}

func (h *handler) otaPull(ctx context.Context, req *otaRequest) (any, error) {
	return h.svc.PullFirmware(ctx, service.OTAPullRequest{
		UpdateID:       req.UpdateID,
		DeviceID:       req.DeviceID,
		CurrentVersion: req.CurrentVersion,
	})
}

func (h *handler) otaStatus(ctx context.Context, req *otaRequest) (any, error) {
	devices, err := h.svc.OTAStatus(ctx, req.DeviceID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"devices": devices, "count": len(devices)}, nil
}

// networkChangeRequest accepts the change list as parameters.configuration_steps,
// parameters.changes or a top level changes field.
type networkChangeRequest struct {
	Changes    []service.Change `json:"changes"`
	Parameters struct {
		ConfigurationType  string           `json:"configuration_type"`
		Description        string           `json:"description"`
		TargetApplication  string           `json:"target_application"`
		Priority           string           `json:"priority"`
		ConfigurationSteps []service.Change `json:"configuration_steps"`
		Changes            []service.Change `json:"changes"`
	} `json:"parameters"`
}

func (r *networkChangeRequest) normalize() {
	switch {
	case r.Parameters.ConfigurationSteps != nil:
		r.Changes = r.Parameters.ConfigurationSteps
	case r.Parameters.Changes != nil:
		r.Changes = r.Parameters.Changes
	}
}

func (h *handler) configureNetwork(_ context.Context, req *networkChangeRequest) (any, error) {
	p := req.Parameters
	return h.svc.ConfigureNetwork(service.NetworkChangeRequest{
		ConfigurationType: p.ConfigurationType,
		Description:       p.Description,
		TargetApplication: p.TargetApplication,
		Priority:          p.Priority,
		Changes:           req.Changes,
	}), nil
}

type applyRequest struct {
	Parameters service.ApplyConfigurationRequest `json:"parameters"`
}

func (h *handler) applyConfiguration(_ context.Context, req *applyRequest) (any, error) {
	return h.svc.ApplyConfiguration(req.Parameters), nil
}

type deployRequest struct {
	Parameters service.DeployConfigurationRequest `json:"parameters"`
}

func (h *handler) deployConfiguration(_ context.Context, req *deployRequest) (any, error) {
	return h.svc.DeployConfiguration(req.Parameters), nil
}
