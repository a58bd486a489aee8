package core

import (
	"context"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

// DeviceRegistry resolves devices from an in-memory snapshot.
// Lookups never fail; a missing device is reported with ok == false.
type DeviceRegistry interface {
	// FindDevice returns a copy of the device with the given id.
	FindDevice(id string) (*model.Device, bool)

	// Devices returns a copy of devices.json.
	Devices() []model.Device

	// Deployment returns a copy of the deployment document.
	Deployment() *model.Deployment

	// Refresh reloads the snapshot from storage.
	Refresh(ctx context.Context) error
}

// HistoryStore persists execution records, keeping the most recent ones.
type HistoryStore interface {
	Append(ctx context.Context, rec *model.ExecutionRecord) error

	// List returns stored records, newest first.
	List(ctx context.Context) ([]*model.ExecutionRecord, error)
}

// HistoryRecorder accepts finished records without blocking the caller.
type HistoryRecorder interface {
	Record(rec *model.ExecutionRecord)
}

// PlanRepository serves stored orchestration plans.
type PlanRepository interface {
	ListPlans(ctx context.Context) ([]model.Plan, error)
	GetPlan(ctx context.Context, id string) (*model.Plan, error)
}

// PolicyRepository serves security and access policies.
type PolicyRepository interface {
	SecurityPolicies(ctx context.Context) (*model.SecurityPolicies, error)
	AccessPolicies(ctx context.Context) (*model.AccessPolicies, error)

	// UpdateAccessPolicies applies fn to the stored policies and persists the result.
	UpdateAccessPolicies(ctx context.Context, fn func(*model.AccessPolicies) error) error
}

// FlowRepository stores flow plans and flow install history.
type FlowRepository interface {
	SaveFlowPlan(ctx context.Context, plan *model.FlowPlan) error
	GetFlowPlan(ctx context.Context, id string) (*model.FlowPlan, error)
	ListFlowPlans(ctx context.Context) ([]model.FlowPlan, error)
	AppendFlowExecution(ctx context.Context, exec *model.FlowExecution) error
	ListFlowExecutions(ctx context.Context) ([]model.FlowExecution, error)
}

// FirmwareCatalog serves the OTA server configuration.
type FirmwareCatalog interface {
	OTAConfig(ctx context.Context) (*model.OTAServerConfig, error)
}

// Repository groups the persistence ports used by the services.
type Repository interface {
	Registry() DeviceRegistry
	Plans() PlanRepository
	Policies() PolicyRepository
	Flows() FlowRepository
	Firmware() FirmwareCatalog
}
