package http

import (
	"context"
	"time"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/service"
)

func (h *handler) deviceOrchestrationTask() *task {
	return &task{
		name:          "device-orchestration",
		defaultAction: "execute",
		actions: map[string]action{
			"query_devices":  bind(h.queryDevices),
			"generate_plan":  bind(h.generatePlan),
			"analyze":        bind(h.analyzePlan),
			"execute":        bind(h.executeOrchestration),
			"execute_intent": bind(h.executeIntent),
			"list_plans":     bind(h.listPlans),
		},
	}
}

type orchestrationRequest struct {
	Intent     string `json:"intent"`
	PlanID     string `json:"plan_id"`
	Parameters struct {
		Filters service.DeviceFilter `json:"filters"`
		Fields  []string             `json:"fields"`
	} `json:"parameters"`
}

func (h *handler) queryDevices(_ context.Context, req *orchestrationRequest) (any, error) {
	devices := h.svc.QueryDevices(req.Parameters.Filters, req.Parameters.Fields)
	return map[string]any{
		"filters":          req.Parameters.Filters,
		"matching_devices": len(devices),
		"devices":          devices,
	}, nil
}

func (h *handler) generatePlan(ctx context.Context, req *orchestrationRequest) (any, error) {
	if req.Intent == "" {
		return nil, core.MissingField("intent")
	}
	plan, err := h.svc.PlanFromIntent(ctx, req.Intent)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":                 "ready_for_execution",
		"plan":                   plan,
		"analysis":               service.AnalyzePlan(plan),
		"recommendation_options": service.AlgorithmOptions(),
	}, nil
}

func (h *handler) analyzePlan(ctx context.Context, req *orchestrationRequest) (any, error) {
	analysis, err := h.svc.AnalyzeStoredPlan(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"plan_id": req.PlanID, "analysis": analysis}, nil
}

func (h *handler) executeOrchestration(ctx context.Context, req *orchestrationRequest) (any, error) {
	_, rec, err := h.svc.ExecuteStoredPlan(ctx, req.PlanID, req.Intent)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (h *handler) executeIntent(ctx context.Context, req *orchestrationRequest) (any, error) {
	res, err := h.svc.ExecuteIntent(ctx, req.Intent)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"user_intent":            req.Intent,
		"generated_plan":         res.Plan,
		"plan_analysis":          res.Analysis,
		"recommendation_options": service.AlgorithmOptions(),
		"execution":              res.Execution,
	}, nil
}

func (h *handler) listPlans(ctx context.Context, _ *orchestrationRequest) (any, error) {
	plans, err := h.svc.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"total_plans": len(plans), "plans": plans}, nil
}

func (h *handler) deploymentMonitoringTask() *task {
	return &task{
		name:          "deployment-monitoring",
		defaultAction: "status",
		actions: map[string]action{
			"status":           bind(h.deploymentStatus),
			"device_info":      bind(h.deviceInfo),
			"connectivity":     bind(h.connectivity),
			"query_location":   bind(h.queryLocation),
			"query_service":    bind(h.queryService),
			"query_status":     bind(h.queryStatus),
			"query_capability": bind(h.queryCapability),
			"active_devices":   bind(h.activeDevices),
			"refresh":          bind(h.refreshRegistry),
		},
	}
}

type monitoringRequest struct {
	DeviceID    string `json:"device_id"`
	LocationID  string `json:"location_id"`
	ServiceName string `json:"service_name"`
	Status      string `json:"status"`
	Capability  string `json:"capability"`
	Minutes     int    `json:"minutes"`
	// Refresh reloads the registry before answering.
	Refresh bool `json:"refresh"`
}

func (h *handler) deploymentStatus(ctx context.Context, req *monitoringRequest) (any, error) {
	if req.Refresh {
		if _, err := h.svc.RefreshRegistry(ctx); err != nil {
			return nil, err
		}
	}
	return h.svc.DeploymentStatus(), nil
}

func (h *handler) deviceInfo(_ context.Context, req *monitoringRequest) (any, error) {
	d, err := h.svc.DeviceInfo(req.DeviceID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"device": d}, nil
}

func (h *handler) connectivity(_ context.Context, req *monitoringRequest) (any, error) {
	return h.svc.DeviceConnectivity(req.DeviceID)
}

func (h *handler) queryLocation(_ context.Context, req *monitoringRequest) (any, error) {
	devices, err := h.svc.DevicesByLocation(req.LocationID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"location_id": req.LocationID, "devices": devices, "count": len(devices)}, nil
}

func (h *handler) queryService(_ context.Context, req *monitoringRequest) (any, error) {
	devices, err := h.svc.DevicesByService(req.ServiceName)
	if err != nil {
		return nil, err
	}
	return map[string]any{"service_name": req.ServiceName, "devices": devices, "count": len(devices)}, nil
}

func (h *handler) queryStatus(_ context.Context, req *monitoringRequest) (any, error) {
	devices, err := h.svc.DevicesByStatus(req.Status)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": req.Status, "devices": devices, "count": len(devices)}, nil
}

func (h *handler) queryCapability(_ context.Context, req *monitoringRequest) (any, error) {
	if req.LocationID == "" {
		return nil, core.MissingField("location_id")
	}
	devices, err := h.svc.DevicesByCapability(req.LocationID, req.Capability)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"location_id": req.LocationID,
		"capability":  req.Capability,
		"devices":     devices,
		"count":       len(devices),
	}, nil
}

func (h *handler) activeDevices(_ context.Context, req *monitoringRequest) (any, error) {
	devices, err := h.svc.ActiveDevices(req.Minutes)
	if err != nil {
		return nil, err
	}
	minutes := req.Minutes
	if minutes == 0 {
		minutes = int(service.OnlineWindow / time.Minute)
	}
	return map[string]any{"time_window_minutes": minutes, "devices": devices, "count": len(devices)}, nil
}

func (h *handler) refreshRegistry(ctx context.Context, _ *monitoringRequest) (any, error) {
	n, err := h.svc.RefreshRegistry(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "refreshed", "total_devices": n}, nil
}

func (h *handler) accessControlTask() *task {
	return &task{
		name:          "access-control",
		defaultAction: "check",
		aliases:       []string{"op"},
		actions: map[string]action{
			"check": bind(h.checkAccess),
			"grant": bind(h.grantPermission),
		},
	}
}

type accessRequest struct {
	User       string `json:"user"`
	Role       string `json:"role"`
	Permission string `json:"permission"`
}

func (h *handler) checkAccess(ctx context.Context, req *accessRequest) (any, error) {
	return h.svc.CheckAccess(ctx, req.User, req.Permission)
}

func (h *handler) grantPermission(ctx context.Context, req *accessRequest) (any, error) {
	allow, err := h.svc.GrantPermission(ctx, req.Role, req.Permission)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "granted", "role": req.Role, "allow": allow}, nil
}
