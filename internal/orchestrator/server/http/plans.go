package http

import (
	"context"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/service"
)

const statusCheckIntervalMS = 1000

func (h *handler) planExecutionTask() *task {
	stream := bind(h.requestStream)
	return &task{
		name:    "plan-execution",
		aliases: []string{"command", "command_name"},
		actions: map[string]action{
			"execute":             bind(h.executePlan),
			"execute_and_monitor": bind(h.executeAndMonitor),
			"get_history":         bind(h.executionHistory),
			"monitor":             bind(h.monitorExecution),
			"request_stream":      stream,
			"stream_request":      stream,
			"stream":              stream,
		},
	}
}

type executeRequest struct {
	Plan   *model.Plan `json:"plan"`
	PlanID string      `json:"plan_id"`
}

// run executes the inline plan, or the stored plan named by plan_id.
func (h *handler) run(ctx context.Context, req *executeRequest) (*model.Plan, *model.ExecutionRecord, error) {
	if req.Plan != nil {
		return req.Plan, h.svc.ExecutePlan(ctx, service.ExpandAllDevices(req.Plan)), nil
	}
	if req.PlanID == "" {
		return nil, nil, core.MissingField("plan")
	}
	plan, err := h.svc.StoredPlan(ctx, req.PlanID)
	if err != nil {
		return nil, nil, err
	}
	return plan, h.svc.ExecutePlan(ctx, service.ExpandAllDevices(plan)), nil
}

func (h *handler) executePlan(ctx context.Context, req *executeRequest) (any, error) {
	_, rec, err := h.run(ctx, req)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

type monitoring struct {
	StatusCheckIntervalMS int   `json:"status_check_interval_ms"`
	EstimatedCompletionMS int64 `json:"estimated_completion_ms"`
}

type monitoredExecution struct {
	*model.ExecutionRecord
	Monitoring monitoring `json:"monitoring"`
}

func (h *handler) executeAndMonitor(ctx context.Context, req *executeRequest) (any, error) {
	plan, rec, err := h.run(ctx, req)
	if err != nil {
		return nil, err
	}
	return monitoredExecution{
		ExecutionRecord: rec,
		Monitoring: monitoring{
			StatusCheckIntervalMS: statusCheckIntervalMS,
			EstimatedCompletionMS: service.EstimatedCompletionMS(plan),
		},
	}, nil
}

type historyRequest struct {
	PlanID string `json:"plan_id"`
	Limit  int    `json:"limit"`
}

func (h *handler) executionHistory(ctx context.Context, req *historyRequest) (any, error) {
	return h.svc.GetHistory(ctx, req.PlanID, req.Limit)
}

type monitorRequest struct {
	ExecutionID string `json:"execution_id"`
}

func (h *handler) monitorExecution(ctx context.Context, req *monitorRequest) (any, error) {
	return h.svc.Monitor(ctx, req.ExecutionID)
}

type streamRequest struct {
	Target       string `json:"target"`
	TargetID     string `json:"target_id"`
	TargetDevice string `json:"target_device"`
	DeviceID     string `json:"device_id"`
	StreamType   string `json:"stream_type"`
	Resource     string `json:"resource"`
	Parameters   struct {
		DeviceID   string `json:"device_id"`
		StreamType string `json:"stream_type"`
	} `json:"parameters"`
}

func (r *streamRequest) normalize() {
	r.Target = firstNonEmpty(r.Target, r.TargetID, r.TargetDevice, r.DeviceID, r.Parameters.DeviceID)
	r.StreamType = firstNonEmpty(r.StreamType, r.Parameters.StreamType, r.Resource)
}

func (h *handler) requestStream(_ context.Context, req *streamRequest) (any, error) {
	return h.svc.RequestStream(req.Target, req.StreamType)
}

func (h *handler) planValidationTask() *task {
	return &task{
		name:          "plan-validation",
		defaultAction: "validate",
		actions: map[string]action{
			"validate":              bind(h.validatePlan),
			"validate_and_optimize": bind(h.validateAndOptimize),
			"recommendations":       bind(h.planRecommendations),
		},
	}
}

type validationRequest struct {
	Plan        *model.Plan        `json:"plan"`
	UserContext *model.UserContext `json:"user_context"`

	// Algorithm run attached to validate.
	AlgorithmKey    string `json:"algorithm_key"`
	SelectedKey     string `json:"selected_algorithm_key"`
	ExecuteSelected bool   `json:"execute_selected"`
	ActiveSeconds   *int   `json:"t_active_seconds"`
}

func (r *validationRequest) normalize() {
	r.AlgorithmKey = firstNonEmpty(r.SelectedKey, r.AlgorithmKey)
}

func (h *handler) validatePlan(ctx context.Context, req *validationRequest) (any, error) {
	if req.Plan == nil {
		return map[string]any{"status": "ready", "message": "Plan validation service ready"}, nil
	}
	result := h.svc.ValidatePlan(ctx, req.Plan, req.UserContext)

	key := firstNonEmpty(req.AlgorithmKey, service.AlgorithmSequentialCorridor)
	build := service.BuildRequest{
		Key:           key,
		Devices:       req.Plan.Devices,
		ActiveSeconds: service.DefaultActiveSeconds,
		PlanID:        firstNonEmpty(req.Plan.ID, "plan") + "-" + key,
	}
	if req.ActiveSeconds != nil {
		build.ActiveSeconds = *req.ActiveSeconds
	}

	var algorithm any
	run, err := h.svc.ExecuteAlgorithm(ctx, build, !req.ExecuteSelected)
	if err != nil {
		algorithm = map[string]any{"status": "error", "error": err.Error(), "algorithm_key": key}
	} else {
		algorithm = run
	}

	return map[string]any{
		"validation":             result,
		"plan_id":                req.Plan.ID,
		"recommendation_options": service.AlgorithmOptions(),
		"algorithm_execution":    algorithm,
	}, nil
}

func (h *handler) validateAndOptimize(ctx context.Context, req *validationRequest) (any, error) {
	if req.Plan == nil {
		return nil, core.MissingField("plan")
	}
	result := h.svc.ValidatePlan(ctx, req.Plan, req.UserContext)

	var optimized *model.Plan
	if result.Status == model.ValidationWarnings || result.Status == model.ValidationPassed {
		optimized = h.svc.GenerateOptimizedPlan(req.Plan, result)
	}
	return map[string]any{
		"validation":     result,
		"original_plan":  req.Plan,
		"optimized_plan": optimized,
	}, nil
}

func (h *handler) planRecommendations(ctx context.Context, req *validationRequest) (any, error) {
	if req.Plan == nil {
		return nil, core.MissingField("plan")
	}
	result := h.svc.ValidatePlan(ctx, req.Plan, req.UserContext)
	return map[string]any{
		"plan_id":         req.Plan.ID,
		"status":          result.Status,
		"recommendations": result.Recommendations,
		"issues":          result.Issues,
	}, nil
}

func (h *handler) algorithmExecutionTask() *task {
	return &task{
		name:          "algorithm-execution",
		defaultAction: "options",
		actions: map[string]action{
			"options":    bind(h.algorithmOptions),
			"build_plan": bind(h.buildAlgorithmPlan),
			"execute":    bind(h.executeAlgorithm),
		},
	}
}

type algorithmRequest struct {
	AlgorithmKey  string         `json:"algorithm_key"`
	ActiveSeconds *int           `json:"t_active_seconds"`
	Devices       []model.Device `json:"devices"`
	PlanID        string         `json:"plan_id"`
	DryRun        *bool          `json:"dry_run"`
}

func (r *algorithmRequest) build() (service.BuildRequest, error) {
	req := service.BuildRequest{Key: r.AlgorithmKey, Devices: r.Devices, PlanID: r.PlanID}
	if r.ActiveSeconds != nil {
		if *r.ActiveSeconds <= 0 {
			return req, core.InvalidField("t_active_seconds", "must be greater than 0")
		}
		req.ActiveSeconds = *r.ActiveSeconds
	}
	return req, nil
}

func (h *handler) algorithmOptions(context.Context, *algorithmRequest) (any, error) {
	return map[string]any{"status": "success", "options": service.AlgorithmOptions()}, nil
}

func (h *handler) buildAlgorithmPlan(_ context.Context, req *algorithmRequest) (any, error) {
	build, err := req.build()
	if err != nil {
		return nil, err
	}
	plan, err := h.svc.BuildAlgorithmPlan(build)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "success", "algorithm_key": build.Key, "plan": plan}, nil
}

func (h *handler) executeAlgorithm(ctx context.Context, req *algorithmRequest) (any, error) {
	build, err := req.build()
	if err != nil {
		return nil, err
	}
	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}
	return h.svc.ExecuteAlgorithm(ctx, build, dryRun)
}
