package http

import (
	"context"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/service"
)

// flowParams is the params object shared by the flow and topology tasks.
type flowParams struct {
	PlanID   string `json:"plan_id"`
	NodeType string `json:"node_type"`
	Type     string `json:"type"`
	NodeID   int    `json:"node_id"`
}

func (h *handler) flowOrchestrationTask() *task {
	return &task{
		name: "flow-orchestration",
		actions: map[string]action{
			"generate_plan":  bind(h.generateFlowPlan),
			"execute_intent": bind(h.executeFlowIntent),
			"list_plans":     bind(h.listFlowPlans),
			"analyze":        bind(h.analyzeFlowPlan),
			"query_nodes":    bind(h.queryNodes),
		},
	}
}

type flowOrchestrationRequest struct {
	Intent string     `json:"intent"`
	Params flowParams `json:"params"`
}

func (r *flowOrchestrationRequest) normalize() {
	r.Params.NodeType = firstNonEmpty(r.Params.NodeType, r.Params.Type)
}

func (h *handler) generateFlowPlan(ctx context.Context, req *flowOrchestrationRequest) (any, error) {
	plan, err := h.svc.GenerateFlowPlan(ctx, req.Intent)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"status":  model.StatusSuccess,
		"plan_id": plan.ID,
		"flows":   plan.Flows,
		"summary": plan.Summary,
	}, nil
}

func (h *handler) executeFlowIntent(ctx context.Context, req *flowOrchestrationRequest) (any, error) {
	return h.svc.ExecuteFlowIntent(ctx, req.Intent)
}

func (h *handler) listFlowPlans(ctx context.Context, _ *flowOrchestrationRequest) (any, error) {
	plans, err := h.svc.ListFlowPlans(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": model.StatusSuccess, "plans": plans, "count": len(plans)}, nil
}

func (h *handler) analyzeFlowPlan(ctx context.Context, req *flowOrchestrationRequest) (any, error) {
	analysis, err := h.svc.AnalyzeFlowPlan(ctx, req.Params.PlanID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": model.StatusSuccess, "plan_id": req.Params.PlanID, "analysis": analysis}, nil
}

func (h *handler) queryNodes(ctx context.Context, req *flowOrchestrationRequest) (any, error) {
	nodes, err := h.svc.QueryNodes(ctx, req.Params.NodeType)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": model.StatusSuccess, "nodes": nodes, "count": len(nodes)}, nil
}

func (h *handler) flowValidationTask() *task {
	return &task{
		name: "flow-validation",
		actions: map[string]action{
			"validate":        bind(h.validateFlows),
			"recommendations": bind(h.flowRecommendations),
		},
	}
}

type flowPlanRequest struct {
	FlowPlan struct {
		PlanID string       `json:"plan_id"`
		Flows  []model.Flow `json:"flows"`
	} `json:"flow_plan"`
}

func (h *handler) validateFlows(_ context.Context, req *flowPlanRequest) (any, error) {
	return service.ValidateFlows(req.FlowPlan.Flows), nil
}

func (h *handler) flowRecommendations(context.Context, *flowPlanRequest) (any, error) {
	return map[string]any{"recommendations": service.FlowRecommendations()}, nil
}

func (h *handler) flowExecutionTask() *task {
	return &task{
		name: "flow-execution",
		actions: map[string]action{
			"execute":     bind(h.installFlows),
			"get_history": bind(h.flowHistory),
		},
	}
}

func (h *handler) installFlows(ctx context.Context, req *flowPlanRequest) (any, error) {
	if req.FlowPlan.Flows == nil {
		return nil, core.MissingField("flow_plan.flows")
	}
	exec, err := h.svc.InstallFlows(ctx, req.FlowPlan.PlanID, req.FlowPlan.Flows)
	if err != nil {
		return nil, err
	}
	status := model.StatusSuccess
	if exec.FlowsInstalled < exec.Flows {
		status = "partial"
	}
	return map[string]any{
		"status":          status,
		"execution_id":    exec.ExecutionID,
		"flows_installed": exec.FlowsInstalled,
		"total_flows":     exec.Flows,
		"results":         exec.Results,
	}, nil
}

func (h *handler) flowHistory(ctx context.Context, _ *flowPlanRequest) (any, error) {
	history, err := h.svc.FlowHistory(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": model.StatusSuccess, "history": history, "count": len(history)}, nil
}

func (h *handler) topologyMonitoringTask() *task {
	return &task{
		name: "topology-monitoring",
		actions: map[string]action{
			"status":       bind(h.topologyStatus),
			"node_info":    bind(h.nodeInfo),
			"active_nodes": bind(h.activeNodes),
		},
	}
}

type topologyRequest struct {
	Params flowParams `json:"params"`
}

func (h *handler) topologyStatus(ctx context.Context, _ *topologyRequest) (any, error) {
	return h.svc.TopologyStatus(ctx)
}

func (h *handler) nodeInfo(ctx context.Context, req *topologyRequest) (any, error) {
	return h.svc.NodeInfo(ctx, req.Params.NodeID)
}

func (h *handler) activeNodes(ctx context.Context, _ *topologyRequest) (any, error) {
	nodes, err := h.svc.ActiveNodes(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": model.StatusSuccess, "active_nodes": nodes, "count": len(nodes)}, nil
}
