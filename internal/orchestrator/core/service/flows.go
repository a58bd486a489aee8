package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/internal/pkg/metrics"
)

const (
	// DefaultFlowPlanID names the plan produced by GenerateFlowPlan.
	DefaultFlowPlanID = "plan-001"

	// defaultSinkNode is used when the controller reports no border router.
	defaultSinkNode = 1

	maxFlowsPerNode = 10
	maxFlowsTotal   = 50

	flowEnergyCost    = 0.1
	flowLatencyMS     = 50
	flowStatusValid   = "valid"
	flowStatusInvalid = "invalid"
)

// errNoController is returned when no SDN controller is configured.
var errNoController = fmt.Errorf("sdn controller not configured: %w", core.ErrUnavailable)

var flowRecommendations = []string{
	"Consider aggregating sensor data",
	"Use sampling to reduce traffic",
	"Implement sleep schedules for energy savings",
}

// FlowPlanSummary is one entry of ListFlowPlans.
type FlowPlanSummary struct {
	PlanID    string `json:"plan_id"`
	Intent    string `json:"intent,omitempty"`
	FlowCount int    `json:"flow_count"`
}

// FlowAnalysis estimates the cost of a flow plan.
type FlowAnalysis struct {
	TotalFlows          int     `json:"total_flows"`
	SourceNodes         int     `json:"source_nodes"`
	DestinationNodes    int     `json:"destination_nodes"`
	EstimatedEnergyCost float64 `json:"estimated_energy_cost"`
	EstimatedLatencyMS  int     `json:"estimated_latency_ms"`
}

// FlowValidation lists flow table and bandwidth problems of a set of flows.
type FlowValidation struct {
	Status         string   `json:"status"`
	FlowsValidated int      `json:"flows_validated"`
	Issues         []string `json:"issues"`
}

// FlowIntentResult is the outcome of ExecuteFlowIntent.
type FlowIntentResult struct {
	Status         string               `json:"status"`
	Intent         string               `json:"intent"`
	PlanID         string               `json:"plan_id"`
	FlowsInstalled int                  `json:"flows_installed"`
	TotalFlows     int                  `json:"total_flows"`
	Errors         []string             `json:"errors,omitempty"`
	Execution      *model.FlowExecution `json:"execution,omitempty"`
}

// TopologyStatus summarizes the WSN as seen by the controller.
type TopologyStatus struct {
	TotalNodes    int            `json:"total_nodes"`
	ActiveNodes   int            `json:"active_nodes"`
	SensorNodes   int            `json:"sensor_nodes"`
	BorderRouters int            `json:"border_routers"`
	Topology      map[string]any `json:"topology"`
}

// NodeInfo is the flow table of one node, with its counters when available.
type NodeInfo struct {
	NodeID    int              `json:"node_id"`
	FlowCount int              `json:"flow_count"`
	Flows     []model.Flow     `json:"flows"`
	Stats     *model.NodeStats `json:"stats,omitempty"`
}

func (s *Service) sdn() (core.FlowController, error) {
	if s.controller == nil {
		return nil, errNoController
	}
	return s.controller, nil
}

// GenerateFlowPlan routes every sensor node to the border router and saves
// the plan.
func (s *Service) GenerateFlowPlan(ctx context.Context, intent string) (*model.FlowPlan, error) {
	if intent == "" {
		return nil, core.MissingField("intent")
	}
	ctrl, err := s.sdn()
	if err != nil {
		return nil, err
	}
	nodes, err := ctrl.Nodes(ctx)
	if err != nil {
		return nil, core.Unavailable("list wsn nodes", err)
	}

	plan := &model.FlowPlan{
		ID:        DefaultFlowPlanID,
		Intent:    intent,
		Flows:     SinkFlows(nodes),
		CreatedAt: s.now(),
	}
	plan.Summary = fmt.Sprintf("Generated %d flow rules to route sensor data to sink", len(plan.Flows))

	if err := s.flows.SaveFlowPlan(ctx, plan); err != nil {
		return nil, fmt.Errorf("save flow plan: %w", err)
	}
	s.logger.Info("Generated flow plan", "plan", plan.ID, "flows", len(plan.Flows))
	return plan, nil
}

// SinkFlows builds one FORWARD rule per sensor towards the first border router.
func SinkFlows(nodes []model.Node) []model.Flow {
	sink := defaultSinkNode
	for _, n := range nodes {
		if n.Type == model.NodeTypeBorderRouter {
			sink = n.NodeID
			break
		}
	}

	flows := []model.Flow{}
	for _, n := range nodes {
		if n.Type != model.NodeTypeSensor {
			continue
		}
		flows = append(flows, model.Flow{
			NodeID:      n.NodeID,
			SrcAddr:     n.NodeID,
			DstAddr:     sink,
			Action:      model.FlowActionForward,
			NextHop:     sink,
			Description: fmt.Sprintf("Route from sensor %d to sink %d", n.NodeID, sink),
		})
	}
	return flows
}

// ExecuteFlowIntent generates a flow plan and installs it.
func (s *Service) ExecuteFlowIntent(ctx context.Context, intent string) (*FlowIntentResult, error) {
	plan, err := s.GenerateFlowPlan(ctx, intent)
	if err != nil {
		return nil, err
	}

	res := &FlowIntentResult{
		Status:     model.StatusError,
		Intent:     intent,
		PlanID:     plan.ID,
		TotalFlows: len(plan.Flows),
	}
	if len(plan.Flows) == 0 {
		res.Errors = []string{"No flows generated"}
		return res, nil
	}

	exec, err := s.InstallFlows(ctx, plan.ID, plan.Flows)
	if err != nil {
		return nil, err
	}
	res.Execution = exec
	res.FlowsInstalled = exec.FlowsInstalled
	for _, r := range exec.Results {
		if r.Status != model.StatusSuccess {
			res.Errors = append(res.Errors, fmt.Sprintf("Flow %d: %s", r.NodeID, r.Message))
		}
	}
	if res.FlowsInstalled > 0 {
		res.Status = model.StatusSuccess
	}
	return res, nil
}

// InstallFlows pushes flows to the controller one by one and records the run.
// Failed installs are reported in the results.
func (s *Service) InstallFlows(ctx context.Context, planID string, flows []model.Flow) (*model.FlowExecution, error) {
	ctrl, err := s.sdn()
	if err != nil {
		return nil, err
	}

	exec := &model.FlowExecution{
		ExecutionID: "exec-" + uuid.NewString(),
		PlanID:      planID,
		Timestamp:   s.now(),
		Flows:       len(flows),
		Results:     make([]model.InstallResult, 0, len(flows)),
	}
	for _, f := range flows {
		r := ctrl.InstallFlow(ctx, f)
		if r.NodeID == 0 {
			r.NodeID = f.NodeID
		}
		if r.Status == "" {
			r.Status = model.StatusSuccess
		}
		if r.Message == "" && r.Status == model.StatusSuccess {
			r.Message = "Flow installed"
		}
		if r.Status == model.StatusSuccess {
			exec.FlowsInstalled++
		}
		metrics.FlowInstalls.WithLabelValues(r.Status).Inc()
		exec.Results = append(exec.Results, r)
	}

	if err := s.flows.AppendFlowExecution(ctx, exec); err != nil {
		s.logger.Error(err, "Failed to save flow execution", "execution", exec.ExecutionID)
	}
	s.logger.Info("Installed flows", "execution", exec.ExecutionID, "installed", exec.FlowsInstalled, "total", exec.Flows)
	return exec, nil
}

// FlowHistory returns recorded flow installs, newest first.
func (s *Service) FlowHistory(ctx context.Context) ([]model.FlowExecution, error) {
	history, err := s.flows.ListFlowExecutions(ctx)
	if err != nil {
		return nil, err
	}
	if history == nil {
		history = []model.FlowExecution{}
	}
	return history, nil
}

// ListFlowPlans summarizes the saved flow plans.
func (s *Service) ListFlowPlans(ctx context.Context) ([]FlowPlanSummary, error) {
	plans, err := s.flows.ListFlowPlans(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]FlowPlanSummary, 0, len(plans))
	for _, p := range plans {
		out = append(out, FlowPlanSummary{PlanID: p.ID, Intent: p.Intent, FlowCount: len(p.Flows)})
	}
	return out, nil
}

// AnalyzeFlowPlan estimates energy and latency of a saved flow plan.
func (s *Service) AnalyzeFlowPlan(ctx context.Context, planID string) (*FlowAnalysis, error) {
	if planID == "" {
		return nil, core.MissingField("plan_id")
	}
	plan, err := s.flows.GetFlowPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	src := map[int]struct{}{}
	dst := map[int]struct{}{}
	for _, f := range plan.Flows {
		src[f.SrcAddr] = struct{}{}
		dst[f.DstAddr] = struct{}{}
	}
	return &FlowAnalysis{
		TotalFlows:          len(plan.Flows),
		SourceNodes:         len(src),
		DestinationNodes:    len(dst),
		EstimatedEnergyCost: float64(len(plan.Flows)) * flowEnergyCost,
		EstimatedLatencyMS:  flowLatencyMS,
	}, nil
}

// QueryNodes lists controller nodes, optionally of one type.
func (s *Service) QueryNodes(ctx context.Context, nodeType string) ([]model.Node, error) {
	ctrl, err := s.sdn()
	if err != nil {
		return nil, err
	}
	nodes, err := ctrl.Nodes(ctx)
	if err != nil {
		return nil, core.Unavailable("list wsn nodes", err)
	}
	out := []model.Node{}
	for _, n := range nodes {
		if nodeType == "" || n.Type == nodeType {
			out = append(out, n)
		}
	}
	return out, nil
}

// ValidateFlows checks the flow table capacity of every node and the total
// number of flows. A node over capacity is reported once.
func ValidateFlows(flows []model.Flow) *FlowValidation {
	v := &FlowValidation{FlowsValidated: len(flows), Issues: []string{}}

	perNode := map[int]int{}
	for _, f := range flows {
		perNode[f.NodeID]++
		if perNode[f.NodeID] == maxFlowsPerNode+1 {
			v.Issues = append(v.Issues, fmt.Sprintf("Node %d exceeds flow table capacity", f.NodeID))
		}
	}
	if len(flows) > maxFlowsTotal {
		v.Issues = append(v.Issues, "Too many flows - may exceed bandwidth")
	}

	v.Status = flowStatusValid
	if len(v.Issues) > 0 {
		v.Status = flowStatusInvalid
	}
	return v
}

// FlowRecommendations returns generic WSN traffic advice.
func FlowRecommendations() []string {
	return append([]string(nil), flowRecommendations...)
}

// TopologyStatus counts controller nodes by type.
func (s *Service) TopologyStatus(ctx context.Context) (*TopologyStatus, error) {
	ctrl, err := s.sdn()
	if err != nil {
		return nil, err
	}
	topology, err := ctrl.Topology(ctx)
	if err != nil {
		return nil, core.Unavailable("get topology", err)
	}
	nodes, err := ctrl.Nodes(ctx)
	if err != nil {
		return nil, core.Unavailable("list wsn nodes", err)
	}

	st := &TopologyStatus{TotalNodes: len(nodes), Topology: topology}
	for _, n := range nodes {
		switch n.Type {
		case model.NodeTypeSensor:
			st.SensorNodes++
		case model.NodeTypeBorderRouter:
			st.BorderRouters++
		}
		if n.Active {
			st.ActiveNodes++
		}
	}
	if st.Topology == nil {
		st.Topology = map[string]any{}
	}
	return st, nil
}

// NodeInfo returns the flows installed on a node. Missing counters are not an error.
func (s *Service) NodeInfo(ctx context.Context, nodeID int) (*NodeInfo, error) {
	if nodeID <= 0 {
		return nil, core.MissingField("node_id")
	}
	ctrl, err := s.sdn()
	if err != nil {
		return nil, err
	}
	flows, err := ctrl.Flows(ctx, nodeID)
	if err != nil {
		return nil, core.Unavailable(fmt.Sprintf("list flows of node %d", nodeID), err)
	}
	if flows == nil {
		flows = []model.Flow{}
	}

	info := &NodeInfo{NodeID: nodeID, FlowCount: len(flows), Flows: flows}
	if stats, err := ctrl.NodeStats(ctx, nodeID); err == nil {
		info.Stats = stats
	} else {
		s.logger.Debug("Node stats unavailable", "node", nodeID, "error", err.Error())
	}
	return info, nil
}

// ActiveNodes returns the nodes the controller reports as active.
func (s *Service) ActiveNodes(ctx context.Context) ([]model.Node, error) {
	ctrl, err := s.sdn()
	if err != nil {
		return nil, err
	}
	nodes, err := ctrl.Nodes(ctx)
	if err != nil {
		return nil, core.Unavailable("list wsn nodes", err)
	}
	out := []model.Node{}
	for _, n := range nodes {
		if n.Active {
			out = append(out, n)
		}
	}
	return out, nil
}
