package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

// Stored plans picked by intent keywords.
const (
	PlanHighPrecisionSensors = "activate-sensors-high-precision"
	PlanCameraCorridor       = "camera-corridor-monitoring"
	PlanEnvironmental        = "environmental-monitoring"
)

const (
	// AllDevices as a step device id targets every plan device.
	AllDevices = "all"

	defaultAnalyzeStepMS = 1000
)

var defaultDeviceFields = []string{"device_id", "device_type", "location", "capabilities"}

// DeviceFilter narrows QueryDevices. Empty fields match everything.
type DeviceFilter struct {
	Location     string   `json:"location,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// PlanAnalysis summarizes what a plan touches.
type PlanAnalysis struct {
	PlanID             string              `json:"plan_id"`
	TotalDevices       int                 `json:"total_devices"`
	Devices            []string            `json:"devices"`
	ExecutionMode      model.ExecutionMode `json:"execution_mode"`
	TotalSteps         int                 `json:"total_steps"`
	Services           map[string][]string `json:"services"`
	TimelineEstimateMS int64               `json:"timeline_estimate_ms"`
}

// QueryDevices returns the requested fields of every device matching filter.
func (s *Service) QueryDevices(filter DeviceFilter, fields []string) []map[string]any {
	if len(fields) == 0 {
		fields = defaultDeviceFields
	}

	out := []map[string]any{}
	for _, d := range s.registry.Devices() {
		if filter.Location != "" && d.Location.Area != filter.Location && d.Location.Tag() != filter.Location {
			continue
		}
		if len(filter.Capabilities) > 0 && !sets.New(d.Capabilities...).HasAll(filter.Capabilities...) {
			continue
		}

		row := map[string]any{}
		for _, f := range fields {
			switch f {
			case "device_id":
				row[f] = d.ID
			case "device_type":
				row[f] = d.Type
			case "location":
				row[f] = d.Location
			case "capabilities":
				caps := d.Capabilities
				if caps == nil {
					caps = []string{}
				}
				row[f] = caps
			case "status":
				status := d.Status
				if status == "" {
					status = "active"
				}
				row[f] = status
			}
		}
		out = append(out, row)
	}
	return out
}

// PlanFromIntent maps intent keywords to a stored plan and falls back to a
// generic plan over every registered device.
func (s *Service) PlanFromIntent(ctx context.Context, intent string) (*model.Plan, error) {
	lower := strings.ToLower(intent)

	var id string
	switch {
	case strings.Contains(lower, "high-precision") || strings.Contains(lower, "sensors"):
		id = PlanHighPrecisionSensors
	case strings.Contains(lower, "corridor") && strings.Contains(lower, "video"):
		id = PlanCameraCorridor
	case strings.Contains(lower, "environmental") || strings.Contains(lower, "monitoring"):
		id = PlanEnvironmental
	}

	if id != "" {
		plan, err := s.plans.GetPlan(ctx, id)
		if err == nil {
			return plan, nil
		}
		if !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		s.logger.Info("Stored plan missing, generating a generic plan", "plan", id)
	}
	return s.genericPlan(intent), nil
}

func (s *Service) genericPlan(intent string) *model.Plan {
	return &model.Plan{
		ID:          "plan-" + uuid.NewString(),
		Name:        "User-Generated Plan",
		Description: intent,
		UserIntent:  intent,
		Status:      "generated",
		CreatedAt:   s.now().Format(time.RFC3339),
		Devices:     s.registry.Devices(),
		Algorithm: model.Algorithm{
			Type: model.ModeSequential,
			Steps: []model.Step{{
				Instruction: model.InstructionInitialize,
				DeviceID:    AllDevices,
				Service:     "system",
				TimeoutMS:   model.DefaultStepTimeoutMS,
			}},
		},
		ExpectedOutcome: map[string]any{},
	}
}

// AnalyzePlan counts devices, steps and services. Steps without a timeout
// count 1000ms toward the timeline estimate.
func AnalyzePlan(plan *model.Plan) PlanAnalysis {
	a := PlanAnalysis{
		PlanID:        plan.ID,
		TotalDevices:  len(plan.Devices),
		Devices:       plan.DeviceIDs(),
		ExecutionMode: plan.Algorithm.Mode(),
		TotalSteps:    len(plan.Algorithm.Steps),
		Services:      make(map[string][]string, len(plan.Devices)),
	}
	for _, d := range plan.Devices {
		names := make([]string, 0, len(d.Services))
		for _, svc := range d.Services {
			names = append(names, svc.Name)
		}
		a.Services[d.ID] = names
	}
	for _, st := range plan.Algorithm.Steps {
		if st.TimeoutMS > 0 {
			a.TimelineEstimateMS += int64(st.TimeoutMS)
		} else {
			a.TimelineEstimateMS += defaultAnalyzeStepMS
		}
	}
	return a
}

// StoredPlan returns a plan from orchestration_plans.json.
func (s *Service) StoredPlan(ctx context.Context, planID string) (*model.Plan, error) {
	if planID == "" {
		return nil, core.MissingField("plan_id")
	}
	return s.plans.GetPlan(ctx, planID)
}

// AnalyzeStoredPlan analyzes a plan from orchestration_plans.json.
func (s *Service) AnalyzeStoredPlan(ctx context.Context, planID string) (*PlanAnalysis, error) {
	plan, err := s.StoredPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	a := AnalyzePlan(plan)
	return &a, nil
}

// ListPlans returns the stored orchestration plans.
func (s *Service) ListPlans(ctx context.Context) ([]model.Plan, error) {
	plans, err := s.plans.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []model.Plan{}
	}
	return plans, nil
}

// ExecuteStoredPlan runs a stored plan, or the plan generated from intent when
// planID is unknown.
func (s *Service) ExecuteStoredPlan(ctx context.Context, planID, intent string) (*model.Plan, *model.ExecutionRecord, error) {
	var plan *model.Plan
	if planID != "" {
		p, err := s.plans.GetPlan(ctx, planID)
		switch {
		case err == nil:
			plan = p
		case !errors.Is(err, core.ErrNotFound):
			return nil, nil, err
		}
	}
	if plan == nil {
		if planID == "" && intent == "" {
			return nil, nil, core.MissingField("plan_id")
		}
		p, err := s.PlanFromIntent(ctx, intent)
		if err != nil {
			return nil, nil, err
		}
		plan = p
	}

	return plan, s.ExecutePlan(ctx, ExpandAllDevices(plan)), nil
}

// ExpandAllDevices returns plan with every "all" step replaced by one step per
// plan device. The input plan is not modified.
func ExpandAllDevices(plan *model.Plan) *model.Plan {
	expand := false
	for _, st := range plan.Algorithm.Steps {
		if st.DeviceID == AllDevices {
			expand = true
			break
		}
	}
	if !expand {
		return plan
	}

	out := plan.DeepCopy()
	steps := make([]model.Step, 0, len(out.Algorithm.Steps))
	for _, st := range out.Algorithm.Steps {
		if st.DeviceID != AllDevices {
			steps = append(steps, st)
			continue
		}
		for _, id := range out.DeviceIDs() {
			cp := st
			cp.DeviceID = id
			cp.Parameters = cloneParams(st.Parameters)
			steps = append(steps, cp)
		}
	}
	out.Algorithm.Steps = steps
	return out
}

func cloneParams(p model.Parameters) model.Parameters {
	if p == nil {
		return nil
	}
	out := make(model.Parameters, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// IntentExecution is the outcome of ExecuteIntent.
type IntentExecution struct {
	Plan      *model.Plan
	Analysis  PlanAnalysis
	Execution *model.ExecutionRecord
}

// ExecuteIntent generates a plan from intent and runs it.
func (s *Service) ExecuteIntent(ctx context.Context, intent string) (*IntentExecution, error) {
	if strings.TrimSpace(intent) == "" {
		return nil, core.MissingField("intent")
	}
	plan, err := s.PlanFromIntent(ctx, intent)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}
	return &IntentExecution{
		Plan:      plan,
		Analysis:  AnalyzePlan(plan),
		Execution: s.ExecutePlan(ctx, ExpandAllDevices(plan)),
	}, nil
}
