package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/internal/pkg/metrics"
)

const (
	optimizedSamplingHz = 30
	optimizedResolution = "1440p"
)

// ValidatePlan runs every constraint validator against plan and aggregates the
// result. A validator that panics turns the overall status into error.
func (s *Service) ValidatePlan(ctx context.Context, plan *model.Plan, user *model.UserContext) *model.ValidationResult {
	env := s.validationEnv(ctx)

	checks := make([]*model.ConstraintCheck, 0, len(Validators))
	var panicked []string
	for _, validate := range Validators {
		check, err := runValidator(validate, plan, user, env)
		if err != nil {
			s.logger.Error(err, "Constraint validator panicked", "plan", plan.ID)
			panicked = append(panicked, err.Error())
			continue
		}
		checks = append(checks, check)
	}

	result := Aggregate(plan.ID, checks)
	result.Timestamp = s.now()
	if len(panicked) > 0 {
		result.Status = model.ValidationError
		for _, msg := range panicked {
			result.Issues = append(result.Issues, model.Issue{Severity: model.SeverityCritical, Message: msg})
		}
	}

	metrics.ValidationResults.WithLabelValues(string(result.Status)).Inc()
	s.logger.Debug("Plan validated", "plan", plan.ID, "status", result.Status, "issues", len(result.Issues))
	return result
}

func runValidator(validate ConstraintValidator, plan *model.Plan, user *model.UserContext, env *ValidationEnv) (check *model.ConstraintCheck, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validation error: %v", r)
		}
	}()
	return validate(plan, user, env), nil
}

// validationEnv snapshots the registry and security policies. Policy load
// failures degrade to empty policies.
func (s *Service) validationEnv(ctx context.Context) *ValidationEnv {
	env := &ValidationEnv{FindDevice: s.registry.FindDevice}
	if dep := s.registry.Deployment(); dep != nil {
		env.BrokerStatus = dep.MQTTBrokerStatus()
	}
	policies, err := s.policies.SecurityPolicies(ctx)
	if err != nil {
		s.logger.Error(err, "Failed to load security policies, validating without them")
		policies = &model.SecurityPolicies{}
	}
	env.Policies = policies
	return env
}

// GenerateOptimizedPlan returns a copy of plan with the tagged recommendations of
// result applied. The input plan is never modified.
func (s *Service) GenerateOptimizedPlan(plan *model.Plan, result *model.ValidationResult) *model.Plan {
	return OptimizePlan(plan, result, s.now())
}

// OptimizePlan applies each recommendation action once.
func OptimizePlan(plan *model.Plan, result *model.ValidationResult, now time.Time) *model.Plan {
	out := plan.DeepCopy()

	actions := sets.New[string]()
	for _, rec := range result.Recommendations {
		if rec.Action != "" {
			actions.Insert(rec.Action)
		}
	}

	var applied []string
	if actions.Has(model.ActionReduceSampling) {
		applied = append(applied, reduceSampling(out)...)
	}
	if actions.Has(model.ActionProgressive) && out.Algorithm.Type == model.ModeParallel {
		out.Algorithm.Type = model.ModeSequential
		applied = append(applied, "algorithm: parallel -> sequential")
	}
	if actions.Has(model.ActionCorridorDevices) {
		applied = append(applied, keepCorridorDevices(out)...)
	}
	if actions.Has(model.ActionReduceRes) {
		applied = append(applied, reduceResolution(out)...)
	}
	if applied == nil {
		applied = []string{}
	}

	out.Optimized = true
	out.OptimizationHistory = append(out.OptimizationHistory, model.OptimizationEntry{
		Timestamp:       now.Format(time.RFC3339),
		ValidationState: string(result.Status),
		Applied:         applied,
	})
	return out
}

func reduceSampling(p *model.Plan) []string {
	var applied []string
	for i := range p.Devices {
		for j := range p.Devices[i].Services {
			svc := &p.Devices[i].Services[j]
			if freq, ok := svc.Details.Float("sampling_frequency"); ok && freq != optimizedSamplingHz {
				svc.Details["sampling_frequency"] = optimizedSamplingHz
				applied = append(applied, fmt.Sprintf("%s/%s: sampling_frequency %s -> %d", p.Devices[i].ID, svc.Name, num(freq), optimizedSamplingHz))
			}
		}
	}
	for i := range p.Algorithm.Steps {
		st := &p.Algorithm.Steps[i]
		if _, ok := st.Parameters["sampling_frequency"]; ok {
			st.Parameters["sampling_frequency"] = optimizedSamplingHz
			applied = append(applied, fmt.Sprintf("step %d: sampling_frequency -> %d", i, optimizedSamplingHz))
		}
	}
	return applied
}

// keepCorridorDevices drops devices outside the corridor together with their
// steps. Nothing changes when no device is in the corridor.
func keepCorridorDevices(p *model.Plan) []string {
	kept := make([]model.Device, 0, len(p.Devices))
	dropped := sets.New[string]()
	for _, d := range p.Devices {
		if InCorridor(&d) {
			kept = append(kept, d)
		} else {
			dropped.Insert(d.ID)
		}
	}
	if len(kept) == 0 || dropped.Len() == 0 {
		return nil
	}

	p.Devices = kept
	steps := p.Algorithm.Steps[:0]
	for _, st := range p.Algorithm.Steps {
		if !dropped.Has(st.DeviceID) {
			steps = append(steps, st)
		}
	}
	p.Algorithm.Steps = steps
	return []string{fmt.Sprintf("devices outside corridor removed: %s", strings.Join(sets.List(dropped), ", "))}
}

func reduceResolution(p *model.Plan) []string {
	var applied []string
	for i := range p.Devices {
		d := &p.Devices[i]
		for j := range d.Services {
			svc := &d.Services[j]
			if svc.Name != "camera" {
				continue
			}
			if svc.Details == nil {
				svc.Details = model.Details{}
			}
			if svc.Details.String("resolution") != optimizedResolution {
				svc.Details["resolution"] = optimizedResolution
				applied = append(applied, fmt.Sprintf("%s/camera: resolution -> %s", d.ID, optimizedResolution))
			}
		}
	}
	for i := range p.Algorithm.Steps {
		st := &p.Algorithm.Steps[i]
		if _, ok := st.Parameters["resolution"]; ok {
			st.Parameters["resolution"] = optimizedResolution
			applied = append(applied, fmt.Sprintf("step %d: resolution -> %s", i, optimizedResolution))
		}
	}
	return applied
}

// InCorridor reports whether the device location names the corridor.
func InCorridor(d *model.Device) bool {
	return strings.Contains(strings.ToLower(d.Location.Tag()), "corridor") ||
		strings.Contains(strings.ToLower(d.Location.Area), "corridor")
}
