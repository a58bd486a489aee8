package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"k8s.io/utils/ptr"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

// Algorithm keys.
const (
	AlgorithmNaiveBaseline      = "naive_baseline"
	AlgorithmSequentialCorridor = "sequential_corridor"
)

const (
	// DefaultActiveSeconds is how long each corridor device stays active.
	DefaultActiveSeconds = 20

	corridorGapMS       = 2000
	naiveStepTimeoutMS  = 5000
	deactivateTimeoutMS = 2000

	// PlanReady is the status of a dry run.
	PlanReady = "plan_ready"
)

// AlgorithmOption describes one plan strategy.
type AlgorithmOption struct {
	Key         string            `json:"key"`
	Name        string            `json:"name"`
	Objective   string            `json:"objective"`
	Assumptions []string          `json:"assumptions"`
	Parameters  map[string]any    `json:"parameters,omitempty"`
	Tradeoffs   map[string]string `json:"tradeoffs"`
}

// AlgorithmOptions lists every strategy the builder knows.
func AlgorithmOptions() []AlgorithmOption {
	return []AlgorithmOption{
		{
			Key:       AlgorithmNaiveBaseline,
			Name:      "Naive Sensor Activation (Baseline)",
			Objective: "Continuous corridor monitoring with all devices/services always on.",
			Assumptions: []string{
				"Linear corridor deployment",
				"Each device has motion sensor and ESP32 camera",
				"Fixed local coverage; no prediction/optimization",
			},
			Tradeoffs: map[string]string{"energy": "very high", "redundancy": "high", "latency": "low"},
		},
		{
			Key:       AlgorithmSequentialCorridor,
			Name:      "Cellulaire Sequential Corridor Activation",
			Objective: "Activate devices sequentially along corridor; request video on motion only.",
			Assumptions: []string{
				"Linear corridor deployment",
				"Each device has motion sensor and ESP32 camera",
				"Fixed local coverage; no prediction/optimization; 20s per device",
			},
			Parameters: map[string]any{"T_active_seconds": DefaultActiveSeconds},
			Tradeoffs:  map[string]string{"energy": "high", "redundancy": "medium", "latency": "medium"},
		},
	}
}

// BuildRequest selects a strategy. Devices defaults to the registry and
// ActiveSeconds to DefaultActiveSeconds.
type BuildRequest struct {
	Key           string
	Devices       []model.Device
	ActiveSeconds int
	PlanID        string
}

// AlgorithmRun is the outcome of ExecuteAlgorithm: the built plan on a dry run,
// the execution record otherwise.
type AlgorithmRun struct {
	Status       string                 `json:"status"`
	Plan         *model.Plan            `json:"plan,omitempty"`
	Execution    *model.ExecutionRecord `json:"execution,omitempty"`
	AlgorithmKey string                 `json:"algorithm_key"`
	DryRun       bool                   `json:"dry_run"`
}

// BuildPlan builds a plan over the corridor devices of devices, falling back
// to every device with a camera service when none is in the corridor. The
// output only depends on its inputs and now.
func BuildPlan(req BuildRequest, devices []model.Device, now time.Time) (*model.Plan, error) {
	t := req.ActiveSeconds
	if t == 0 {
		t = DefaultActiveSeconds
	}
	if t < 0 {
		return nil, core.InvalidField("t_active_seconds", "must be greater than 0")
	}

	selected := corridorDevices(devices)

	var plan *model.Plan
	switch req.Key {
	case AlgorithmNaiveBaseline:
		plan = naiveBaseline(selected)
	case AlgorithmSequentialCorridor:
		plan = sequentialCorridor(selected, t)
	case "":
		return nil, core.MissingField("algorithm_key")
	default:
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownAlgorithm, req.Key)
	}

	if req.PlanID != "" {
		plan.ID = req.PlanID
	}
	plan.CreatedAt = now.Format(time.RFC3339)
	plan.Algorithm.Schedule.TimelineStart = now.Format(time.RFC3339)
	return plan, nil
}

func corridorDevices(devices []model.Device) []model.Device {
	var out []model.Device
	for _, d := range devices {
		if strings.EqualFold(d.Location.Area, "corridor") || strings.EqualFold(d.Location.DetectionArea, "corridor") {
			out = append(out, d)
		}
	}
	if len(out) > 0 {
		return out
	}
	for _, d := range devices {
		if d.HasService("camera") {
			out = append(out, d)
		}
	}
	return out
}

func motionService(d *model.Device) (string, bool) {
	for _, name := range []string{"motion", "motion_detection"} {
		if _, ok := d.FindService(name); ok {
			return name, true
		}
	}
	return "", false
}

func scheduledServices(d *model.Device) []string {
	services := []string{}
	for _, s := range d.Services {
		switch s.Name {
		case "motion", "motion_detection", "camera":
			services = append(services, s.Name)
		}
	}
	return services
}

func naiveBaseline(devices []model.Device) *model.Plan {
	steps := []model.Step{}
	entries := make([]model.ScheduleEntry, 0, len(devices))

	for i := range devices {
		d := &devices[i]
		if motion, ok := motionService(d); ok {
			steps = append(steps, model.Step{
				Instruction: model.InstructionActivate,
				DeviceID:    d.ID,
				Service:     motion,
				Parameters:  model.Parameters{"mode": "continuous"},
				TimeoutMS:   naiveStepTimeoutMS,
			})
		}
		if d.HasService("camera") {
			steps = append(steps, model.Step{
				Instruction: model.InstructionActivate,
				DeviceID:    d.ID,
				Service:     "camera",
				Parameters:  model.Parameters{"stream": "on"},
				TimeoutMS:   naiveStepTimeoutMS,
			})
		}
		entries = append(entries, model.ScheduleEntry{
			Order:         i + 1,
			DeviceID:      d.ID,
			DurationLabel: "continuous",
			Services:      scheduledServices(d),
		})
	}

	return &model.Plan{
		ID:      "naive-baseline-corridor",
		Devices: devices,
		Algorithm: model.Algorithm{
			Type:        model.ModeParallel,
			Description: "All relevant devices/services activated continuously",
			Steps:       steps,
			Schedule: &model.Schedule{
				Entries:       entries,
				TimelineLabel: "continuous activation",
			},
		},
	}
}

func sequentialCorridor(devices []model.Device, t int) *model.Plan {
	activeMS := int64(t) * 1000
	steps := []model.Step{}
	entries := make([]model.ScheduleEntry, 0, len(devices))

	var offset int64
	for i := range devices {
		d := &devices[i]
		motion, hasMotion := motionService(d)
		hasCamera := d.HasService("camera")

		if hasMotion {
			steps = append(steps, model.Step{
				Instruction: model.InstructionActivate,
				DeviceID:    d.ID,
				Service:     motion,
				Parameters:  model.Parameters{"mode": "monitor"},
				TimeoutMS:   int(activeMS),
			})
		}
		if hasCamera {
			steps = append(steps, model.Step{
				Instruction: model.InstructionActivate,
				DeviceID:    d.ID,
				Service:     "camera",
				Parameters:  model.Parameters{"on_motion": true},
				TimeoutMS:   int(activeMS),
			})
		}
		if hasMotion {
			steps = append(steps, model.Step{
				Instruction: model.InstructionDeactivate,
				DeviceID:    d.ID,
				Service:     motion,
				Parameters:  model.Parameters{},
				TimeoutMS:   deactivateTimeoutMS,
			})
		}
		if hasCamera {
			steps = append(steps, model.Step{
				Instruction: model.InstructionDeactivate,
				DeviceID:    d.ID,
				Service:     "camera",
				Parameters:  model.Parameters{},
				TimeoutMS:   deactivateTimeoutMS,
			})
		}

		entries = append(entries, model.ScheduleEntry{
			Order:         i + 1,
			DeviceID:      d.ID,
			StartOffsetMS: offset,
			DurationMS:    ptr.To(activeMS),
			Services:      scheduledServices(d),
		})
		offset += activeMS + corridorGapMS
	}

	return &model.Plan{
		ID:      "sequential-corridor-activation",
		Devices: devices,
		Algorithm: model.Algorithm{
			Type:        model.ModeSequential,
			Description: fmt.Sprintf("Activate corridor devices one-by-one for %ds", t),
			Steps:       steps,
			Schedule: &model.Schedule{
				Entries:         entries,
				TimelineTotalMS: ptr.To(offset),
				TimelineLabel:   fmt.Sprintf("sequential %ds per device (+%dms gaps)", t, corridorGapMS),
			},
		},
	}
}

// BuildAlgorithmPlan builds a plan, using the registry when req carries no devices.
func (s *Service) BuildAlgorithmPlan(req BuildRequest) (*model.Plan, error) {
	devices := req.Devices
	if len(devices) == 0 {
		devices = s.registry.Devices()
	}
	return BuildPlan(req, devices, s.now())
}

// ExecuteAlgorithm builds a plan and runs it unless dryRun is set.
func (s *Service) ExecuteAlgorithm(ctx context.Context, req BuildRequest, dryRun bool) (*AlgorithmRun, error) {
	plan, err := s.BuildAlgorithmPlan(req)
	if err != nil {
		return nil, err
	}

	run := &AlgorithmRun{AlgorithmKey: req.Key, DryRun: dryRun}
	if dryRun {
		run.Status = PlanReady
		run.Plan = plan
		return run, nil
	}

	rec := s.ExecutePlan(ctx, plan)
	run.Status = string(rec.Status)
	run.Execution = rec
	return run, nil
}
