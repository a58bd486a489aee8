package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Instruction is the action a step asks a device service to perform.
type Instruction string

const (
	InstructionActivate   Instruction = "activate_service"
	InstructionDeactivate Instruction = "deactivate_service"
	InstructionQuery      Instruction = "query_service"
	InstructionVerify     Instruction = "verify"
	InstructionConfigure  Instruction = "configure"
	InstructionInitialize Instruction = "initialize"
	InstructionMonitor    Instruction = "monitor"
)

// DefaultStepTimeoutMS applies when a step omits timeout_ms.
const DefaultStepTimeoutMS = 5000

// ExecutionMode selects how the steps of a plan are run.
type ExecutionMode string

const (
	ModeSequential ExecutionMode = "sequential"
	ModeParallel   ExecutionMode = "parallel"
)

// Parameters is the free-form argument map carried by a step.
type Parameters map[string]any

// Step is one device/service action of a plan.
type Step struct {
	Instruction Instruction `json:"instruction"`
	DeviceID    string      `json:"device_id"`
	Service     string      `json:"service"`
	Parameters  Parameters  `json:"parameters,omitempty"`
	TimeoutMS   int         `json:"timeout_ms"`
	StopOnError bool        `json:"stop_on_error,omitempty"`

	// Protocol overrides the URL scheme (http or https) of an HTTP step.
	Protocol string `json:"protocol,omitempty"`
	// Port overrides the device port of an HTTP step.
	Port int `json:"port,omitempty"`
}

// UnmarshalJSON accepts deviceId/device for device_id and a legacy "type"
// field in place of instruction. An absent timeout becomes the default.
func (s *Step) UnmarshalJSON(data []byte) error {
	type plain Step
	var aux struct {
		plain
		TimeoutMS     *int   `json:"timeout_ms"`
		DeviceIDCamel string `json:"deviceId"`
		Device        string `json:"device"`
		Type          string `json:"type"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Step(aux.plain)
	if s.DeviceID == "" {
		s.DeviceID = firstNonEmpty(aux.DeviceIDCamel, aux.Device)
	}
	if s.Instruction == "" && aux.Type != "" {
		s.Instruction = instructionFromType(aux.Type)
	}
	s.TimeoutMS = DefaultStepTimeoutMS
	if aux.TimeoutMS != nil {
		s.TimeoutMS = *aux.TimeoutMS
	}
	return nil
}

func instructionFromType(t string) Instruction {
	switch t {
	case "request_service":
		return InstructionActivate
	case "release_service":
		return InstructionDeactivate
	}
	return Instruction(t)
}

// Timeout returns the step timeout as a duration.
func (s *Step) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// Validate reports structural problems with a step.
func (s *Step) Validate() error {
	if s.TimeoutMS <= 0 {
		return fmt.Errorf("timeout_ms must be greater than 0, got %d", s.TimeoutMS)
	}
	return nil
}

// ScheduleEntry is one device slot in an algorithm timeline.
type ScheduleEntry struct {
	Order         int      `json:"order"`
	DeviceID      string   `json:"device_id"`
	StartOffsetMS int64    `json:"start_offset_ms"`
	DurationMS    *int64   `json:"duration_ms"`
	DurationLabel string   `json:"duration_label,omitempty"`
	Services      []string `json:"services"`
}

// Schedule is the inspection timeline attached to generated plans.
type Schedule struct {
	TimelineStart   string          `json:"timeline_start"`
	Entries         []ScheduleEntry `json:"entries"`
	TimelineTotalMS *int64          `json:"timeline_total_ms"`
	TimelineLabel   string          `json:"timeline_label"`
}

// Algorithm describes how a plan is executed.
type Algorithm struct {
	Type        ExecutionMode `json:"type"`
	Description string        `json:"description,omitempty"`
	Steps       []Step        `json:"steps"`
	Schedule    *Schedule     `json:"schedule,omitempty"`
}

// Mode returns the execution mode, defaulting to sequential.
func (a *Algorithm) Mode() ExecutionMode {
	if a.Type == ModeParallel {
		return ModeParallel
	}
	return ModeSequential
}

// OptimizationEntry records one optimization pass applied to a plan.
type OptimizationEntry struct {
	Timestamp       string   `json:"timestamp"`
	ValidationState string   `json:"validation_status"`
	Applied         []string `json:"applied"`
}

// Plan is a bundle of devices and steps. Plans are never mutated in place;
// use DeepCopy before changing one.
type Plan struct {
	ID                  string              `json:"plan_id"`
	Name                string              `json:"name,omitempty"`
	Description         string              `json:"description,omitempty"`
	UserIntent          string              `json:"user_intent,omitempty"`
	Status              string              `json:"status,omitempty"`
	CreatedAt           string              `json:"created_at,omitempty"`
	Devices             []Device            `json:"devices,omitempty"`
	Algorithm           Algorithm           `json:"algorithm"`
	ExpectedOutcome     map[string]any      `json:"expected_outcome,omitempty"`
	RequiredAreas       []string            `json:"required_areas,omitempty"`
	OptimizationHistory []OptimizationEntry `json:"optimization_history,omitempty"`
	Optimized           bool                `json:"optimized,omitempty"`
}

// UnmarshalJSON accepts "id" as an alias of plan_id.
func (p *Plan) UnmarshalJSON(data []byte) error {
	type plain Plan
	var aux struct {
		plain
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*p = Plan(aux.plain)
	if p.ID == "" {
		p.ID = aux.AltID
	}
	return nil
}

// DeepCopy returns an independent copy of the plan.
func (p *Plan) DeepCopy() *Plan {
	if p == nil {
		return nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		panic(fmt.Sprintf("plan is not serializable: %v", err))
	}
	out := &Plan{}
	if err := json.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("plan copy failed: %v", err))
	}
	return out
}

// Validate checks the structure of a plan before it is executed.
func (p *Plan) Validate() error {
	for i := range p.Algorithm.Steps {
		if err := p.Algorithm.Steps[i].Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// DeviceIDs returns the ids of the plan devices in order.
func (p *Plan) DeviceIDs() []string {
	ids := make([]string, 0, len(p.Devices))
	for _, d := range p.Devices {
		ids = append(ids, d.ID)
	}
	return ids
}
