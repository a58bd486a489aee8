package model

import "time"

// StepStatus is the outcome of one executed step.
type StepStatus string

const (
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepTimeout StepStatus = "timeout"
	// StepPublished marks an MQTT command accepted by the broker. Delivery to
	// the device is not confirmed.
	StepPublished StepStatus = "published"
)

// ExecutionStatus is the lifecycle state of a plan run.
type ExecutionStatus string

const (
	ExecutionCreated   ExecutionStatus = "created"
	ExecutionExecuting ExecutionStatus = "executing"
	ExecutionCompleted ExecutionStatus = "completed"
	ExecutionFailed    ExecutionStatus = "failed"
)

// StepResult is the normalized outcome of one step.
type StepResult struct {
	StepID       string      `json:"step_id"`
	StepIndex    int         `json:"step_index"`
	Instruction  Instruction `json:"instruction"`
	DeviceID     string      `json:"device_id"`
	Service      string      `json:"service"`
	Status       StepStatus  `json:"status"`
	Protocol     string      `json:"protocol,omitempty"`
	Method       string      `json:"method,omitempty"`
	URL          string      `json:"url,omitempty"`
	Topic        string      `json:"topic,omitempty"`
	ResponseCode int         `json:"response_code,omitempty"`
	Response     any         `json:"response,omitempty"`
	Error        string      `json:"error,omitempty"`
	DurationMS   float64     `json:"duration_ms"`
	Attempts     int         `json:"attempts,omitempty"`
}

// Failed reports whether the step should trigger stop_on_error.
func (r *StepResult) Failed() bool {
	return r.Status == StepFailed || r.Status == StepTimeout
}

// DeviceResponse is a successful response kept per device.
type DeviceResponse struct {
	Service  string `json:"service"`
	Response any    `json:"response"`
}

// ExecutionRecord describes one plan run. It is immutable once appended to history.
type ExecutionRecord struct {
	ExecutionID     string                      `json:"execution_id"`
	PlanID          string                      `json:"plan_id"`
	Status          ExecutionStatus             `json:"status"`
	ExecutionType   ExecutionMode               `json:"execution_type"`
	StartTime       time.Time                   `json:"start_time"`
	EndTime         time.Time                   `json:"end_time"`
	DurationMS      float64                     `json:"duration_ms"`
	StepsTotal      int                         `json:"steps_total"`
	StepsCompleted  int                         `json:"steps_completed"`
	StepResults     []StepResult                `json:"step_results"`
	DeviceResponses map[string][]DeviceResponse `json:"device_responses"`
	Errors          []string                    `json:"errors"`
}

// HistoryPage is the answer to a history query.
type HistoryPage struct {
	Total      int                `json:"total"`
	Filtered   int                `json:"filtered"`
	Executions []*ExecutionRecord `json:"executions"`
}
