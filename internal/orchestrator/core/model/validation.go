package model

import "time"

// Severity grades a validation issue.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Priority grades a recommendation.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// CheckStatus is the verdict of one constraint check.
type CheckStatus string

const (
	CheckPassed CheckStatus = "passed"
	CheckFailed CheckStatus = "failed"
)

// ValidationStatus is the merged verdict of all checks.
type ValidationStatus string

const (
	ValidationPassed   ValidationStatus = "passed"
	ValidationWarnings ValidationStatus = "warnings"
	ValidationFailed   ValidationStatus = "failed"
	ValidationError    ValidationStatus = "error"
)

// Issue is a problem found by a constraint check.
type Issue struct {
	Constraint string   `json:"constraint,omitempty"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	DeviceID   string   `json:"device_id,omitempty"`
}

// Recommendation is a suggested change to a plan.
type Recommendation struct {
	Constraint string   `json:"constraint,omitempty"`
	Priority   Priority `json:"priority"`
	Suggestion string   `json:"suggestion"`
	// Action tags recommendations that the optimizer knows how to apply.
	Action string `json:"action,omitempty"`
}

// Recommendation actions understood by the optimizer.
const (
	ActionReduceSampling  = "reduce_sampling_frequency"
	ActionProgressive     = "progressive_activation"
	ActionReduceRes       = "reduce_resolution"
	ActionCompression     = "enable_compression"
	ActionCorridorDevices = "corridor_devices"
	ActionEncrypt         = "encrypt_communication"
	ActionUserContext     = "provide_user_context"
)

// ConstraintCheck is the result of one validator.
type ConstraintCheck struct {
	Constraint      string           `json:"constraint"`
	Status          CheckStatus      `json:"status"`
	Issues          []Issue          `json:"issues"`
	Recommendations []Recommendation `json:"recommendations"`
	Metrics         map[string]any   `json:"metrics,omitempty"`
}

// NewConstraintCheck returns an empty passing check.
func NewConstraintCheck(name string) *ConstraintCheck {
	return &ConstraintCheck{
		Constraint:      name,
		Status:          CheckPassed,
		Issues:          []Issue{},
		Recommendations: []Recommendation{},
		Metrics:         map[string]any{},
	}
}

// AddIssue records an issue. A critical issue fails the check.
func (c *ConstraintCheck) AddIssue(sev Severity, deviceID, format string) {
	c.Issues = append(c.Issues, Issue{Constraint: c.Constraint, Severity: sev, Message: format, DeviceID: deviceID})
	if sev == SeverityCritical {
		c.Status = CheckFailed
	}
}

// Recommend records a recommendation.
func (c *ConstraintCheck) Recommend(p Priority, action, suggestion string) {
	c.Recommendations = append(c.Recommendations, Recommendation{
		Constraint: c.Constraint,
		Priority:   p,
		Suggestion: suggestion,
		Action:     action,
	})
}

// UserContext identifies the caller for security and privacy checks.
type UserContext struct {
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// EffectiveRole defaults an empty role to guest.
func (u *UserContext) EffectiveRole() string {
	if u.Role == "" {
		return "guest"
	}
	return u.Role
}

// ValidationResult merges all constraint checks for a plan.
type ValidationResult struct {
	PlanID          string             `json:"plan_id"`
	Timestamp       time.Time          `json:"timestamp"`
	Status          ValidationStatus   `json:"status"`
	Checks          []*ConstraintCheck `json:"checks"`
	Issues          []Issue            `json:"issues"`
	Recommendations []Recommendation   `json:"recommendations"`
}
