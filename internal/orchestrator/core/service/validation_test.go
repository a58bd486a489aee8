package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

func issueMessages(c *model.ConstraintCheck) []string {
	out := make([]string, 0, len(c.Issues))
	for _, i := range c.Issues {
		out = append(out, i.Message)
	}
	return out
}

func actions(c *model.ConstraintCheck) []string {
	out := make([]string, 0, len(c.Recommendations))
	for _, r := range c.Recommendations {
		out = append(out, r.Action)
	}
	return out
}

func TestValidateEnergy(t *testing.T) {
	low := camera("cam-1", "corridor")
	low.Battery = battery(10)
	unknown := sensor("ghost", "room-1")

	live := camera("cam-1", "corridor")
	live.Battery = battery(40)
	env := &ValidationEnv{FindDevice: func(id string) (*model.Device, bool) {
		if id == "cam-1" {
			return &live, true
		}
		return nil, false
	}}

	check := ValidateEnergy(&model.Plan{Devices: []model.Device{low, unknown}}, nil, env)

	assert.Equal(t, model.CheckPassed, check.Status)
	assert.Equal(t, []string{
		"Device battery low: 40%",
		"Device ghost not found in deployment",
	}, issueMessages(check))
	assert.Equal(t, 800.0, check.Metrics["total_power_mw"])
	assert.Empty(t, check.Recommendations)
}

func TestValidateEnergyCritical(t *testing.T) {
	var devices []model.Device
	for _, id := range []string{"cam-1", "cam-2", "cam-3", "cam-4", "cam-5", "cam-6", "cam-7"} {
		d := camera(id, "corridor")
		d.Battery = battery(15)
		devices = append(devices, d)
	}

	check := ValidateEnergy(&model.Plan{Devices: devices}, nil, nil)

	assert.Equal(t, model.CheckFailed, check.Status)
	require.Len(t, check.Issues, 7)
	assert.Equal(t, "Device battery critical: 15%. Estimated consumption: 800mW", check.Issues[0].Message)
	assert.Equal(t, []string{model.ActionReduceSampling, model.ActionProgressive}, actions(check))
}

func TestValidateTransmission(t *testing.T) {
	tests := []struct {
		name    string
		devices []model.Device
		broker  string
		issues  []string
		status  model.CheckStatus
		bw      float64
		recs    []string
	}{
		{
			name:    "broker online single camera",
			devices: []model.Device{camera("cam-1", "corridor")},
			broker:  "online",
			issues:  []string{},
			status:  model.CheckPassed,
			bw:      31,
			recs:    []string{model.ActionCompression},
		},
		{
			name:    "broker offline with mqtt services",
			devices: []model.Device{sensor("temp-1", "room-1")},
			broker:  "offline",
			issues:  []string{"Primary MQTT broker is offline (1 MQTT services affected)"},
			status:  model.CheckFailed,
			bw:      0.06,
			recs:    []string{},
		},
		{
			name:    "broker unknown without mqtt services",
			devices: []model.Device{camera("cam-1", "corridor"), camera("cam-2", "corridor")},
			issues:  []string{"Primary MQTT broker is offline (0 MQTT services affected)"},
			status:  model.CheckPassed,
			bw:      62,
			recs:    []string{model.ActionReduceRes, model.ActionCompression},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := ValidateTransmission(&model.Plan{Devices: tt.devices}, nil, &ValidationEnv{BrokerStatus: tt.broker})
			assert.Equal(t, tt.issues, issueMessages(check))
			assert.Equal(t, tt.status, check.Status)
			assert.InDelta(t, tt.bw, check.Metrics["total_bandwidth_mbps"], 1e-9)
			assert.Equal(t, tt.recs, actions(check))
		})
	}
}

func TestValidateSecurity(t *testing.T) {
	policies := &model.SecurityPolicies{AccessControl: map[string]model.DeviceAccessPolicy{
		"camera": {RequiredPermissions: []string{"read_video", "control_camera"}, RestrictedRoles: []string{"guest"}},
		"sensor": {RequiredPermissions: []string{"read_sensor"}},
	}}
	env := &ValidationEnv{Policies: policies}
	plan := &model.Plan{Devices: []model.Device{camera("cam-1", "corridor"), sensor("temp-1", "room-1")}}

	t.Run("no user", func(t *testing.T) {
		check := ValidateSecurity(plan, nil, env)
		assert.Empty(t, check.Issues)
		assert.Equal(t, []string{model.ActionUserContext}, actions(check))
	})

	t.Run("guest", func(t *testing.T) {
		check := ValidateSecurity(plan, &model.UserContext{UserID: "u1"}, env)
		assert.Equal(t, model.CheckFailed, check.Status)
		assert.Equal(t, []string{
			"User role 'guest' not authorized to access cam-1",
			"Missing permissions for device cam-1: control_camera, read_video",
			"Missing permissions for device temp-1: read_sensor",
		}, issueMessages(check))
		assert.Equal(t, []string{model.ActionEncrypt}, actions(check))
	})

	t.Run("camera reader", func(t *testing.T) {
		user := &model.UserContext{UserID: "u2", Role: "nurse", Permissions: []string{"read_video", "read_sensor"}}
		check := ValidateSecurity(plan, user, env)
		assert.Equal(t, model.CheckPassed, check.Status)
		assert.Equal(t, []string{"Additional camera permissions may be required: control_camera"}, issueMessages(check))
	})
}

func TestValidateLocation(t *testing.T) {
	cam := camera("cam-1", "corridor")
	cam.Services[1].Details["detection_area"] = "room-2"
	plan := &model.Plan{
		RequiredAreas: []string{"corridor", "ward"},
		Devices:       []model.Device{cam},
	}

	check := ValidateLocation(plan, nil, nil)

	assert.Equal(t, []string{"Not all locations covered: room-2, ward"}, issueMessages(check))
	assert.Equal(t, model.SeverityWarning, check.Issues[0].Severity)
	assert.Equal(t, []string{model.ActionCorridorDevices}, actions(check))
	assert.Equal(t, []string{"corridor"}, check.Metrics["covered_areas"])
}

func TestValidatePrivacy(t *testing.T) {
	env := &ValidationEnv{Policies: &model.SecurityPolicies{Privacy: map[string]model.PrivacyPolicy{
		"camera": {RestrictedUsers: []string{"visitor"}},
	}}}
	plan := &model.Plan{Devices: []model.Device{camera("cam-1", "corridor"), camera("cam-2", "corridor")}}

	check := ValidatePrivacy(plan, &model.UserContext{UserID: "visitor"}, env)
	assert.Equal(t, model.CheckFailed, check.Status)
	assert.Len(t, check.Issues, 2)
	assert.Equal(t, []string{model.ActionReduceRes, model.ActionReduceSampling}, actions(check))

	check = ValidatePrivacy(&model.Plan{Devices: []model.Device{sensor("t", "r")}}, &model.UserContext{UserID: "visitor"}, env)
	assert.Empty(t, check.Issues)
	assert.Equal(t, []string{model.ActionReduceSampling}, actions(check))
}

func TestAggregate(t *testing.T) {
	passing := model.NewConstraintCheck("a")
	warning := model.NewConstraintCheck("b")
	warning.AddIssue(model.SeverityWarning, "", "w")
	critical := model.NewConstraintCheck("c")
	critical.AddIssue(model.SeverityCritical, "", "c")

	assert.Equal(t, model.ValidationPassed, Aggregate("p", []*model.ConstraintCheck{passing}).Status)
	assert.Equal(t, model.ValidationWarnings, Aggregate("p", []*model.ConstraintCheck{passing, warning}).Status)

	res := Aggregate("p", []*model.ConstraintCheck{warning, critical})
	assert.Equal(t, model.ValidationFailed, res.Status)
	assert.Len(t, res.Issues, 2)
}

func TestValidatePlanRecoversPanics(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"))

	saved := Validators
	t.Cleanup(func() { Validators = saved })
	Validators = append([]ConstraintValidator{func(*model.Plan, *model.UserContext, *ValidationEnv) *model.ConstraintCheck {
		panic("boom")
	}}, saved...)

	res := h.svc.ValidatePlan(context.Background(), &model.Plan{ID: "p1"}, nil)

	assert.Equal(t, model.ValidationError, res.Status)
	assert.Len(t, res.Checks, len(saved))
	assert.Contains(t, issueTexts(res.Issues), "validation error: boom")
}

func issueTexts(issues []model.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Message)
	}
	return out
}

func TestValidatePlanUsesRegistryAndPolicies(t *testing.T) {
	cam := camera("cam-1", "corridor")
	h := newHarness(t, cam)
	h.registry.deployment = &model.Deployment{NetworkConfig: map[string]any{
		"primary_mqtt_broker": map[string]any{"status": "online"},
	}}
	h.policies.security = &model.SecurityPolicies{AccessControl: map[string]model.DeviceAccessPolicy{
		"camera": {RestrictedRoles: []string{"guest"}},
	}}

	res := h.svc.ValidatePlan(context.Background(), &model.Plan{ID: "p1", Devices: []model.Device{cam}}, &model.UserContext{UserID: "u1"})

	assert.Equal(t, "p1", res.PlanID)
	assert.Equal(t, testNow, res.Timestamp)
	assert.Equal(t, model.ValidationFailed, res.Status)
	assert.Contains(t, issueTexts(res.Issues), "User role 'guest' not authorized to access cam-1")
	assert.NotContains(t, issueTexts(res.Issues), "Primary MQTT broker is offline (0 MQTT services affected)")
}

func TestOptimizePlan(t *testing.T) {
	inCorridor := camera("cam-1", "corridor")
	outside := sensor("temp-1", "room-1")
	plan := &model.Plan{
		ID:      "p1",
		Devices: []model.Device{inCorridor, outside},
		Algorithm: model.Algorithm{Type: model.ModeParallel, Steps: []model.Step{
			{Instruction: model.InstructionActivate, DeviceID: "cam-1", Service: "camera", TimeoutMS: 5000,
				Parameters: model.Parameters{"resolution": "4K"}},
			{Instruction: model.InstructionConfigure, DeviceID: "temp-1", Service: "temperature", TimeoutMS: 5000,
				Parameters: model.Parameters{"sampling_frequency": 60}},
		}},
	}
	result := &model.ValidationResult{
		Status: model.ValidationWarnings,
		Recommendations: []model.Recommendation{
			{Action: model.ActionReduceSampling},
			{Action: model.ActionProgressive},
			{Action: model.ActionCorridorDevices},
			{Action: model.ActionReduceRes},
			{Action: model.ActionReduceRes},
		},
	}

	out := OptimizePlan(plan, result, testNow)

	assert.True(t, out.Optimized)
	assert.Equal(t, model.ModeSequential, out.Algorithm.Type)
	assert.Equal(t, []string{"cam-1"}, out.DeviceIDs())
	require.Len(t, out.Algorithm.Steps, 1)
	assert.Equal(t, "1440p", out.Algorithm.Steps[0].Parameters["resolution"])
	assert.Equal(t, "1440p", out.Devices[0].Services[1].Details["resolution"])
	require.Len(t, out.OptimizationHistory, 1)
	assert.Equal(t, "warnings", out.OptimizationHistory[0].ValidationState)

	// the input is untouched
	assert.Equal(t, model.ModeParallel, plan.Algorithm.Type)
	assert.Len(t, plan.Devices, 2)
	assert.Equal(t, "4K", plan.Algorithm.Steps[0].Parameters["resolution"])
	assert.Equal(t, 60, plan.Algorithm.Steps[1].Parameters["sampling_frequency"])
	assert.False(t, plan.Optimized)
}

func TestOptimizePlanWithoutCorridorKeepsDevices(t *testing.T) {
	plan := &model.Plan{ID: "p1", Devices: []model.Device{sensor("temp-1", "room-1")}}
	result := &model.ValidationResult{Recommendations: []model.Recommendation{{Action: model.ActionCorridorDevices}}}

	out := OptimizePlan(plan, result, testNow)

	assert.Equal(t, []string{"temp-1"}, out.DeviceIDs())
	assert.Equal(t, []string{}, out.OptimizationHistory[0].Applied)
}
