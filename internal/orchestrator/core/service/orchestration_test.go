package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

func storedPlan(id string, steps ...model.Step) model.Plan {
	return model.Plan{ID: id, Name: id, Algorithm: model.Algorithm{Steps: steps}}
}

func TestPlanFromIntent(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"))
	for _, id := range []string{PlanHighPrecisionSensors, PlanCameraCorridor, PlanEnvironmental} {
		h.plans.plans[id] = storedPlan(id)
	}
	ctx := context.Background()

	tests := []struct {
		intent string
		want   string
	}{
		{"Activate all high-precision sensors", PlanHighPrecisionSensors},
		{"Stream corridor video", PlanCameraCorridor},
		{"Start environmental monitoring", PlanEnvironmental},
	}
	for _, tt := range tests {
		plan, err := h.svc.PlanFromIntent(ctx, tt.intent)
		require.NoError(t, err)
		assert.Equal(t, tt.want, plan.ID, tt.intent)
	}

	plan, err := h.svc.PlanFromIntent(ctx, "turn on the lights")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(plan.ID, "plan-"))
	assert.Equal(t, "turn on the lights", plan.UserIntent)
	assert.Equal(t, []string{"cam-1"}, plan.DeviceIDs())
	require.Len(t, plan.Algorithm.Steps, 1)
	assert.Equal(t, AllDevices, plan.Algorithm.Steps[0].DeviceID)
}

func TestPlanFromIntentFallsBackWhenStoredPlanMissing(t *testing.T) {
	h := newHarness(t)

	plan, err := h.svc.PlanFromIntent(context.Background(), "check the sensors")
	require.NoError(t, err)
	assert.Equal(t, "generated", plan.Status)

	h.plans.err = errors.New("disk on fire")
	_, err = h.svc.PlanFromIntent(context.Background(), "check the sensors")
	assert.EqualError(t, err, "disk on fire")
}

func TestAnalyzePlan(t *testing.T) {
	plan := &model.Plan{
		ID:      "p1",
		Devices: []model.Device{camera("cam-1", "corridor"), sensor("temp-1", "room-1")},
		Algorithm: model.Algorithm{Type: model.ModeParallel, Steps: []model.Step{
			{TimeoutMS: 5000},
			{TimeoutMS: 0},
		}},
	}

	a := AnalyzePlan(plan)

	assert.Equal(t, 2, a.TotalDevices)
	assert.Equal(t, []string{"cam-1", "temp-1"}, a.Devices)
	assert.Equal(t, model.ModeParallel, a.ExecutionMode)
	assert.Equal(t, 2, a.TotalSteps)
	assert.Equal(t, []string{"motion", "camera"}, a.Services["cam-1"])
	assert.Equal(t, int64(6000), a.TimelineEstimateMS)
}

func TestAnalyzeStoredPlan(t *testing.T) {
	h := newHarness(t)
	h.plans.plans["p1"] = storedPlan("p1", model.Step{TimeoutMS: 2000})
	ctx := context.Background()

	a, err := h.svc.AnalyzeStoredPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), a.TimelineEstimateMS)

	_, err = h.svc.AnalyzeStoredPlan(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = h.svc.AnalyzeStoredPlan(ctx, "")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestExpandAllDevices(t *testing.T) {
	plan := &model.Plan{
		Devices: []model.Device{{ID: "a"}, {ID: "b"}},
		Algorithm: model.Algorithm{Steps: []model.Step{
			{DeviceID: AllDevices, Service: "system", Parameters: model.Parameters{"k": "v"}},
			{DeviceID: "a", Service: "camera"},
		}},
	}

	out := ExpandAllDevices(plan)

	require.Len(t, out.Algorithm.Steps, 3)
	assert.Equal(t, "a", out.Algorithm.Steps[0].DeviceID)
	assert.Equal(t, "b", out.Algorithm.Steps[1].DeviceID)
	assert.Equal(t, "camera", out.Algorithm.Steps[2].Service)
	out.Algorithm.Steps[0].Parameters["k"] = "changed"
	assert.Equal(t, "v", out.Algorithm.Steps[1].Parameters["k"])
	assert.Len(t, plan.Algorithm.Steps, 2)

	same := &model.Plan{Algorithm: model.Algorithm{Steps: []model.Step{{DeviceID: "a"}}}}
	assert.Same(t, same, ExpandAllDevices(same))
}

func TestExecuteStoredPlan(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"))
	h.plans.plans["p1"] = storedPlan("p1", step(model.InstructionActivate, "cam-1", "camera"))
	ctx := context.Background()

	plan, rec, err := h.svc.ExecuteStoredPlan(ctx, "p1", "")
	require.NoError(t, err)
	assert.Equal(t, "p1", plan.ID)
	assert.Equal(t, model.ExecutionCompleted, rec.Status)
	assert.Equal(t, "p1", rec.PlanID)

	_, _, err = h.svc.ExecuteStoredPlan(ctx, "", "")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestExecuteIntent(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"))
	ctx := context.Background()

	res, err := h.svc.ExecuteIntent(ctx, "say hello")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Analysis.TotalSteps)
	require.Len(t, res.Execution.StepResults, 1)
	assert.Equal(t, "cam-1", res.Execution.StepResults[0].DeviceID)
	// the generic plan targets a "system" service the camera does not expose
	assert.Equal(t, model.StepFailed, res.Execution.StepResults[0].Status)

	_, err = h.svc.ExecuteIntent(ctx, "  ")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestQueryDevices(t *testing.T) {
	cam := camera("cam-1", "corridor")
	cam.Capabilities = []string{"video", "motion"}
	h := newHarness(t, cam, sensor("temp-1", "room-1"))

	rows := h.svc.QueryDevices(DeviceFilter{}, nil)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{}, rows[1]["capabilities"])

	rows = h.svc.QueryDevices(DeviceFilter{Capabilities: []string{"video"}}, []string{"device_id", "status"})
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"device_id": "cam-1", "status": "active"}, rows[0])

	rows = h.svc.QueryDevices(DeviceFilter{Location: "room-1"}, []string{"device_id"})
	require.Len(t, rows, 1)
	assert.Equal(t, "temp-1", rows[0]["device_id"])
}
