package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

func step(instruction model.Instruction, deviceID, service string) model.Step {
	return model.Step{
		Instruction: instruction,
		DeviceID:    deviceID,
		Service:     service,
		TimeoutMS:   model.DefaultStepTimeoutMS,
	}
}

func TestExecutePlanSequential(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"))

	plan := &model.Plan{
		ID: "p1",
		Algorithm: model.Algorithm{Steps: []model.Step{
			step(model.InstructionActivate, "cam-1", "motion"),
			step(model.InstructionActivate, "cam-1", "camera"),
		}},
	}
	rec := h.svc.ExecutePlan(context.Background(), plan)

	assert.Equal(t, model.ExecutionCompleted, rec.Status)
	assert.Equal(t, model.ModeSequential, rec.ExecutionType)
	assert.Equal(t, 2, rec.StepsTotal)
	assert.Equal(t, 2, rec.StepsCompleted)
	require.Len(t, rec.StepResults, 2)
	for i, res := range rec.StepResults {
		assert.Equal(t, i, res.StepIndex)
		assert.Equal(t, model.StepSuccess, res.Status)
		assert.Equal(t, http.MethodPost, res.Method)
	}
	assert.Len(t, rec.DeviceResponses["cam-1"], 2)
	assert.Empty(t, rec.Errors)
	assert.False(t, rec.EndTime.Before(rec.StartTime))

	calls := h.transport.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "http://10.0.0.1:80/motion", calls[0].URL)
	assert.Equal(t, map[string]any{"command": "activate"}, calls[0].Body)

	require.Len(t, h.history.records, 1)
	assert.Equal(t, rec.ExecutionID, h.history.records[0].ExecutionID)
}

func TestExecutePlanStopOnError(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"))

	first := step(model.InstructionActivate, "ghost", "camera")
	first.StopOnError = true
	plan := &model.Plan{
		ID: "p1",
		Algorithm: model.Algorithm{Steps: []model.Step{
			first,
			step(model.InstructionActivate, "cam-1", "camera"),
		}},
	}
	rec := h.svc.ExecutePlan(context.Background(), plan)

	assert.Equal(t, model.ExecutionCompleted, rec.Status)
	require.Len(t, rec.StepResults, 1)
	assert.Equal(t, model.StepFailed, rec.StepResults[0].Status)
	assert.Equal(t, "device ghost not found", rec.StepResults[0].Error)
	assert.Empty(t, h.transport.calls())
}

func TestExecutePlanContinuesPastFailures(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"))

	plan := &model.Plan{
		ID: "p1",
		Algorithm: model.Algorithm{Steps: []model.Step{
			step(model.InstructionActivate, "cam-1", "thermal"),
			step(model.InstructionActivate, "cam-1", "camera"),
		}},
	}
	rec := h.svc.ExecutePlan(context.Background(), plan)

	require.Len(t, rec.StepResults, 2)
	assert.Equal(t, "service thermal not found on device cam-1", rec.StepResults[0].Error)
	assert.Equal(t, model.StepSuccess, rec.StepResults[1].Status)
}

func TestExecutePlanInvalid(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"))

	bad := step(model.InstructionActivate, "cam-1", "camera")
	bad.TimeoutMS = 0
	rec := h.svc.ExecutePlan(context.Background(), &model.Plan{ID: "p1", Algorithm: model.Algorithm{Steps: []model.Step{bad}}})

	assert.Equal(t, model.ExecutionFailed, rec.Status)
	require.Len(t, rec.Errors, 1)
	assert.Contains(t, rec.Errors[0], "invalid plan")
	assert.Empty(t, rec.StepResults)
	assert.Empty(t, h.transport.calls())
	assert.Len(t, h.history.records, 1)
}

func TestExecutePlanParallelKeepsStepOrder(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"), camera("cam-2", "corridor"))
	h.transport.handle = func(req *core.DeviceRequest) (*core.DeviceResponse, error) {
		if req.URL == "http://10.0.0.1:80/motion" {
			time.Sleep(20 * time.Millisecond)
		}
		return &core.DeviceResponse{StatusCode: 200, Body: req.URL, Attempts: 1}, nil
	}

	plan := &model.Plan{
		ID: "p1",
		Algorithm: model.Algorithm{Type: model.ModeParallel, Steps: []model.Step{
			step(model.InstructionActivate, "cam-1", "motion"),
			step(model.InstructionActivate, "cam-2", "motion"),
			step(model.InstructionActivate, "cam-2", "camera"),
		}},
	}
	rec := h.svc.ExecutePlan(context.Background(), plan)

	assert.Equal(t, model.ModeParallel, rec.ExecutionType)
	require.Len(t, rec.StepResults, 3)
	for i, res := range rec.StepResults {
		assert.Equal(t, fmt.Sprintf("step-%d", i), res.StepID)
		assert.Equal(t, model.StepSuccess, res.Status)
	}
	assert.Equal(t, "http://10.0.0.1:80/motion", rec.StepResults[0].Response)
}

func TestExecuteStepOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		handle   func(*core.DeviceRequest) (*core.DeviceResponse, error)
		status   model.StepStatus
		errorMsg string
		code     int
	}{
		{
			name: "timeout",
			handle: func(*core.DeviceRequest) (*core.DeviceResponse, error) {
				return nil, fmt.Errorf("post: %w", core.ErrDeviceTimeout)
			},
			status:   model.StepTimeout,
			errorMsg: "request timeout after 5000ms",
		},
		{
			name: "non 2xx",
			handle: func(*core.DeviceRequest) (*core.DeviceResponse, error) {
				return &core.DeviceResponse{StatusCode: 500, Text: "boom\n", Attempts: 3}, nil
			},
			status:   model.StepFailed,
			errorMsg: "HTTP 500: boom",
			code:     500,
		},
		{
			name: "transport error",
			handle: func(*core.DeviceRequest) (*core.DeviceResponse, error) {
				return nil, fmt.Errorf("connection refused")
			},
			status:   model.StepFailed,
			errorMsg: "connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, camera("cam-1", "corridor"))
			h.transport.handle = tt.handle

			st := step(model.InstructionActivate, "cam-1", "camera")
			res := h.svc.ExecuteStep(context.Background(), 0, &st)

			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.errorMsg, res.Error)
			assert.Equal(t, tt.code, res.ResponseCode)
			assert.True(t, res.Failed())
		})
	}
}

func TestExecuteStepMQTT(t *testing.T) {
	h := newHarness(t, sensor("temp-1", "room-1"))

	st := step(model.InstructionConfigure, "temp-1", "temperature")
	st.Parameters = model.Parameters{"sampling_frequency": 30}
	res := h.svc.ExecuteStep(context.Background(), 2, &st)

	assert.Equal(t, model.StepPublished, res.Status)
	assert.Equal(t, "temp-1/temperature/command", res.Topic)
	assert.Equal(t, "MQTT", res.Protocol)
	require.Len(t, h.publisher.payloads, 1)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(h.publisher.payloads[0], &payload))
	assert.Equal(t, "configure", payload["instruction"])
	assert.Equal(t, map[string]any{"sampling_frequency": float64(30)}, payload["parameters"])
	assert.Equal(t, testNow.Format(time.RFC3339), payload["timestamp"])
}

func TestExecuteStepMQTTWithoutPublisher(t *testing.T) {
	h := newHarness(t, sensor("temp-1", "room-1"))
	h.svc.publisher = nil

	st := step(model.InstructionConfigure, "temp-1", "temperature")
	res := h.svc.ExecuteStep(context.Background(), 0, &st)

	assert.Equal(t, model.StepFailed, res.Status)
	assert.Equal(t, "mqtt publisher unavailable", res.Error)
}

func TestTranslateHTTP(t *testing.T) {
	device := &model.Device{ID: "cam-1", IP: "10.0.0.1", Port: 8080}

	tests := []struct {
		name   string
		step   model.Step
		method string
		url    string
		body   map[string]any
		query  string
	}{
		{
			name:   "deactivate",
			step:   model.Step{Instruction: model.InstructionDeactivate, Service: "camera", Parameters: model.Parameters{"fps": 15}},
			method: http.MethodPost,
			url:    "http://10.0.0.1:8080/camera",
			body:   map[string]any{"command": "deactivate", "fps": 15},
		},
		{
			name:   "query",
			step:   model.Step{Instruction: model.InstructionQuery, Service: "temperature", Parameters: model.Parameters{"unit": "C"}},
			method: http.MethodGet,
			url:    "http://10.0.0.1:8080/temperature",
			query:  "unit=C",
		},
		{
			name:   "https with port override",
			step:   model.Step{Instruction: model.InstructionConfigure, Service: "display", Protocol: "HTTPS", Port: 8443},
			method: http.MethodPost,
			url:    "https://10.0.0.1:8443/display",
			body:   map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := TranslateHTTP(&tt.step, device, 80)
			assert.Equal(t, tt.method, cmd.Method)
			assert.Equal(t, tt.url, cmd.URL)
			assert.Equal(t, tt.body, cmd.Body)
			if tt.query != "" {
				assert.Equal(t, tt.query, cmd.Query.Encode())
			}
		})
	}
}

func TestGetHistoryAndMonitor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for i, planID := range []string{"a", "b", "a"} {
		require.NoError(t, h.history.Append(ctx, &model.ExecutionRecord{
			ExecutionID: fmt.Sprintf("exec-%d", i),
			PlanID:      planID,
			StartTime:   testNow.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := h.svc.GetHistory(ctx, "a", 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Filtered)
	assert.Equal(t, "exec-2", page.Executions[0].ExecutionID)
	assert.Equal(t, "exec-0", page.Executions[1].ExecutionID)

	page, err = h.svc.GetHistory(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, page.Executions, 1)
	assert.Equal(t, "exec-2", page.Executions[0].ExecutionID)

	rec, err := h.svc.Monitor(ctx, "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "b", rec.PlanID)

	_, err = h.svc.Monitor(ctx, "exec-9")
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = h.svc.Monitor(ctx, "")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestEstimatedCompletionMS(t *testing.T) {
	plan := &model.Plan{Algorithm: model.Algorithm{Steps: []model.Step{{TimeoutMS: 5000}, {TimeoutMS: 2000}}}}
	assert.Equal(t, int64(7000), EstimatedCompletionMS(plan))
}

func TestExecutePlanStopsEarly(t *testing.T) {
	steps := func() []model.Step {
		out := []model.Step{step(model.InstructionActivate, "cam-1", "motion")}
		for range 4 {
			out = append(out, step(model.InstructionActivate, "cam-1", "camera"))
		}
		return out
	}

	tests := []struct {
		name        string
		planTimeout time.Duration
		// setup wires the transport and returns the context the plan runs under.
		setup       func(h *harness) context.Context
		wantResults int
		wantErrors  []string
	}{
		{
			name: "step panic is recovered and the run goes on",
			setup: func(h *harness) context.Context {
				h.transport.handle = func(req *core.DeviceRequest) (*core.DeviceResponse, error) {
					if strings.HasSuffix(req.URL, "/motion") {
						panic("boom")
					}
					return &core.DeviceResponse{StatusCode: 200, Attempts: 1}, nil
				}
				return context.Background()
			},
			wantResults: 5,
			wantErrors:  []string{"Step 0: boom"},
		},
		{
			name: "cancellation keeps the prefix of results",
			setup: func(h *harness) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				var calls atomic.Int32
				h.transport.handle = func(*core.DeviceRequest) (*core.DeviceResponse, error) {
					if calls.Add(1) == 3 {
						cancel()
					}
					return &core.DeviceResponse{StatusCode: 200, Attempts: 1}, nil
				}
				return ctx
			},
			wantResults: 3,
			wantErrors:  []string{"execution stopped after 3 of 5 steps: context canceled"},
		},
		{
			name:        "plan timeout stops the remaining steps",
			planTimeout: 50 * time.Millisecond,
			setup: func(h *harness) context.Context {
				h.transport.handle = func(*core.DeviceRequest) (*core.DeviceResponse, error) {
					time.Sleep(150 * time.Millisecond)
					return &core.DeviceResponse{StatusCode: 200, Attempts: 1}, nil
				}
				return context.Background()
			},
			wantResults: 1,
			wantErrors:  []string{"execution stopped after 1 of 5 steps: context deadline exceeded"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, camera("cam-1", "corridor"))
			h.svc.cfg.PlanTimeout = tt.planTimeout
			ctx := tt.setup(h)

			rec := h.svc.ExecutePlan(ctx, &model.Plan{ID: "p1", Algorithm: model.Algorithm{Steps: steps()}})

			assert.Equal(t, model.ExecutionCompleted, rec.Status)
			require.Len(t, rec.StepResults, tt.wantResults)
			for i, res := range rec.StepResults {
				assert.Equal(t, i, res.StepIndex)
			}
			assert.Equal(t, tt.wantErrors, rec.Errors)
			require.Len(t, h.history.records, 1)
		})
	}
}

func TestExecutePlanPanickingStepResult(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"))
	h.transport.handle = func(*core.DeviceRequest) (*core.DeviceResponse, error) { panic("boom") }

	rec := h.svc.ExecutePlan(context.Background(), &model.Plan{ID: "p1", Algorithm: model.Algorithm{Steps: []model.Step{
		step(model.InstructionActivate, "cam-1", "motion"),
	}}})

	require.Len(t, rec.StepResults, 1)
	res := rec.StepResults[0]
	assert.Equal(t, "step-0", res.StepID)
	assert.Equal(t, model.StepFailed, res.Status)
	assert.Equal(t, "boom", res.Error)
	assert.Equal(t, "cam-1", res.DeviceID)
}

func TestExecutePlanParallelRespectsConcurrency(t *testing.T) {
	h := newHarness(t, camera("cam-1", "corridor"))
	h.svc.cfg.Concurrency = 2

	var inFlight, peak atomic.Int32
	h.transport.handle = func(*core.DeviceRequest) (*core.DeviceResponse, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return &core.DeviceResponse{StatusCode: 200, Attempts: 1}, nil
	}

	steps := make([]model.Step, 6)
	for i := range steps {
		steps[i] = step(model.InstructionActivate, "cam-1", "camera")
	}
	rec := h.svc.ExecutePlan(context.Background(), &model.Plan{
		ID:        "p1",
		Algorithm: model.Algorithm{Type: model.ModeParallel, Steps: steps},
	})

	require.Len(t, rec.StepResults, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
	assert.Len(t, h.transport.calls(), 6)
}
