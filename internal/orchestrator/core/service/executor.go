package service

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/internal/pkg/metrics"
	"github.com/wisesdn-io/wisesdn/pkg/log"
)

// DefaultHistoryLimit is the page size of GetHistory when none is given.
const DefaultHistoryLimit = 10

// ExecutePlan runs every step of plan and returns the finalized record. Step
// failures never fail the run; only a plan that cannot be executed at all ends
// in the failed state. The record is queued for history in every case.
func (s *Service) ExecutePlan(ctx context.Context, plan *model.Plan) *model.ExecutionRecord {
	steps := plan.Algorithm.Steps
	mode := plan.Algorithm.Mode()

	rec := &model.ExecutionRecord{
		ExecutionID:     "exec-" + uuid.NewString(),
		PlanID:          plan.ID,
		Status:          model.ExecutionCreated,
		ExecutionType:   mode,
		StartTime:       s.now(),
		StepsTotal:      len(steps),
		StepResults:     []model.StepResult{},
		DeviceResponses: map[string][]model.DeviceResponse{},
		Errors:          []string{},
	}
	logger := log.FromContext(ctx).WithName("executor").WithValues("execution", rec.ExecutionID, "plan", plan.ID, "mode", mode)

	lc := newExecutionLifecycle(rec, s.now, logger)
	_ = lc.fire(ctx, EventStart)

	s.running.Store(rec.ExecutionID, model.ExecutionRecord{
		ExecutionID:   rec.ExecutionID,
		PlanID:        rec.PlanID,
		Status:        rec.Status,
		ExecutionType: rec.ExecutionType,
		StartTime:     rec.StartTime,
		StepsTotal:    rec.StepsTotal,
	})
	defer s.running.Delete(rec.ExecutionID)

	defer func() {
		metrics.PlanExecutions.WithLabelValues(string(rec.Status), string(mode)).Inc()
		s.recorder.Record(rec)
		logger.Info("Plan execution finished", "status", rec.Status,
			"steps", fmt.Sprintf("%d/%d", rec.StepsCompleted, rec.StepsTotal), "duration_ms", rec.DurationMS)
	}()

	if err := plan.Validate(); err != nil {
		_ = lc.fire(ctx, EventFail, fmt.Errorf("invalid plan: %w", err))
		return rec
	}

	runCtx := ctx
	if s.cfg.PlanTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.PlanTimeout)
		defer cancel()
	}

	logger.Info("Executing plan", "steps", len(steps))

	results, err := s.runSteps(runCtx, mode, steps, rec)
	rec.StepResults = results
	collectDeviceResponses(rec)

	if err != nil {
		logger.Error(err, "Plan execution aborted")
		_ = lc.fire(ctx, EventFail, err)
		return rec
	}
	if len(results) < len(steps) && runCtx.Err() != nil {
		rec.Errors = append(rec.Errors, fmt.Sprintf("execution stopped after %d of %d steps: %v", len(results), len(steps), runCtx.Err()))
	}

	_ = lc.fire(ctx, EventComplete)
	return rec
}

// runSteps converts a panic escaping the step loop itself into an error.
func (s *Service) runSteps(ctx context.Context, mode model.ExecutionMode, steps []model.Step, rec *model.ExecutionRecord) (results []model.StepResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step loop panicked: %v", r)
		}
	}()

	var stepErrs []string
	if mode == model.ModeParallel {
		results, stepErrs = s.runParallel(ctx, steps)
	} else {
		results, stepErrs = s.runSequential(ctx, steps)
	}
	rec.Errors = append(rec.Errors, stepErrs...)
	return results, nil
}

// runSequential runs steps in order and stops after a failed stop_on_error step
// or when ctx ends. The results are always a prefix of steps.
func (s *Service) runSequential(ctx context.Context, steps []model.Step) ([]model.StepResult, []string) {
	results := make([]model.StepResult, 0, len(steps))
	var errs []string

	for i := range steps {
		if ctx.Err() != nil {
			break
		}

		res, stepErr := s.safeExecuteStep(ctx, i, &steps[i])
		results = append(results, res)
		if stepErr != "" {
			errs = append(errs, stepErr)
		}

		if steps[i].StopOnError && res.Failed() {
			s.logger.Info("Stopping plan after failed step", "step", res.StepID, "error", res.Error)
			break
		}
	}

	return results, errs
}

// runParallel runs steps on a bounded pool. Results are ordered by step index;
// steps that never started because ctx ended are left out.
func (s *Service) runParallel(ctx context.Context, steps []model.Step) ([]model.StepResult, []string) {
	slots := make([]*model.StepResult, len(steps))
	stepErrs := make([]string, len(steps))

	var g errgroup.Group
	g.SetLimit(min(len(steps), s.cfg.Concurrency))

	for i := range steps {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			res, stepErr := s.safeExecuteStep(ctx, i, &steps[i])
			slots[i] = &res
			stepErrs[i] = stepErr
			return nil
		})
	}
	_ = g.Wait()

	results := make([]model.StepResult, 0, len(steps))
	var errs []string
	for i, res := range slots {
		if res != nil {
			results = append(results, *res)
		}
		if stepErrs[i] != "" {
			errs = append(errs, stepErrs[i])
		}
	}
	return results, errs
}

// safeExecuteStep turns a panic inside a step into a failed result and a plan error.
func (s *Service) safeExecuteStep(ctx context.Context, index int, step *model.Step) (res model.StepResult, planErr string) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(fmt.Errorf("%v", r), "Step panicked", "step", index, "stack", string(debug.Stack()))
			res = model.StepResult{
				StepID:      fmt.Sprintf("step-%d", index),
				StepIndex:   index,
				Instruction: step.Instruction,
				DeviceID:    step.DeviceID,
				Service:     step.Service,
				Status:      model.StepFailed,
				Error:       fmt.Sprintf("%v", r),
			}
			planErr = fmt.Sprintf("Step %d: %v", index, r)
		}
	}()

	return s.ExecuteStep(ctx, index, step), ""
}

// collectDeviceResponses groups successful responses by device in step order.
func collectDeviceResponses(rec *model.ExecutionRecord) {
	for _, res := range rec.StepResults {
		if res.Status != model.StepSuccess || res.DeviceID == "" {
			continue
		}
		rec.DeviceResponses[res.DeviceID] = append(rec.DeviceResponses[res.DeviceID], model.DeviceResponse{
			Service:  res.Service,
			Response: res.Response,
		})
	}
}

// GetHistory returns recorded executions, newest first, optionally filtered by plan.
func (s *Service) GetHistory(ctx context.Context, planID string, limit int) (*model.HistoryPage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if s.history == nil {
		return &model.HistoryPage{Executions: []*model.ExecutionRecord{}}, nil
	}

	all, err := s.history.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list execution history: %w", err)
	}

	matched := make([]*model.ExecutionRecord, 0, len(all))
	for _, rec := range all {
		if planID == "" || rec.PlanID == planID {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].StartTime.After(matched[j].StartTime)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}

	return &model.HistoryPage{Total: len(all), Filtered: len(matched), Executions: matched}, nil
}

// Monitor returns the record of one execution. Executions still in flight are
// reported with their header only.
func (s *Service) Monitor(ctx context.Context, executionID string) (*model.ExecutionRecord, error) {
	if executionID == "" {
		return nil, core.MissingField("execution_id")
	}
	if v, ok := s.running.Load(executionID); ok {
		header := v.(model.ExecutionRecord)
		return &header, nil
	}
	if s.history == nil {
		return nil, core.NotFound("execution", executionID)
	}

	all, err := s.history.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list execution history: %w", err)
	}
	for _, rec := range all {
		if rec.ExecutionID == executionID {
			return rec, nil
		}
	}
	return nil, core.NotFound("execution", executionID)
}

// EstimatedCompletionMS is the sum of the step timeouts of plan.
func EstimatedCompletionMS(plan *model.Plan) int64 {
	var total int64
	for _, st := range plan.Algorithm.Steps {
		total += int64(st.TimeoutMS)
	}
	return total
}
