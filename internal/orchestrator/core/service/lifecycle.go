package service

import (
	"context"
	"time"

	"github.com/looplab/fsm"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	fsmutil "github.com/wisesdn-io/wisesdn/internal/pkg/util/fsm"
	"github.com/wisesdn-io/wisesdn/pkg/log"
)

const (
	// EventStart moves a created execution to executing.
	EventStart = "event_start"
	// EventComplete finalizes an execution whose step loop ran to the end.
	EventComplete = "event_complete"
	// EventFail finalizes an execution whose step loop could not run.
	EventFail = "event_fail"
)

// executionLifecycle drives an ExecutionRecord through
// created -> executing -> {completed | failed}.
type executionLifecycle struct {
	*fsm.FSM

	rec    *model.ExecutionRecord
	now    func() time.Time
	logger log.Logger
}

func newExecutionLifecycle(rec *model.ExecutionRecord, now func() time.Time, logger log.Logger) *executionLifecycle {
	l := &executionLifecycle{rec: rec, now: now, logger: logger}

	created := string(model.ExecutionCreated)
	executing := string(model.ExecutionExecuting)
	completed := string(model.ExecutionCompleted)
	failed := string(model.ExecutionFailed)

	events := fsm.Events{
		{Name: EventStart, Src: []string{created}, Dst: executing},
		{Name: EventComplete, Src: []string{executing}, Dst: completed},
		{Name: EventFail, Src: []string{created, executing}, Dst: failed},
	}

	callbacks := fsm.Callbacks{
		"enter_state":        fsmutil.WrapEvent(l.actionSyncStatus),
		"enter_" + completed: fsmutil.WrapEvent(l.actionFinalize),
		"enter_" + failed:    fsmutil.WrapEvent(l.actionEnterFailed),
	}

	l.FSM = fsm.NewFSM(created, events, callbacks)
	return l
}

// fire triggers event and reports transitions the machine rejects. The fsm
// drops transitions whose context is done, so cancellation is stripped: a
// stopped run still has to be finalized.
func (l *executionLifecycle) fire(ctx context.Context, event string, args ...any) error {
	err := l.Event(context.WithoutCancel(ctx), event, args...)
	if fsmutil.IsRealError(err) {
		l.logger.Error(err, "Rejected execution transition", "event", event, "state", l.Current())
		return err
	}
	return nil
}

// actionSyncStatus mirrors every state change onto the record.
func (l *executionLifecycle) actionSyncStatus(_ context.Context, e *fsm.Event) error {
	l.rec.Status = model.ExecutionStatus(e.Dst)
	return nil
}

// actionEnterFailed records the cause passed as the first event argument.
func (l *executionLifecycle) actionEnterFailed(ctx context.Context, e *fsm.Event) error {
	if len(e.Args) > 0 {
		if err, ok := e.Args[0].(error); ok && err != nil {
			l.rec.Errors = append(l.rec.Errors, err.Error())
		}
	}
	return l.actionFinalize(ctx, e)
}

// actionFinalize stamps the end time and duration.
func (l *executionLifecycle) actionFinalize(_ context.Context, _ *fsm.Event) error {
	end := l.now()
	if end.Before(l.rec.StartTime) {
		end = l.rec.StartTime
	}
	l.rec.EndTime = end
	l.rec.DurationMS = float64(end.Sub(l.rec.StartTime).Microseconds()) / 1000
	l.rec.StepsCompleted = len(l.rec.StepResults)
	return nil
}
