package store

import (
	"context"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
	"github.com/wisesdn-io/wisesdn/internal/pkg/metrics"
	"github.com/wisesdn-io/wisesdn/pkg/log"
)

var _ core.HistoryRecorder = (*HistoryWriter)(nil)

// HistoryWriter is the single writer of execution history. Producers hand
// records to Record, which never blocks; a background loop appends them to
// the store in arrival order.
type HistoryWriter struct {
	store   core.HistoryStore
	inputCh chan *model.ExecutionRecord
	logger  log.Logger
}

// NewHistoryWriter creates a writer with a queue of the given capacity.
func NewHistoryWriter(store core.HistoryStore, buffer int) *HistoryWriter {
	if buffer <= 0 {
		buffer = 1
	}
	return &HistoryWriter{
		store:   store,
		inputCh: make(chan *model.ExecutionRecord, buffer),
		logger:  log.WithName("history"),
	}
}

// Record queues rec. When the queue is full the record is dropped and counted.
func (w *HistoryWriter) Record(rec *model.ExecutionRecord) {
	select {
	case w.inputCh <- rec:
	default:
		metrics.HistoryDropped.Inc()
		w.logger.Warn("History queue full, dropping execution record", "executionID", rec.ExecutionID)
	}
}

// Start appends queued records until ctx is done, then drains the queue.
func (w *HistoryWriter) Start(ctx context.Context) error {
	w.logger.Info("History writer started", "capacity", cap(w.inputCh))

	for {
		select {
		case rec := <-w.inputCh:
			w.write(ctx, rec)

		case <-ctx.Done():
			w.drain()
			return nil
		}
	}
}

func (w *HistoryWriter) drain() {
	count := 0
	for {
		select {
		case rec := <-w.inputCh:
			w.write(context.Background(), rec)
			count++
		default:
			w.logger.Debug("History writer drained", "records", count)
			return
		}
	}
}

// write never fails the caller; errors are logged.
func (w *HistoryWriter) write(ctx context.Context, rec *model.ExecutionRecord) {
	if err := w.store.Append(ctx, rec); err != nil {
		w.logger.Error(err, "Failed to append execution record", "executionID", rec.ExecutionID)
	}
}
