package store

import (
	"context"
	"slices"
	"time"

	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core"
	"github.com/wisesdn-io/wisesdn/internal/orchestrator/core/model"
)

const (
	HistoryFile = "execution_history.json"

	// MaxHistory is the number of execution records kept.
	MaxHistory = 100
)

var _ core.HistoryStore = (*FileHistory)(nil)

type historyDocument struct {
	Executions  []*model.ExecutionRecord `json:"executions"`
	LastUpdated time.Time                `json:"last_updated"`
}

// FileHistory keeps the most recent executions in execution_history.json.
type FileHistory struct {
	docs  *Documents
	limit int
}

// NewFileHistory returns a file-backed history capped at MaxHistory records.
func NewFileHistory(docs *Documents) *FileHistory {
	return &FileHistory{docs: docs, limit: MaxHistory}
}

// Append adds rec and drops the oldest records beyond the cap.
func (h *FileHistory) Append(ctx context.Context, rec *model.ExecutionRecord) error {
	var doc historyDocument
	return h.docs.Update(HistoryFile, &doc, func() error {
		doc.Executions = append(doc.Executions, rec)
		if over := len(doc.Executions) - h.limit; over > 0 {
			doc.Executions = doc.Executions[over:]
		}
		doc.LastUpdated = time.Now().UTC()
		return nil
	})
}

// List returns the stored records, newest first.
func (h *FileHistory) List(ctx context.Context) ([]*model.ExecutionRecord, error) {
	var doc historyDocument
	if _, err := h.docs.Read(HistoryFile, &doc); err != nil {
		return nil, err
	}
	out := slices.Clone(doc.Executions)
	slices.Reverse(out)
	return out, nil
}
