package workflow

import (
	"context"
	"sync"

	"github.com/dukex/agentgraph/pkg/models"
)

// Run is a handle on one execution. The record it exposes is a copy, so it
// can be read while the run is still appending results.
type Run struct {
	ID         string
	WorkflowID string
	Plan       *Plan

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	record *models.ExecutionRecord
}

func newRun(rec *models.ExecutionRecord, plan *Plan, cancel context.CancelFunc) *Run {
	return &Run{
		ID:         rec.ID,
		WorkflowID: rec.WorkflowID,
		Plan:       plan,
		cancel:     cancel,
		done:       make(chan struct{}),
		record:     rec,
	}
}

// Cancel asks the run to stop at the next node boundary.
func (r *Run) Cancel() {
	r.cancel()
}

func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) Record() *models.ExecutionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.record.Clone()
}

// Wait blocks until the run is finalized or ctx is done.
func (r *Run) Wait(ctx context.Context) (*models.ExecutionRecord, error) {
	select {
	case <-r.done:
		return r.Record(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Run) update(fn func(rec *models.ExecutionRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(r.record)
}
