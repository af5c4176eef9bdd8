package workflow

import (
	"sync"

	"github.com/dukex/agentgraph/pkg/models"
)

// History keeps the terminal execution records of each workflow, oldest
// first. A positive limit bounds the records kept per workflow.
type History struct {
	mu      sync.RWMutex
	limit   int
	records map[string][]*models.ExecutionRecord
}

func NewHistory(limit int) *History {
	return &History{limit: limit, records: make(map[string][]*models.ExecutionRecord)}
}

func (h *History) Append(rec *models.ExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	list := append(h.records[rec.WorkflowID], rec.Clone())
	if h.limit > 0 && len(list) > h.limit {
		list = list[len(list)-h.limit:]
	}

	h.records[rec.WorkflowID] = list
}

// List returns copies of the records of a workflow.
func (h *History) List(workflowID string) []*models.ExecutionRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()

	list := h.records[workflowID]
	out := make([]*models.ExecutionRecord, 0, len(list))

	for _, rec := range list {
		out = append(out, rec.Clone())
	}

	return out
}

// Get finds a record by execution id.
func (h *History) Get(workflowID, executionID string) (*models.ExecutionRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, rec := range h.records[workflowID] {
		if rec.ID == executionID {
			return rec.Clone(), true
		}
	}

	return nil, false
}

func (h *History) Forget(workflowID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.records, workflowID)
}
