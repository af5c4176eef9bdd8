package persistence

import (
	"fmt"
	"slices"

	"github.com/dukex/agentgraph/pkg/models"
)

// CheckWorkflow rejects definitions that cannot be addressed.
func CheckWorkflow(def *models.WorkflowDefinition) error {
	if def == nil || def.ID == "" {
		return fmt.Errorf("%w: workflow id is required", ErrInvalidRecord)
	}

	return nil
}

// CheckExecution rejects records that cannot be addressed or are still running.
func CheckExecution(rec *models.ExecutionRecord) error {
	switch {
	case rec == nil || rec.ID == "":
		return fmt.Errorf("%w: execution id is required", ErrInvalidRecord)
	case rec.WorkflowID == "":
		return fmt.Errorf("%w: workflow id is required", ErrInvalidRecord)
	case !rec.Status.IsTerminal():
		return fmt.Errorf("%w: execution %s is %s", ErrInvalidRecord, rec.ID, rec.Status)
	}

	return nil
}

// SortExecutions orders records oldest first, by id on ties.
func SortExecutions(records []*models.ExecutionRecord) {
	slices.SortStableFunc(records, func(a, b *models.ExecutionRecord) int {
		if c := a.StartedAt.Compare(b.StartedAt); c != 0 {
			return c
		}

		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}

		return 0
	})
}
