package persistence_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("get", "workflow-123", persistence.ErrWorkflowNotFound)
		executionErr := persistence.NewExecutionError("get", "workflow-123", "exec-1", persistence.ErrExecutionNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.False(t, persistence.IsExecutionNotFound(workflowErr))
		assert.True(t, persistence.IsExecutionNotFound(executionErr))

		assert.True(t, errors.Is(workflowErr, persistence.ErrWorkflowNotFound))
		assert.True(t, errors.Is(executionErr, persistence.ErrExecutionNotFound))
	})

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("save", "workflow-123", persistence.ErrWorkflowNotFound)

		assert.Contains(t, err.Error(), "save")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "workflow not found")
	})

	t.Run("execution error contains context", func(t *testing.T) {
		err := persistence.NewExecutionError("list", "workflow-123", "", persistence.ErrExecutionNotFound)
		assert.Contains(t, err.Error(), "executions of workflow workflow-123")

		err = persistence.NewExecutionError("get", "workflow-123", "exec-9", persistence.ErrExecutionNotFound)
		assert.Contains(t, err.Error(), "execution exec-9")
	})
}

func TestCheckExecution(t *testing.T) {
	tests := []struct {
		name    string
		rec     *models.ExecutionRecord
		wantErr bool
	}{
		{name: "nil", rec: nil, wantErr: true},
		{name: "missing id", rec: &models.ExecutionRecord{WorkflowID: "wf", Status: models.ExecutionStatusCompleted}, wantErr: true},
		{name: "missing workflow", rec: &models.ExecutionRecord{ID: "e", Status: models.ExecutionStatusCompleted}, wantErr: true},
		{name: "still running", rec: &models.ExecutionRecord{ID: "e", WorkflowID: "wf", Status: models.ExecutionStatusRunning}, wantErr: true},
		{name: "terminal", rec: &models.ExecutionRecord{ID: "e", WorkflowID: "wf", Status: models.ExecutionStatusError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := persistence.CheckExecution(tt.rec)
			if tt.wantErr {
				assert.ErrorIs(t, err, persistence.ErrInvalidRecord)

				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestSortExecutions(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []*models.ExecutionRecord{
		{ID: "c", StartedAt: base.Add(time.Minute)},
		{ID: "b", StartedAt: base},
		{ID: "a", StartedAt: base},
	}

	persistence.SortExecutions(records)

	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}

	assert.Equal(t, []string{"a", "b", "c"}, ids)
}
