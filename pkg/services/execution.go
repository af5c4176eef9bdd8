package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
	"github.com/dukex/agentgraph/pkg/workflow"
)

// Execution starts, cancels and reports on workflow runs.
type Execution struct {
	engine      *workflow.Engine
	persistence persistence.Persistence
	logger      *slog.Logger
}

// NewExecution creates a new execution service. With persistence configured,
// history is read from it; otherwise from the engine's in-memory history.
func NewExecution(engine *workflow.Engine, p persistence.Persistence, logger *slog.Logger) *Execution {
	return &Execution{
		engine:      engine,
		persistence: p,
		logger:      logger.With("module", "execution_service"),
	}
}

// Plan returns the path a run would take with the given entry input.
func (e *Execution) Plan(workflowID string, entry map[string]any) (*workflow.Plan, error) {
	return e.engine.Plan(workflowID, entry)
}

// Run starts a run. With wait set it blocks until the run finishes or ctx
// ends and returns the final record; otherwise it returns the record as it
// stands right after start.
func (e *Execution) Run(ctx context.Context, workflowID string, entry map[string]any, wait bool) (*models.ExecutionRecord, error) {
	if !wait {
		run, err := e.engine.Start(ctx, workflowID, entry)
		if err != nil {
			return nil, err
		}

		return run.Record(), nil
	}

	return e.engine.Execute(ctx, workflowID, entry)
}

// Cancel asks the active run of the workflow to stop.
func (e *Execution) Cancel(workflowID string) (*models.ExecutionRecord, error) {
	run, ok := e.engine.ActiveRun(workflowID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", workflow.ErrRunNotFound, workflowID)
	}

	run.Cancel()

	return run.Record(), nil
}

// Active returns the record of the run holding the workflow, if any.
func (e *Execution) Active(workflowID string) (*models.ExecutionRecord, bool) {
	run, ok := e.engine.ActiveRun(workflowID)
	if !ok {
		return nil, false
	}

	return run.Record(), true
}

// List returns the finished executions of a workflow, oldest first.
func (e *Execution) List(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	if e.persistence != nil {
		records, err := e.persistence.ExecutionsByWorkflow(ctx, workflowID)
		if err != nil {
			return nil, fmt.Errorf("failed to list executions: %w", err)
		}

		return records, nil
	}

	return e.engine.History().List(workflowID), nil
}

// Get returns one finished execution, or the active one when the id matches.
func (e *Execution) Get(ctx context.Context, workflowID, executionID string) (*models.ExecutionRecord, error) {
	if rec, ok := e.Active(workflowID); ok && rec.ID == executionID {
		return rec, nil
	}

	if e.persistence != nil {
		return e.persistence.ExecutionByID(ctx, workflowID, executionID)
	}

	rec, ok := e.engine.History().Get(workflowID, executionID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExecutionNotFound, executionID)
	}

	return rec, nil
}
