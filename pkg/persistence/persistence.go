// Package persistence provides the storage abstraction for workflow
// snapshots and execution history.
package persistence

import (
	"context"

	"github.com/dukex/agentgraph/pkg/models"
)

// WorkflowRepository stores workflow definitions. Runtime statuses are kept
// as saved; callers reset them when loading into a graph store.
type WorkflowRepository interface {
	Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error)
	SaveWorkflow(ctx context.Context, def *models.WorkflowDefinition) error
	WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	DeleteWorkflow(ctx context.Context, id string) error
}

// ExecutionRepository stores terminal execution records.
type ExecutionRepository interface {
	SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error

	// ExecutionsByWorkflow returns records oldest first.
	ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error)
	ExecutionByID(ctx context.Context, workflowID, executionID string) (*models.ExecutionRecord, error)
}

type Persistence interface {
	WorkflowRepository
	ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
