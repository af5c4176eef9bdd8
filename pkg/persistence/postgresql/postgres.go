// Package postgresql provides PostgreSQL persistence for workflow snapshots
// and execution history.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
	"github.com/dukex/agentgraph/pkg/persistence/sqlbase"
	_ "github.com/lib/pq"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
}

// NewPersistence connects to databaseURL and migrates the schema.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	p, err := NewPersistenceWithDB(ctx, logger, database)
	if err != nil {
		_ = database.Close()

		return nil, err
	}

	return p, nil
}

// NewPersistenceWithDB wraps an open database and migrates the schema.
func NewPersistenceWithDB(ctx context.Context, logger *slog.Logger, database *sql.DB) (*Persistence, error) {
	logger = logger.With("module", "postgresql")

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err := migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		workflowRepo:  NewWorkflowRepository(database, logger),
		executionRepo: NewExecutionRepository(database, logger),
	}, nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func (p *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return p.workflowRepo.GetAll(ctx)
}

func (p *Persistence) SaveWorkflow(ctx context.Context, def *models.WorkflowDefinition) error {
	return p.workflowRepo.Save(ctx, def)
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return p.workflowRepo.GetByID(ctx, id)
}

// DeleteWorkflow removes the workflow, its nodes and edges, and its execution history.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM executions WHERE workflow_id = $1", id)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewExecutionError("delete", id, "", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflows WHERE id = $1", id)
	if err != nil {
		_ = tx.Rollback()

		return persistence.NewWorkflowError("delete", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (p *Persistence) SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	return p.executionRepo.Save(ctx, rec)
}

func (p *Persistence) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	return p.executionRepo.GetByWorkflow(ctx, workflowID)
}

func (p *Persistence) ExecutionByID(ctx context.Context, workflowID, executionID string) (*models.ExecutionRecord, error) {
	return p.executionRepo.GetByID(ctx, workflowID, executionID)
}

var _ persistence.Persistence = (*Persistence)(nil)
