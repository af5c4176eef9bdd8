package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
)

// ExecutionRepository stores execution records as JSONB with the columns
// needed to filter and order them.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (r *ExecutionRepository) Save(ctx context.Context, rec *models.ExecutionRecord) error {
	if err := persistence.CheckExecution(rec); err != nil {
		return err
	}

	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", rec.ID, err)
	}

	var failedNode sql.NullString
	if rec.FailedNodeID != "" {
		failedNode = sql.NullString{String: rec.FailedNodeID, Valid: true}
	}

	query := `
		INSERT INTO executions (id, workflow_id, status, started_at, finished_at, failed_node_id, cancelled, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			finished_at = EXCLUDED.finished_at,
			failed_node_id = EXCLUDED.failed_node_id,
			cancelled = EXCLUDED.cancelled,
			record = EXCLUDED.record
	`

	_, err = r.db.ExecContext(ctx, query,
		rec.ID,
		rec.WorkflowID,
		rec.Status,
		rec.StartedAt,
		rec.FinishedAt,
		failedNode,
		rec.Cancelled,
		recordJSON,
	)
	if err != nil {
		return persistence.NewExecutionError("save", rec.WorkflowID, rec.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	query := `
		SELECT record
		FROM executions
		WHERE workflow_id = $1
		ORDER BY started_at, id
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, persistence.NewExecutionError("list", workflowID, "", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.ExecutionRecord, 0)

	for rows.Next() {
		var raw []byte

		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		rec, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return records, nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, workflowID, executionID string) (*models.ExecutionRecord, error) {
	var raw []byte

	err := r.db.QueryRowContext(ctx,
		"SELECT record FROM executions WHERE workflow_id = $1 AND id = $2",
		workflowID, executionID,
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("get", workflowID, executionID, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("get", workflowID, executionID, err)
	}

	return decodeRecord(raw)
}

func decodeRecord(raw []byte) (*models.ExecutionRecord, error) {
	var rec models.ExecutionRecord

	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution record: %w", err)
	}

	return &rec, nil
}
