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

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// GetAll returns all workflows in creation order.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , created_at
		  , updated_at
		FROM workflows
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	workflows := make([]*models.WorkflowDefinition, 0)

	for rows.Next() {
		def, err := scanWorkflow(rows)
		if err != nil {
			r.closeRows(ctx, rows)

			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, def)
	}

	err = rows.Err()
	r.closeRows(ctx, rows)

	if err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, def := range workflows {
		if err := r.loadNodesAndEdges(ctx, def); err != nil {
			return nil, err
		}
	}

	return workflows, nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	query := `
		SELECT
			id
		  , name
		  , description
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	def, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("get", id, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := r.loadNodesAndEdges(ctx, def); err != nil {
		return nil, err
	}

	return def, nil
}

// Save upserts the workflow row and replaces its nodes and edges.
func (r *WorkflowRepository) Save(ctx context.Context, def *models.WorkflowDefinition) (err error) {
	if err := persistence.CheckWorkflow(def); err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	workflowQuery := `
		INSERT INTO workflows (id, name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, workflowQuery, def.ID, def.Name, def.Description, def.CreatedAt, def.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_edges WHERE workflow_id = $1", def.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing edges: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", def.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	err = r.saveNodes(ctx, tx, def)
	if err != nil {
		return err
	}

	err = r.saveEdges(ctx, tx, def)
	if err != nil {
		return err
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) saveNodes(ctx context.Context, tx *sql.Tx, def *models.WorkflowDefinition) error {
	query := `
		INSERT INTO workflow_nodes (workflow_id, id, ordinal, kind, name, position_x, position_y, payload, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for i, node := range def.Nodes {
		payloadJSON, err := json.Marshal(node.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload of node %s: %w", node.ID, err)
		}

		_, err = tx.ExecContext(ctx, query,
			def.ID,
			node.ID,
			i,
			node.Kind,
			node.Name,
			node.Position.X,
			node.Position.Y,
			payloadJSON,
			node.Status,
			node.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save node %s: %w", node.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) saveEdges(ctx context.Context, tx *sql.Tx, def *models.WorkflowDefinition) error {
	query := `
		INSERT INTO workflow_edges (workflow_id, id, ordinal, source_node_id, target_node_id, kind, label, connector, animated, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for i, edge := range def.Edges {
		var connectorJSON []byte

		if edge.Connector != nil {
			raw, err := json.Marshal(edge.Connector)
			if err != nil {
				return fmt.Errorf("failed to marshal connector of edge %s: %w", edge.ID, err)
			}

			connectorJSON = raw
		}

		_, err := tx.ExecContext(ctx, query,
			def.ID,
			edge.ID,
			i,
			edge.SourceNodeID,
			edge.TargetNodeID,
			edge.Kind,
			edge.Label,
			connectorJSON,
			edge.Animated,
			edge.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to save edge %s: %w", edge.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) loadNodesAndEdges(ctx context.Context, def *models.WorkflowDefinition) error {
	nodes, err := r.loadNodes(ctx, def.ID)
	if err != nil {
		return err
	}

	edges, err := r.loadEdges(ctx, def.ID)
	if err != nil {
		return err
	}

	def.Nodes = nodes
	def.Edges = edges

	return nil
}

func (r *WorkflowRepository) loadNodes(ctx context.Context, workflowID string) ([]*models.WorkflowNode, error) {
	query := `
		SELECT id, kind, name, position_x, position_y, payload, status, created_at
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY ordinal
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow nodes: %w", err)
	}

	defer r.closeRows(ctx, rows)

	nodes := make([]*models.WorkflowNode, 0)

	for rows.Next() {
		var (
			node        models.WorkflowNode
			payloadJSON []byte
		)

		err := rows.Scan(
			&node.ID,
			&node.Kind,
			&node.Name,
			&node.Position.X,
			&node.Position.Y,
			&payloadJSON,
			&node.Status,
			&node.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		err = json.Unmarshal(payloadJSON, &node.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload of node %s: %w", node.ID, err)
		}

		nodes = append(nodes, &node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

func (r *WorkflowRepository) loadEdges(ctx context.Context, workflowID string) ([]*models.WorkflowEdge, error) {
	query := `
		SELECT id, source_node_id, target_node_id, kind, label, connector, animated, status
		FROM workflow_edges
		WHERE workflow_id = $1
		ORDER BY ordinal
	`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow edges: %w", err)
	}

	defer r.closeRows(ctx, rows)

	edges := make([]*models.WorkflowEdge, 0)

	for rows.Next() {
		var (
			edge          models.WorkflowEdge
			connectorJSON []byte
		)

		err := rows.Scan(
			&edge.ID,
			&edge.SourceNodeID,
			&edge.TargetNodeID,
			&edge.Kind,
			&edge.Label,
			&connectorJSON,
			&edge.Animated,
			&edge.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}

		if connectorJSON != nil {
			var connector models.ConnectorConfig

			err := json.Unmarshal(connectorJSON, &connector)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal connector of edge %s: %w", edge.ID, err)
			}

			edge.Connector = &connector
		}

		edges = append(edges, &edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}

func (r *WorkflowRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func scanWorkflow(row rowScanner) (*models.WorkflowDefinition, error) {
	var def models.WorkflowDefinition

	err := row.Scan(&def.ID, &def.Name, &def.Description, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &def, nil
}
