// Package redis provides Redis persistence for workflow snapshots and
// execution history.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix    = "agentgraph"
	workflowsKey = keyPrefix + ":workflows"
)

func workflowKey(id string) string {
	return keyPrefix + ":workflow:" + id
}

func executionsKey(workflowID string) string {
	return keyPrefix + ":executions:" + workflowID
}

func executionKey(workflowID, executionID string) string {
	return keyPrefix + ":execution:" + workflowID + ":" + executionID
}

// Persistence stores each workflow as a JSON document and keeps sorted sets
// indexing workflows by creation time and executions by start time.
type Persistence struct {
	client goredis.UniversalClient
	logger *slog.Logger
}

// NewPersistence connects to the redis:// URL and checks the connection.
func NewPersistence(ctx context.Context, logger *slog.Logger, url string) (*Persistence, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := goredis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return NewPersistenceWithClient(logger, client), nil
}

func NewPersistenceWithClient(logger *slog.Logger, client goredis.UniversalClient) *Persistence {
	return &Persistence{
		client: client,
		logger: logger.With("module", "redis_persistence"),
	}
}

func (p *Persistence) Close(_ context.Context) error {
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}

func (p *Persistence) HealthCheck(ctx context.Context) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Workflows returns every stored workflow ordered by creation time, then id.
func (p *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	ids, err := p.client.ZRange(ctx, workflowsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := make([]*models.WorkflowDefinition, 0, len(ids))
	if len(ids) == 0 {
		return workflows, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = workflowKey(id)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			p.logger.WarnContext(ctx, "Workflow indexed but missing", "workflow_id", ids[i])

			continue
		}

		var def models.WorkflowDefinition
		if err := json.Unmarshal([]byte(raw), &def); err != nil {
			return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", ids[i], err)
		}

		workflows = append(workflows, &def)
	}

	return workflows, nil
}

func (p *Persistence) SaveWorkflow(ctx context.Context, def *models.WorkflowDefinition) error {
	if err := persistence.CheckWorkflow(def); err != nil {
		return err
	}

	data, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", def.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, workflowKey(def.ID), data, 0)
		pipe.ZAdd(ctx, workflowsKey, goredis.Z{Score: float64(def.CreatedAt.UnixMilli()), Member: def.ID})

		return nil
	})
	if err != nil {
		return persistence.NewWorkflowError("save", def.ID, err)
	}

	return nil
}

func (p *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	data, err := p.client.Get(ctx, workflowKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, persistence.NewWorkflowError("get", id, persistence.ErrWorkflowNotFound)
	}

	if err != nil {
		return nil, persistence.NewWorkflowError("get", id, err)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", id, err)
	}

	return &def, nil
}

// DeleteWorkflow removes the workflow and its execution history. Deleting a
// missing workflow is not an error.
func (p *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	executionIDs, err := p.client.ZRange(ctx, executionsKey(id), 0, -1).Result()
	if err != nil {
		return persistence.NewExecutionError("delete", id, "", err)
	}

	keys := []string{workflowKey(id), executionsKey(id)}
	for _, executionID := range executionIDs {
		keys = append(keys, executionKey(id, executionID))
	}

	_, err = p.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, workflowsKey, id)

		return nil
	})
	if err != nil {
		return persistence.NewWorkflowError("delete", id, err)
	}

	return nil
}

var _ persistence.Persistence = (*Persistence)(nil)
