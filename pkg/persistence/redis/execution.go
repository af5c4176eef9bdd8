package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
	goredis "github.com/redis/go-redis/v9"
)

func (p *Persistence) SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	if err := persistence.CheckExecution(rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", rec.ID, err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, executionKey(rec.WorkflowID, rec.ID), data, 0)
		pipe.ZAdd(ctx, executionsKey(rec.WorkflowID), goredis.Z{Score: float64(rec.StartedAt.UnixMilli()), Member: rec.ID})

		return nil
	})
	if err != nil {
		return persistence.NewExecutionError("save", rec.WorkflowID, rec.ID, err)
	}

	return nil
}

// ExecutionsByWorkflow returns the workflow's history, oldest first.
func (p *Persistence) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	ids, err := p.client.ZRange(ctx, executionsKey(workflowID), 0, -1).Result()
	if err != nil {
		return nil, persistence.NewExecutionError("list", workflowID, "", err)
	}

	records := make([]*models.ExecutionRecord, 0, len(ids))
	if len(ids) == 0 {
		return records, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = executionKey(workflowID, id)
	}

	values, err := p.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, persistence.NewExecutionError("list", workflowID, "", err)
	}

	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			p.logger.WarnContext(ctx, "Execution indexed but missing", "workflow_id", workflowID, "execution_id", ids[i])

			continue
		}

		var rec models.ExecutionRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution %s: %w", ids[i], err)
		}

		records = append(records, &rec)
	}

	persistence.SortExecutions(records)

	return records, nil
}

func (p *Persistence) ExecutionByID(ctx context.Context, workflowID, executionID string) (*models.ExecutionRecord, error) {
	data, err := p.client.Get(ctx, executionKey(workflowID, executionID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, persistence.NewExecutionError("get", workflowID, executionID, persistence.ErrExecutionNotFound)
	}

	if err != nil {
		return nil, persistence.NewExecutionError("get", workflowID, executionID, err)
	}

	var rec models.ExecutionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", executionID, err)
	}

	return &rec, nil
}
