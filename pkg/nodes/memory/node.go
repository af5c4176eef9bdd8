// Package memory stores and retrieves values shared between runs of a
// workflow, scoped by namespace.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/protocol"
)

const keyPrefix = "agentgraph:memory"

type Executor struct {
	Store Store
}

func New(store Store) *Executor {
	if store == nil {
		store = NewInMemoryStore()
	}

	return &Executor{Store: store}
}

// Key is where a workflow's namespace is kept.
func Key(workflowID, namespace string) string {
	if namespace == "" {
		namespace = "default"
	}

	return fmt.Sprintf("%s:%s:%s", keyPrefix, workflowID, namespace)
}

func (e *Executor) Execute(ctx context.Context, in protocol.NodeInput) protocol.NodeOutput {
	cfg := in.Node.Payload.Memory
	key := Key(in.WorkflowID, cfg.Namespace)

	switch cfg.Operation {
	case models.MemoryStore, "":
		raw, err := json.Marshal(in.Payload())
		if err != nil {
			return protocol.NodeOutput{Err: fmt.Errorf("failed to encode memory value: %w", err)}
		}

		if err := e.Store.Put(ctx, key, raw); err != nil {
			return protocol.NodeOutput{Err: err}
		}

		return protocol.NodeOutput{Response: map[string]any{
			"operation": string(models.MemoryStore),
			"namespace": cfg.Namespace,
			"stored":    true,
		}}
	case models.MemoryRetrieve:
		raw, err := e.Store.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return protocol.NodeOutput{Response: map[string]any{
				"operation": string(models.MemoryRetrieve),
				"namespace": cfg.Namespace,
				"found":     false,
			}}
		}

		if err != nil {
			return protocol.NodeOutput{Err: err}
		}

		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return protocol.NodeOutput{Err: fmt.Errorf("failed to decode memory value: %w", err)}
		}

		return protocol.NodeOutput{Response: map[string]any{
			"operation": string(models.MemoryRetrieve),
			"namespace": cfg.Namespace,
			"found":     true,
			"value":     value,
		}}
	default:
		return protocol.NodeOutput{Err: fmt.Errorf("unknown memory operation %q", cfg.Operation)}
	}
}
