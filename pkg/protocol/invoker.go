package protocol

import (
	"context"

	"github.com/dukex/agentgraph/pkg/models"
)

// Invocation asks the external collaborator to run an agent or tool node.
type Invocation struct {
	WorkflowID  string
	ExecutionID string
	Node        *models.WorkflowNode
	Input       any
	Upstream    []Upstream
}

// Invoker is the external agent-invocation collaborator. Real deployments
// call a model or a tool here; the engine only relies on the contract that a
// returned error fails the node and a panic is treated the same way.
type Invoker interface {
	Invoke(ctx context.Context, inv Invocation) (any, error)
}

type InvokerFunc func(ctx context.Context, inv Invocation) (any, error)

func (f InvokerFunc) Invoke(ctx context.Context, inv Invocation) (any, error) {
	return f(ctx, inv)
}
