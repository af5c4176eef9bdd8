// Package protocol defines the contracts between the execution engine and the
// pluggable work performed by each node.
package protocol

import (
	"context"

	"github.com/dukex/agentgraph/pkg/models"
)

// Upstream is the outcome of a node feeding the current one through a data edge.
type Upstream struct {
	NodeID   string            `json:"node_id"`
	Kind     models.NodeKind   `json:"kind"`
	Status   models.NodeStatus `json:"status"`
	Response any               `json:"response,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Succeeded reports whether the upstream node completed.
func (u Upstream) Succeeded() bool {
	return u.Status == models.NodeStatusCompleted
}

// NodeInput is everything a node may look at while it runs.
type NodeInput struct {
	WorkflowID  string
	ExecutionID string
	Node        *models.WorkflowNode

	// Entry is the run's entry input, passed unchanged.
	Entry map[string]any

	// Upstream holds inbound data-edge sources visited in this run, in edge order.
	Upstream []Upstream

	// Partial is set when at least one upstream source ended in error.
	Partial bool

	// Branch is the branch selected by the planner for decision nodes.
	Branch *models.Branch

	// Results are the outcomes recorded so far in this run.
	Results []models.NodeOutcome
}

// Payload is the value flowing into the node: the entry input for entry
// nodes, the single successful upstream response, or a map of successful
// upstream responses keyed by node id.
func (in NodeInput) Payload() any {
	if len(in.Upstream) == 0 {
		return in.Entry
	}

	ok := make([]Upstream, 0, len(in.Upstream))

	for _, u := range in.Upstream {
		if u.Succeeded() {
			ok = append(ok, u)
		}
	}

	switch len(ok) {
	case 0:
		return nil
	case 1:
		return ok[0].Response
	}

	merged := make(map[string]any, len(ok))
	for _, u := range ok {
		merged[u.NodeID] = u.Response
	}

	return merged
}

// NodeOutput is the result of a node's work.
type NodeOutput struct {
	Response any

	// Err marks the node as failed without stopping the run.
	Err error

	// Halt stops the run with this reason after the node is recorded as failed.
	Halt string
}

// NodeExecutor performs the modeled work of one node kind.
type NodeExecutor interface {
	Execute(ctx context.Context, in NodeInput) NodeOutput
}

type ExecutorFunc func(ctx context.Context, in NodeInput) NodeOutput

func (f ExecutorFunc) Execute(ctx context.Context, in NodeInput) NodeOutput {
	return f(ctx, in)
}
