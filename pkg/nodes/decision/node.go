// Package decision records the branch a decision node routed the run to.
package decision

import (
	"context"

	"github.com/dukex/agentgraph/pkg/protocol"
)

// Executor reports the branch chosen at planning time. Selection itself
// happens in the planner so the path is known before the run starts.
type Executor struct{}

func (Executor) Execute(_ context.Context, in protocol.NodeInput) protocol.NodeOutput {
	if in.Branch == nil {
		return protocol.NodeOutput{Response: map[string]any{
			"branch":   "",
			"terminal": true,
		}}
	}

	return protocol.NodeOutput{Response: map[string]any{
		"branch":    in.Branch.Name,
		"target":    in.Branch.TargetNodeID,
		"default":   in.Branch.Default,
		"condition": in.Branch.Condition,
		"input":     in.Payload(),
	}}
}
