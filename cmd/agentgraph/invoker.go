package main

import (
	"context"

	"github.com/dukex/agentgraph/pkg/protocol"
)

// echoInvoker stands in for a real agent backend: every agent, tool and
// connector answers with what it was given.
func echoInvoker() protocol.Invoker {
	return protocol.InvokerFunc(func(ctx context.Context, inv protocol.Invocation) (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		upstream := make([]string, 0, len(inv.Upstream))
		for _, u := range inv.Upstream {
			upstream = append(upstream, u.NodeID)
		}

		return map[string]any{
			"node_id":  inv.Node.ID,
			"kind":     string(inv.Node.Kind),
			"echo":     inv.Input,
			"upstream": upstream,
		}, nil
	})
}
