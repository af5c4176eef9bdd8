// Package aggregator joins the outputs of several upstream nodes into one.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/protocol"
)

// Executor combines upstream responses according to the node's strategy.
type Executor struct{}

func (Executor) Execute(_ context.Context, in protocol.NodeInput) protocol.NodeOutput {
	cfg := in.Node.Payload.Aggregator

	received := make([]string, 0, len(in.Upstream))
	failed := make([]string, 0)
	responses := make([]protocol.Upstream, 0, len(in.Upstream))

	for _, u := range in.Upstream {
		if u.Succeeded() {
			received = append(received, u.NodeID)
			responses = append(responses, u)
		} else {
			failed = append(failed, u.NodeID)
		}
	}

	if cfg.RequireAllSuccess && len(failed) > 0 {
		reason := fmt.Sprintf("aggregator requires all inputs to succeed; failed: %s", strings.Join(failed, ", "))

		return protocol.NodeOutput{Err: errors.New(reason), Halt: reason}
	}

	result, err := combine(cfg.Strategy, responses)
	if err != nil {
		return protocol.NodeOutput{Err: err}
	}

	return protocol.NodeOutput{Response: map[string]any{
		"strategy": string(cfg.Strategy),
		"received": received,
		"missing":  failed,
		"result":   result,
	}}
}

func combine(strategy models.AggregationStrategy, inputs []protocol.Upstream) (any, error) {
	switch strategy {
	case models.AggregateMerge, "":
		merged := make(map[string]any)

		for _, u := range inputs {
			if m, ok := u.Response.(map[string]any); ok {
				for k, v := range m {
					merged[k] = v
				}

				continue
			}

			merged[u.NodeID] = u.Response
		}

		return merged, nil
	case models.AggregateConcat:
		out := make([]any, 0, len(inputs))
		for _, u := range inputs {
			out = append(out, u.Response)
		}

		return out, nil
	case models.AggregateFirst:
		if len(inputs) == 0 {
			return nil, nil
		}

		return inputs[0].Response, nil
	default:
		return nil, fmt.Errorf("unknown aggregation strategy: %s", strategy)
	}
}
