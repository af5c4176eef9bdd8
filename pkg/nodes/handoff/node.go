// Package handoff transfers control from one agent to another, forwarding as
// much context as the node's preservation mode allows.
package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/protocol"
)

const summaryLimit = 280

var ErrNoContext = errors.New("no upstream context to hand off")

type Executor struct{}

func (Executor) Execute(_ context.Context, in protocol.NodeInput) protocol.NodeOutput {
	cfg := in.Node.Payload.Handoff
	payload := in.Payload()

	mode := cfg.ContextPreservation
	if mode == "" {
		mode = models.ContextFull
	}

	response := map[string]any{
		"from": cfg.SourceAgentID,
		"to":   cfg.TargetAgentID,
		"mode": string(mode),
	}

	if in.Partial {
		if payload == nil && cfg.FallbackAction == "" {
			return protocol.NodeOutput{Err: fmt.Errorf("%w from %s", ErrNoContext, cfg.SourceAgentID)}
		}

		if cfg.FallbackAction != "" {
			response["fallback"] = cfg.FallbackAction
		}
	}

	switch mode {
	case models.ContextFull:
		response["context"] = payload
		response["entry"] = in.Entry
	case models.ContextSummary:
		summary, err := summarize(payload)
		if err != nil {
			return protocol.NodeOutput{Err: err}
		}

		response["context"] = summary
	case models.ContextNone:
		response["context"] = map[string]any{}
	default:
		return protocol.NodeOutput{Err: fmt.Errorf("unknown context preservation %q", mode)}
	}

	return protocol.NodeOutput{Response: response}
}

func summarize(v any) (string, error) {
	if s, ok := v.(string); ok {
		return truncate(s), nil
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode handoff context: %w", err)
	}

	return truncate(string(raw)), nil
}

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= summaryLimit {
		return s
	}

	return string(r[:summaryLimit]) + "..."
}
