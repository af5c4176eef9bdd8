package workflow

import (
	"context"

	"github.com/dukex/agentgraph/pkg/a2a"
	"github.com/dukex/agentgraph/pkg/protocol"
)

// InvokerTransport delivers agent-to-agent messages by invoking the target
// agent with the rendered message.
// nolint:ireturn
func InvokerTransport(invoker protocol.Invoker) a2a.Transport {
	if invoker == nil {
		return nil
	}

	return a2a.TransportFunc(func(ctx context.Context, msg a2a.Message) (any, error) {
		from := ""
		if msg.From != nil {
			from = msg.From.ID
		}

		return invoker.Invoke(ctx, protocol.Invocation{
			WorkflowID:  msg.WorkflowID,
			ExecutionID: msg.ExecutionID,
			Node:        msg.To,
			Input: map[string]any{
				"message": msg.Content,
				"from":    from,
				"payload": msg.Payload,
			},
		})
	})
}
