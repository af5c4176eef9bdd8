// Package chat is the conversational entry point of a workflow.
package chat

import (
	"context"
	"maps"

	"github.com/dukex/agentgraph/pkg/protocol"
)

type Executor struct{}

// Execute forwards the payload it received together with the greeting.
func (Executor) Execute(_ context.Context, in protocol.NodeInput) protocol.NodeOutput {
	response := map[string]any{}

	switch payload := in.Payload().(type) {
	case map[string]any:
		maps.Copy(response, payload)
	case nil:
	default:
		response["message"] = payload
	}

	if greeting := in.Node.Payload.ChatInterface.Greeting; greeting != "" {
		response["greeting"] = greeting
	}

	return protocol.NodeOutput{Response: response}
}
