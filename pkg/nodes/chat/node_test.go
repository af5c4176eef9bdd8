package chat

import (
	"context"
	"testing"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/protocol"
	"github.com/stretchr/testify/assert"
)

func TestExecutor_Execute(t *testing.T) {
	node := &models.WorkflowNode{
		ID:      "chat",
		Kind:    models.NodeKindChatInterface,
		Payload: models.NodePayload{ChatInterface: &models.ChatInterfacePayload{Greeting: "Hi!"}},
	}

	out := Executor{}.Execute(context.Background(), protocol.NodeInput{
		Node:  node,
		Entry: map[string]any{"message": "where is my order"},
	})

	assert.NoError(t, out.Err)
	assert.Equal(t, map[string]any{"message": "where is my order", "greeting": "Hi!"}, out.Response)

	out = Executor{}.Execute(context.Background(), protocol.NodeInput{
		Node:     node,
		Upstream: []protocol.Upstream{{NodeID: "a", Status: models.NodeStatusCompleted, Response: "plain"}},
	})

	assert.Equal(t, map[string]any{"message": "plain", "greeting": "Hi!"}, out.Response)
}
