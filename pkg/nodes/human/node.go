// Package human pauses on a human-in-the-loop checkpoint. The answer comes
// from a Responder so a UI, a queue or an automatic policy can stand behind it.
package human

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/agentgraph/pkg/protocol"
)

var ErrRejected = errors.New("human reviewer rejected the request")

type Request struct {
	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Prompt      string `json:"prompt"`
	Payload     any    `json:"payload"`
}

type Response struct {
	Approved bool   `json:"approved"`
	Response any    `json:"response,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

type Responder interface {
	Respond(ctx context.Context, req Request) (Response, error)
}

type ResponderFunc func(ctx context.Context, req Request) (Response, error)

func (f ResponderFunc) Respond(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// AutoApprove approves every request and echoes its payload back.
var AutoApprove = ResponderFunc(func(_ context.Context, req Request) (Response, error) {
	return Response{Approved: true, Response: req.Payload, Comment: "auto-approved"}, nil
})

type Executor struct {
	Responder Responder
}

func New(responder Responder) *Executor {
	if responder == nil {
		responder = AutoApprove
	}

	return &Executor{Responder: responder}
}

func (e *Executor) Execute(ctx context.Context, in protocol.NodeInput) protocol.NodeOutput {
	cfg := in.Node.Payload.Human

	answer, err := e.Responder.Respond(ctx, Request{
		WorkflowID:  in.WorkflowID,
		ExecutionID: in.ExecutionID,
		NodeID:      in.Node.ID,
		Prompt:      cfg.Prompt,
		Payload:     in.Payload(),
	})
	if err != nil {
		return protocol.NodeOutput{Err: fmt.Errorf("human responder: %w", err)}
	}

	response := map[string]any{
		"approved": answer.Approved,
		"response": answer.Response,
		"comment":  answer.Comment,
	}

	if cfg.RequireApproval && !answer.Approved {
		return protocol.NodeOutput{Response: response, Err: ErrRejected}
	}

	return protocol.NodeOutput{Response: response}
}
