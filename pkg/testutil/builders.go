// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"log/slog"
	"os"
	"time"

	"github.com/dukex/agentgraph/pkg/models"
)

// Logger returns a logger that only prints errors.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// CreateTestNode creates an idle node of the given kind with a minimal
// payload. Overrides run last.
func CreateTestNode(id string, kind models.NodeKind, overrides ...func(*models.WorkflowNode)) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:        id,
		Kind:      kind,
		Name:      id,
		Position:  models.Position{X: 100, Y: 200},
		Status:    models.NodeStatusIdle,
		CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	switch kind {
	case models.NodeKindAgent:
		node.Payload.Agent = &models.AgentPayload{
			AgentID:             id,
			Name:                id,
			ReasoningPattern:    models.ReasoningSequential,
			Reflection:          true,
			ChainOfThoughtDepth: 3,
		}
	case models.NodeKindTool:
		node.Payload.Tool = &models.ToolPayload{ToolID: id, Name: id}
	case models.NodeKindDecision:
		node.Payload.Decision = &models.DecisionPayload{}
	case models.NodeKindHandoff:
		node.Payload.Handoff = &models.HandoffPayload{ContextPreservation: models.ContextFull}
	case models.NodeKindHuman:
		node.Payload.Human = &models.HumanPayload{}
	case models.NodeKindMemory:
		node.Payload.Memory = &models.MemoryPayload{MemoryType: "short_term", Namespace: "default", Operation: models.MemoryStore}
	case models.NodeKindGuardrail:
		node.Payload.Guardrail = &models.GuardrailPayload{Action: models.GuardrailBlock}
	case models.NodeKindAggregator:
		node.Payload.Aggregator = &models.AggregatorPayload{Strategy: models.AggregateMerge}
	case models.NodeKindMonitor:
		node.Payload.Monitor = &models.MonitorPayload{}
	case models.NodeKindChatInterface:
		node.Payload.ChatInterface = &models.ChatInterfacePayload{}
	case models.NodeKindA2AConnector:
		node.Payload.A2AConnector = &models.A2AConnectorPayload{ConnectionType: "direct", TimeoutUnits: IntPtr(30), RetryCount: IntPtr(3)}
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

func Agent(id string) *models.WorkflowNode {
	return CreateTestNode(id, models.NodeKindAgent)
}

// Decision builds a decision node with the given branches.
func Decision(id string, branches ...models.Branch) *models.WorkflowNode {
	return CreateTestNode(id, models.NodeKindDecision, func(n *models.WorkflowNode) {
		n.Payload.Decision.Branches = branches
	})
}

func Aggregator(id string, requireAllSuccess bool) *models.WorkflowNode {
	return CreateTestNode(id, models.NodeKindAggregator, func(n *models.WorkflowNode) {
		n.Payload.Aggregator.RequireAllSuccess = requireAllSuccess
	})
}

func Guardrail(id string, action models.GuardrailAction, blockedTerms ...string) *models.WorkflowNode {
	return CreateTestNode(id, models.NodeKindGuardrail, func(n *models.WorkflowNode) {
		n.Payload.Guardrail.Action = action
		n.Payload.Guardrail.BlockedTerms = blockedTerms
	})
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

// Connector builds an agent-to-agent connector node between two agents.
func Connector(id, from, to string, retries int) *models.WorkflowNode {
	return CreateTestNode(id, models.NodeKindA2AConnector, func(n *models.WorkflowNode) {
		n.Payload.A2AConnector.FromAgentID = from
		n.Payload.A2AConnector.ToAgentID = to
		n.Payload.A2AConnector.RetryCount = IntPtr(retries)
		n.Payload.A2AConnector.TimeoutUnits = IntPtr(1)
	})
}

func WithName(name string) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Name = name
	}
}

func WithPosition(x, y float64) func(*models.WorkflowNode) {
	return func(n *models.WorkflowNode) {
		n.Position = models.Position{X: x, Y: y}
	}
}

// Edge builds a data edge.
func Edge(id, source, target string) *models.WorkflowEdge {
	return &models.WorkflowEdge{
		ID:           id,
		SourceNodeID: source,
		TargetNodeID: target,
		Kind:         models.EdgeKindData,
		Status:       models.EdgeStatusIdle,
	}
}

// A2AEdge builds a connector edge with a one unit timeout.
func A2AEdge(id, source, target string, retries int) *models.WorkflowEdge {
	return &models.WorkflowEdge{
		ID:           id,
		SourceNodeID: source,
		TargetNodeID: target,
		Kind:         models.EdgeKindA2A,
		Status:       models.EdgeStatusIdle,
		Connector:    &models.ConnectorConfig{TimeoutUnits: 1, RetryCount: &retries},
	}
}

// CreateTestWorkflow assembles a definition from nodes and edges.
func CreateTestWorkflow(id string, nodes []*models.WorkflowNode, edges ...*models.WorkflowEdge) *models.WorkflowDefinition {
	if nodes == nil {
		nodes = []*models.WorkflowNode{}
	}

	if edges == nil {
		edges = []*models.WorkflowEdge{}
	}

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	return &models.WorkflowDefinition{
		ID:        id,
		Name:      "Test Workflow " + id,
		Nodes:     nodes,
		Edges:     edges,
		CreatedAt: created,
		UpdatedAt: created,
	}
}
