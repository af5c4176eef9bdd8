// Package models defines the workflow graph data model: typed nodes, edges,
// workflow definitions and execution records.
package models

import (
	"errors"
	"fmt"
	"time"
)

// NodeKind is the closed set of roles a workflow node may play.
type NodeKind string

const (
	NodeKindAgent         NodeKind = "agent"
	NodeKindTool          NodeKind = "tool"
	NodeKindDecision      NodeKind = "decision"
	NodeKindHandoff       NodeKind = "handoff"
	NodeKindHuman         NodeKind = "human"
	NodeKindMemory        NodeKind = "memory"
	NodeKindGuardrail     NodeKind = "guardrail"
	NodeKindAggregator    NodeKind = "aggregator"
	NodeKindMonitor       NodeKind = "monitor"
	NodeKindChatInterface NodeKind = "chat_interface"
	NodeKindA2AConnector  NodeKind = "a2a_connector"
)

// NodeKinds lists every kind in declaration order.
var NodeKinds = []NodeKind{
	NodeKindAgent,
	NodeKindTool,
	NodeKindDecision,
	NodeKindHandoff,
	NodeKindHuman,
	NodeKindMemory,
	NodeKindGuardrail,
	NodeKindAggregator,
	NodeKindMonitor,
	NodeKindChatInterface,
	NodeKindA2AConnector,
}

// Valid reports whether k is one of the known node kinds.
func (k NodeKind) Valid() bool {
	for _, known := range NodeKinds {
		if k == known {
			return true
		}
	}

	return false
}

// IsUtility reports whether k is a passive utility kind (memory, guardrail, monitor).
func (k NodeKind) IsUtility() bool {
	return k == NodeKindMemory || k == NodeKindGuardrail || k == NodeKindMonitor
}

// NodeStatus is the per-run lifecycle state of a node.
type NodeStatus string

const (
	NodeStatusIdle      NodeStatus = "idle"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusError     NodeStatus = "error"
)

// IsTerminal reports whether the status ends a node's lifecycle for the run.
func (s NodeStatus) IsTerminal() bool {
	return s == NodeStatusCompleted || s == NodeStatusError
}

// CanTransition reports whether moving from s to next is a forward step.
// Returning to idle is only possible through an explicit reset, which does
// not go through this check.
func (s NodeStatus) CanTransition(next NodeStatus) bool {
	switch s {
	case NodeStatusIdle, "":
		return next == NodeStatusRunning
	case NodeStatusRunning:
		return next == NodeStatusCompleted || next == NodeStatusError
	default:
		return false
	}
}

// Position is a canvas coordinate. It is owned by the presentation layer and
// only persisted here.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WorkflowNode is a node instance in a workflow graph.
type WorkflowNode struct {
	ID        string      `json:"id"         validate:"required"`
	Kind      NodeKind    `json:"kind"       validate:"required"`
	Name      string      `json:"name"`
	Position  Position    `json:"position"`
	Payload   NodePayload `json:"payload"`
	Status    NodeStatus  `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// Clone returns a deep copy of the node.
func (n *WorkflowNode) Clone() *WorkflowNode {
	if n == nil {
		return nil
	}

	clone := *n
	clone.Payload = n.Payload.Clone()

	return &clone
}

// Validate checks the structural invariants of the node.
func (n *WorkflowNode) Validate() error {
	if n.ID == "" {
		return errors.New("node id is required")
	}

	if !n.Kind.Valid() {
		return fmt.Errorf("node %s: unknown kind %q", n.ID, n.Kind)
	}

	return n.Payload.Validate(n.Kind)
}
