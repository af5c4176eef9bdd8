package models

import "time"

// WorkflowDefinition is the authoritative node and edge set of one workflow.
// Nodes keep insertion order, which is also creation order.
type WorkflowDefinition struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"        validate:"required"`
	Description string          `json:"description"`
	Nodes       []*WorkflowNode `json:"nodes"`
	Edges       []*WorkflowEdge `json:"edges"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Node returns the node with the given id or nil.
func (w *WorkflowDefinition) Node(id string) *WorkflowNode {
	for _, n := range w.Nodes {
		if n.ID == id {
			return n
		}
	}

	return nil
}

// Edge returns the edge with the given id or nil.
func (w *WorkflowDefinition) Edge(id string) *WorkflowEdge {
	for _, e := range w.Edges {
		if e.ID == id {
			return e
		}
	}

	return nil
}

// InboundEdges returns edges of the given kind that end at nodeID, in insertion order.
func (w *WorkflowDefinition) InboundEdges(nodeID string, kind EdgeKind) []*WorkflowEdge {
	var edges []*WorkflowEdge

	for _, e := range w.Edges {
		if e.TargetNodeID == nodeID && e.Kind == kind {
			edges = append(edges, e)
		}
	}

	return edges
}

// OutboundEdges returns edges of the given kind that start at nodeID, in insertion order.
func (w *WorkflowDefinition) OutboundEdges(nodeID string, kind EdgeKind) []*WorkflowEdge {
	var edges []*WorkflowEdge

	for _, e := range w.Edges {
		if e.SourceNodeID == nodeID && e.Kind == kind {
			edges = append(edges, e)
		}
	}

	return edges
}

// Clone returns a deep copy, so callers can read it while the owner keeps mutating.
func (w *WorkflowDefinition) Clone() *WorkflowDefinition {
	if w == nil {
		return nil
	}

	clone := *w
	clone.Nodes = make([]*WorkflowNode, len(w.Nodes))
	clone.Edges = make([]*WorkflowEdge, len(w.Edges))

	for i, n := range w.Nodes {
		clone.Nodes[i] = n.Clone()
	}

	for i, e := range w.Edges {
		clone.Edges[i] = e.Clone()
	}

	return &clone
}

// ResetStatuses returns every node and edge to idle.
func (w *WorkflowDefinition) ResetStatuses() {
	for _, n := range w.Nodes {
		n.Status = NodeStatusIdle
	}

	for _, e := range w.Edges {
		e.Status = EdgeStatusIdle
		e.Animated = false
	}
}
