package services

import (
	"context"

	"github.com/dukex/agentgraph/pkg/graph"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/registry"
)

// CreateEdgeRequest represents the request to connect two nodes.
type CreateEdgeRequest struct {
	ID           string
	SourceNodeID string
	TargetNodeID string
	Kind         models.EdgeKind
	Label        string
	Connector    *models.ConnectorConfig
}

// Node handles node and edge editing.
type Node struct {
	workflows *Workflow
	registry  *registry.Registry
}

// NewNode creates a new node service.
func NewNode(workflows *Workflow, reg *registry.Registry) *Node {
	return &Node{
		workflows: workflows,
		registry:  reg,
	}
}

// CreateNode builds a node from a placement and adds it to the workflow.
func (n *Node) CreateNode(ctx context.Context, workflowID string, placement registry.Placement) (*models.WorkflowNode, error) {
	node, err := n.registry.Place(placement)
	if err != nil {
		return nil, err
	}

	if err := n.workflows.store.AddNode(workflowID, node); err != nil {
		return nil, err
	}

	if _, err := n.workflows.persist(ctx, workflowID); err != nil {
		return nil, err
	}

	return node, nil
}

// GetNode retrieves a specific node from the specified workflow.
func (n *Node) GetNode(workflowID, nodeID string) (*models.WorkflowNode, error) {
	def, err := n.workflows.store.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}

	node := def.Node(nodeID)
	if node == nil {
		return nil, graph.NewWorkflowError("get_node", workflowID, graph.ErrNodeNotFound)
	}

	return node, nil
}

// UpdateNode applies presentation edits to an existing node.
func (n *Node) UpdateNode(ctx context.Context, workflowID, nodeID string, update graph.NodeUpdate) (*models.WorkflowNode, error) {
	node, err := n.workflows.store.UpdateNode(workflowID, nodeID, update)
	if err != nil {
		return nil, err
	}

	if _, err := n.workflows.persist(ctx, workflowID); err != nil {
		return nil, err
	}

	return node, nil
}

// DeleteNode deletes a node and every edge touching it.
func (n *Node) DeleteNode(ctx context.Context, workflowID, nodeID string) error {
	if err := n.workflows.store.RemoveNode(workflowID, nodeID); err != nil {
		return err
	}

	_, err := n.workflows.persist(ctx, workflowID)

	return err
}

// CheckConnection reports whether the edge would be accepted, without adding it.
func (n *Node) CheckConnection(workflowID, sourceID, targetID string, kind models.EdgeKind) (graph.ConnectionResult, error) {
	def, err := n.workflows.store.GetWorkflow(workflowID)
	if err != nil {
		return graph.ConnectionResult{}, err
	}

	source := def.Node(sourceID)
	target := def.Node(targetID)

	if source == nil || target == nil {
		return graph.ConnectionResult{}, graph.NewWorkflowError("check_connection", workflowID, graph.ErrNodeNotFound)
	}

	return graph.ValidateConnection(source, target, kind, def.Edges), nil
}

// CreateEdge connects two nodes of the workflow. A missing id or kind is
// filled in by the store.
func (n *Node) CreateEdge(ctx context.Context, workflowID string, req *CreateEdgeRequest) (*models.WorkflowEdge, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	edge, err := n.workflows.store.AddEdge(workflowID, &models.WorkflowEdge{
		ID:           req.ID,
		SourceNodeID: req.SourceNodeID,
		TargetNodeID: req.TargetNodeID,
		Kind:         req.Kind,
		Label:        req.Label,
		Connector:    req.Connector,
	})
	if err != nil {
		return nil, err
	}

	if _, err := n.workflows.persist(ctx, workflowID); err != nil {
		return nil, err
	}

	return edge, nil
}

// DeleteEdge removes an edge from the workflow.
func (n *Node) DeleteEdge(ctx context.Context, workflowID, edgeID string) error {
	if err := n.workflows.store.RemoveEdge(workflowID, edgeID); err != nil {
		return err
	}

	_, err := n.workflows.persist(ctx, workflowID)

	return err
}
