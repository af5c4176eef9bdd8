package web

import (
	"github.com/dukex/agentgraph/pkg/graph"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/services"
	"github.com/dukex/agentgraph/pkg/workflow"
)

// CreateWorkflowRequest represents the request body for creating a new workflow.
type CreateWorkflowRequest struct {
	Name        string `json:"name"        validate:"required,min=1"`
	Description string `json:"description"`
}

// UpdateNodeRequest represents the request body for editing a node in place.
// Kind and id cannot be changed; absent fields are left untouched.
type UpdateNodeRequest struct {
	Name     *string             `json:"name,omitempty"     validate:"omitempty,min=1"`
	Position *models.Position    `json:"position,omitempty"`
	Payload  *models.NodePayload `json:"payload,omitempty"`
}

func (r UpdateNodeRequest) toUpdate() graph.NodeUpdate {
	return graph.NodeUpdate{
		Name:     r.Name,
		Position: r.Position,
		Payload:  r.Payload,
	}
}

// CreateEdgeRequest represents the request body for connecting two nodes.
// An empty kind is inferred from the endpoints.
type CreateEdgeRequest struct {
	ID           string                  `json:"id,omitempty"`
	SourceNodeID string                  `json:"source_node_id" validate:"required"`
	TargetNodeID string                  `json:"target_node_id" validate:"required"`
	Kind         models.EdgeKind         `json:"kind,omitempty" validate:"omitempty,oneof=data a2a"`
	Label        string                  `json:"label,omitempty"`
	Connector    *models.ConnectorConfig `json:"connector,omitempty"`
}

func (r CreateEdgeRequest) toServiceRequest() *services.CreateEdgeRequest {
	return &services.CreateEdgeRequest{
		ID:           r.ID,
		SourceNodeID: r.SourceNodeID,
		TargetNodeID: r.TargetNodeID,
		Kind:         r.Kind,
		Label:        r.Label,
		Connector:    r.Connector,
	}
}

// RunRequest represents the request body for planning or starting a run.
type RunRequest struct {
	Input map[string]any `json:"input,omitempty"`
	Wait  bool           `json:"wait,omitempty"`
}

// WorkflowSummary is the list view of a workflow.
type WorkflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	NodeCount   int    `json:"node_count"`
	EdgeCount   int    `json:"edge_count"`
	Running     bool   `json:"running"`
}

// PlanResponse is the path a run would take.
type PlanResponse struct {
	WorkflowID string            `json:"workflow_id"`
	Path       []string          `json:"path"`
	Branches   map[string]string `json:"branches,omitempty"`
	Edges      []string          `json:"edges"`
}

func newPlanResponse(workflowID string, plan *workflow.Plan) PlanResponse {
	response := PlanResponse{
		WorkflowID: workflowID,
		Path:       plan.Path,
		Branches:   plan.Branches,
		Edges:      plan.Edges,
	}

	if response.Path == nil {
		response.Path = []string{}
	}

	if response.Edges == nil {
		response.Edges = []string{}
	}

	return response
}
