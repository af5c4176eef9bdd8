package graph

import "github.com/dukex/agentgraph/pkg/models"

// Rejection reasons reported by ValidateConnection.
const (
	ReasonSelfConnection         = "self-connection"
	ReasonHumanSource            = "human input must follow an agent or decision"
	ReasonA2AEndpoints           = "a2a connector requires agent endpoints"
	ReasonDuplicateA2A           = "duplicate a2a connector"
	ReasonUtilityChain           = "utility node cannot feed another utility node"
	ReasonDuplicateDecisionInput = "decision already has an input from this source"
)

// ConnectionResult is the verdict on a prospective edge.
type ConnectionResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func reject(reason string) ConnectionResult {
	return ConnectionResult{Reason: reason}
}

// ValidateConnection decides whether an edge of the given kind from source to
// target is admissible next to the existing edges. Rules run in order and the
// first rejection wins. It has no side effects.
func ValidateConnection(source, target *models.WorkflowNode, kind models.EdgeKind, existing []*models.WorkflowEdge) ConnectionResult {
	if source.ID == target.ID {
		return reject(ReasonSelfConnection)
	}

	if target.Kind == models.NodeKindHuman &&
		source.Kind != models.NodeKindAgent && source.Kind != models.NodeKindDecision {
		return reject(ReasonHumanSource)
	}

	if kind == models.EdgeKindA2A {
		if source.Kind != models.NodeKindAgent || target.Kind != models.NodeKindAgent {
			return reject(ReasonA2AEndpoints)
		}

		for _, e := range existing {
			if e.Kind == models.EdgeKindA2A && e.SourceNodeID == source.ID && e.TargetNodeID == target.ID {
				return reject(ReasonDuplicateA2A)
			}
		}
	}

	if source.Kind.IsUtility() && target.Kind.IsUtility() {
		return reject(ReasonUtilityChain)
	}

	if target.Kind == models.NodeKindDecision {
		for _, e := range existing {
			if e.SourceNodeID == source.ID && e.TargetNodeID == target.ID {
				return reject(ReasonDuplicateDecisionInput)
			}
		}
	}

	return ConnectionResult{Valid: true}
}
