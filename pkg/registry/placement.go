package registry

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dukex/agentgraph/pkg/models"
)

// PlacementType is the tag of a drag-and-drop placement.
type PlacementType string

const (
	PlacementAgent        PlacementType = "agent"
	PlacementTool         PlacementType = "tool"
	PlacementUtility      PlacementType = "utility"
	PlacementA2AConnector PlacementType = "a2a-connector"
)

// Placement is what the presentation layer drops on the canvas. Payload is
// decoded according to Type: an AgentDescriptor, a ToolDescriptor, a
// UtilityPayload or an A2AConnectorConfig.
type Placement struct {
	Type     PlacementType   `json:"type"     validate:"required,oneof=agent tool utility a2a-connector"`
	Payload  json.RawMessage `json:"payload"`
	Position models.Position `json:"position"`
}

// UtilityPayload selects the utility kind and carries its kind-specific config.
type UtilityPayload struct {
	Kind   models.NodeKind `json:"kind"`
	Config json.RawMessage `json:"config,omitempty"`
}

// UtilityFactory builds a node of one utility kind from its raw config.
type UtilityFactory func(raw json.RawMessage, position models.Position) (*models.WorkflowNode, error)

func (r *Registry) RegisterUtility(kind models.NodeKind, factory UtilityFactory) {
	r.utilities[kind] = factory
}

// RegisterDefaultUtilities registers the built-in utility kinds.
func (r *Registry) RegisterDefaultUtilities() {
	r.RegisterUtility(models.NodeKindDecision, utility(r.CreateDecisionNode))
	r.RegisterUtility(models.NodeKindHandoff, utility(r.CreateHandoffNode))
	r.RegisterUtility(models.NodeKindHuman, utility(r.CreateHumanNode))
	r.RegisterUtility(models.NodeKindMemory, utility(r.CreateMemoryNode))
	r.RegisterUtility(models.NodeKindGuardrail, utility(r.CreateGuardrailNode))
	r.RegisterUtility(models.NodeKindAggregator, utility(r.CreateAggregatorNode))
	r.RegisterUtility(models.NodeKindMonitor, utility(r.CreateMonitorNode))
	r.RegisterUtility(models.NodeKindChatInterface, utility(r.CreateChatInterfaceNode))
}

func utility[C any](create func(C, models.Position) (*models.WorkflowNode, error)) UtilityFactory {
	return func(raw json.RawMessage, position models.Position) (*models.WorkflowNode, error) {
		var config C

		if err := decode(raw, &config); err != nil {
			return nil, err
		}

		return create(config, position)
	}
}

// Place maps a placement tag to the matching factory.
func (r *Registry) Place(p Placement) (*models.WorkflowNode, error) {
	switch p.Type {
	case PlacementAgent:
		var d AgentDescriptor
		if err := decode(p.Payload, &d); err != nil {
			return nil, NewDescriptorError("agent", "malformed payload", err)
		}

		return r.CreateAgentNode(d, p.Position)
	case PlacementTool:
		var d ToolDescriptor
		if err := decode(p.Payload, &d); err != nil {
			return nil, NewDescriptorError("tool", "malformed payload", err)
		}

		return r.CreateToolNode(d, p.Position)
	case PlacementA2AConnector:
		var c A2AConnectorConfig
		if err := decode(p.Payload, &c); err != nil {
			return nil, NewDescriptorError("a2a_connector", "malformed payload", err)
		}

		return r.CreateA2AConnectorNode(c, p.Position)
	case PlacementUtility:
		var u UtilityPayload
		if err := decode(p.Payload, &u); err != nil {
			return nil, NewDescriptorError("utility", "malformed payload", err)
		}

		factory, ok := r.utilities[u.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownUtilityKind, u.Kind)
		}

		node, err := factory(u.Config, p.Position)
		if err != nil {
			if IsInvalidDescriptor(err) {
				return nil, err
			}

			return nil, NewDescriptorError(string(u.Kind), "malformed config", err)
		}

		return node, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlacement, p.Type)
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	return dec.Decode(v)
}
