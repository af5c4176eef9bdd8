package models

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

var ErrPayloadMismatch = errors.New("payload does not match node kind")

// ReasoningPattern controls how an agent node is expected to reason.
type ReasoningPattern string

const (
	ReasoningSequential     ReasoningPattern = "sequential"
	ReasoningParallel       ReasoningPattern = "parallel"
	ReasoningChainOfThought ReasoningPattern = "chain_of_thought"
	ReasoningReAct          ReasoningPattern = "react"
)

// ContextPreservation selects how much upstream context a handoff forwards.
type ContextPreservation string

const (
	ContextFull    ContextPreservation = "full"
	ContextSummary ContextPreservation = "summary"
	ContextNone    ContextPreservation = "none"
)

type MemoryOperation string

const (
	MemoryStore    MemoryOperation = "store"
	MemoryRetrieve MemoryOperation = "retrieve"
)

type GuardrailAction string

const (
	GuardrailBlock GuardrailAction = "block"
	GuardrailWarn  GuardrailAction = "warn"
)

type AggregationStrategy string

const (
	AggregateMerge  AggregationStrategy = "merge"
	AggregateConcat AggregationStrategy = "concat"
	AggregateFirst  AggregationStrategy = "first"
)

type AgentPayload struct {
	AgentID             string           `json:"agent_id"              validate:"required"`
	Name                string           `json:"name"                  validate:"required"`
	Description         string           `json:"description,omitempty"`
	Model               string           `json:"model,omitempty"`
	Capabilities        []string         `json:"capabilities,omitempty"`
	Tools               []string         `json:"tools,omitempty"`
	ReasoningPattern    ReasoningPattern `json:"reasoning_pattern"`
	Reflection          bool             `json:"reflection"`
	ChainOfThoughtDepth int              `json:"chain_of_thought_depth"`
}

type ToolPayload struct {
	ToolID      string         `json:"tool_id"               validate:"required"`
	Name        string         `json:"name"                  validate:"required"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Branch is one outcome of a decision node. An empty condition always matches.
type Branch struct {
	Name         string `json:"name"`
	Condition    string `json:"condition,omitempty"`
	TargetNodeID string `json:"target_node_id"`
	Default      bool   `json:"default,omitempty"`
}

type DecisionPayload struct {
	Branches []Branch `json:"branches"`
}

// DefaultBranch returns the branch flagged as default, if any.
func (p *DecisionPayload) DefaultBranch() (Branch, bool) {
	for _, b := range p.Branches {
		if b.Default {
			return b, true
		}
	}

	return Branch{}, false
}

type HandoffPayload struct {
	SourceAgentID       string              `json:"source_agent_id"`
	TargetAgentID       string              `json:"target_agent_id"`
	ContextPreservation ContextPreservation `json:"context_preservation"`
	FallbackAction      string              `json:"fallback_action,omitempty"`
}

type HumanPayload struct {
	Prompt          string `json:"prompt,omitempty"`
	RequireApproval bool   `json:"require_approval"`
}

type MemoryPayload struct {
	MemoryType string          `json:"memory_type"`
	Namespace  string          `json:"namespace"`
	Operation  MemoryOperation `json:"operation"`
}

// GuardrailPayload holds JMESPath checks that must evaluate truthy over the
// node input, and terms that must not appear in it.
type GuardrailPayload struct {
	Checks       []string        `json:"checks,omitempty"`
	BlockedTerms []string        `json:"blocked_terms,omitempty"`
	Action       GuardrailAction `json:"action"`
}

type AggregatorPayload struct {
	Strategy          AggregationStrategy `json:"strategy"`
	RequireAllSuccess bool                `json:"require_all_success"`
}

type MonitorPayload struct {
	Metrics      []string `json:"metrics,omitempty"`
	AlertOnError bool     `json:"alert_on_error"`
}

type ChatInterfacePayload struct {
	Greeting string `json:"greeting,omitempty"`
}

type A2AConnectorPayload struct {
	FromAgentID     string `json:"from_agent_id"              validate:"required"`
	ToAgentID       string `json:"to_agent_id"                validate:"required"`
	MessageTemplate string `json:"message_template,omitempty"`
	ConnectionType  string `json:"connection_type"`
	TimeoutUnits    *int   `json:"timeout_units,omitempty"    validate:"omitempty,gte=0"`
	RetryCount      *int   `json:"retry_count,omitempty"      validate:"omitempty,gte=0"`
}

// Connector returns the delivery settings carried by the connector node.
// Unset timeout or retry count fall back to the messenger defaults.
func (p *A2AConnectorPayload) Connector() *ConnectorConfig {
	cfg := &ConnectorConfig{
		MessageTemplate: p.MessageTemplate,
		ConnectionType:  p.ConnectionType,
		RetryCount:      cloneInt(p.RetryCount),
	}

	if p.TimeoutUnits != nil {
		cfg.TimeoutUnits = *p.TimeoutUnits
	}

	return cfg
}

func cloneInt(n *int) *int {
	if n == nil {
		return nil
	}

	v := *n

	return &v
}

// NodePayload is a closed union: exactly one field is set and it must match
// the owning node's kind.
type NodePayload struct {
	Agent         *AgentPayload         `json:"agent,omitempty"`
	Tool          *ToolPayload          `json:"tool,omitempty"`
	Decision      *DecisionPayload      `json:"decision,omitempty"`
	Handoff       *HandoffPayload       `json:"handoff,omitempty"`
	Human         *HumanPayload         `json:"human,omitempty"`
	Memory        *MemoryPayload        `json:"memory,omitempty"`
	Guardrail     *GuardrailPayload     `json:"guardrail,omitempty"`
	Aggregator    *AggregatorPayload    `json:"aggregator,omitempty"`
	Monitor       *MonitorPayload       `json:"monitor,omitempty"`
	ChatInterface *ChatInterfacePayload `json:"chat_interface,omitempty"`
	A2AConnector  *A2AConnectorPayload  `json:"a2a_connector,omitempty"`
}

func (p NodePayload) set() []NodeKind {
	var kinds []NodeKind

	if p.Agent != nil {
		kinds = append(kinds, NodeKindAgent)
	}

	if p.Tool != nil {
		kinds = append(kinds, NodeKindTool)
	}

	if p.Decision != nil {
		kinds = append(kinds, NodeKindDecision)
	}

	if p.Handoff != nil {
		kinds = append(kinds, NodeKindHandoff)
	}

	if p.Human != nil {
		kinds = append(kinds, NodeKindHuman)
	}

	if p.Memory != nil {
		kinds = append(kinds, NodeKindMemory)
	}

	if p.Guardrail != nil {
		kinds = append(kinds, NodeKindGuardrail)
	}

	if p.Aggregator != nil {
		kinds = append(kinds, NodeKindAggregator)
	}

	if p.Monitor != nil {
		kinds = append(kinds, NodeKindMonitor)
	}

	if p.ChatInterface != nil {
		kinds = append(kinds, NodeKindChatInterface)
	}

	if p.A2AConnector != nil {
		kinds = append(kinds, NodeKindA2AConnector)
	}

	return kinds
}

// Validate reports an error unless exactly the variant for kind is set.
func (p NodePayload) Validate(kind NodeKind) error {
	kinds := p.set()

	switch {
	case len(kinds) == 0:
		return fmt.Errorf("%w: no payload for kind %s", ErrPayloadMismatch, kind)
	case len(kinds) > 1:
		return fmt.Errorf("%w: %d variants set for kind %s", ErrPayloadMismatch, len(kinds), kind)
	case kinds[0] != kind:
		return fmt.Errorf("%w: %s payload on %s node", ErrPayloadMismatch, kinds[0], kind)
	}

	if kind == NodeKindDecision {
		defaults := 0

		for _, b := range p.Decision.Branches {
			if b.Default {
				defaults++
			}
		}

		if defaults > 1 {
			return fmt.Errorf("%w: decision has %d default branches", ErrPayloadMismatch, defaults)
		}
	}

	return nil
}

// Clone returns a deep copy of the payload.
func (p NodePayload) Clone() NodePayload {
	var out NodePayload

	if p.Agent != nil {
		a := *p.Agent
		a.Capabilities = slices.Clone(a.Capabilities)
		a.Tools = slices.Clone(a.Tools)
		out.Agent = &a
	}

	if p.Tool != nil {
		t := *p.Tool
		t.Parameters = maps.Clone(t.Parameters)
		out.Tool = &t
	}

	if p.Decision != nil {
		d := DecisionPayload{Branches: slices.Clone(p.Decision.Branches)}
		out.Decision = &d
	}

	if p.Handoff != nil {
		h := *p.Handoff
		out.Handoff = &h
	}

	if p.Human != nil {
		h := *p.Human
		out.Human = &h
	}

	if p.Memory != nil {
		m := *p.Memory
		out.Memory = &m
	}

	if p.Guardrail != nil {
		g := *p.Guardrail
		g.Checks = slices.Clone(g.Checks)
		g.BlockedTerms = slices.Clone(g.BlockedTerms)
		out.Guardrail = &g
	}

	if p.Aggregator != nil {
		a := *p.Aggregator
		out.Aggregator = &a
	}

	if p.Monitor != nil {
		m := *p.Monitor
		m.Metrics = slices.Clone(m.Metrics)
		out.Monitor = &m
	}

	if p.ChatInterface != nil {
		c := *p.ChatInterface
		out.ChatInterface = &c
	}

	if p.A2AConnector != nil {
		c := *p.A2AConnector
		c.TimeoutUnits = cloneInt(c.TimeoutUnits)
		c.RetryCount = cloneInt(c.RetryCount)
		out.A2AConnector = &c
	}

	return out
}
