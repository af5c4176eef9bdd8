package registry

import "github.com/dukex/agentgraph/pkg/models"

// Defaults applied when a descriptor leaves an optional field empty.
const (
	DefaultReasoningPattern    = models.ReasoningSequential
	DefaultReflection          = true
	DefaultChainOfThoughtDepth = 3
	DefaultContextPreservation = models.ContextFull
	DefaultMemoryType          = "short_term"
	DefaultMemoryNamespace     = "default"
	DefaultMemoryOperation     = models.MemoryStore
	DefaultGuardrailAction     = models.GuardrailBlock
	DefaultAggregation         = models.AggregateMerge
	DefaultConnectionType      = "direct"
	DefaultTimeoutUnits        = 30
	DefaultRetryCount          = 3
)

// AgentDescriptor is the agent shape supplied by an external agent registry.
type AgentDescriptor struct {
	ID                  string                  `json:"id"                               validate:"required"`
	Name                string                  `json:"name"                             validate:"required"`
	Description         string                  `json:"description,omitempty"`
	Model               string                  `json:"model,omitempty"`
	Capabilities        []string                `json:"capabilities,omitempty"`
	Tools               []string                `json:"tools,omitempty"`
	ReasoningPattern    models.ReasoningPattern `json:"reasoning_pattern,omitempty"      validate:"omitempty,oneof=sequential parallel chain_of_thought react"`
	Reflection          *bool                   `json:"reflection,omitempty"`
	ChainOfThoughtDepth int                     `json:"chain_of_thought_depth,omitempty" validate:"gte=0"`
}

// ToolDescriptor is the tool shape supplied by an external tool registry.
type ToolDescriptor struct {
	ID          string         `json:"id"                    validate:"required"`
	Name        string         `json:"name"                  validate:"required"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type DecisionConfig struct {
	Name     string          `json:"name,omitempty"`
	Branches []models.Branch `json:"branches"       validate:"dive"`
}

type HandoffConfig struct {
	Name                string                     `json:"name,omitempty"`
	SourceAgentID       string                     `json:"source_agent_id,omitempty"`
	TargetAgentID       string                     `json:"target_agent_id,omitempty"`
	ContextPreservation models.ContextPreservation `json:"context_preservation,omitempty" validate:"omitempty,oneof=full summary none"`
	FallbackAction      string                     `json:"fallback_action,omitempty"`
}

type HumanConfig struct {
	Name            string `json:"name,omitempty"`
	Prompt          string `json:"prompt,omitempty"`
	RequireApproval bool   `json:"require_approval,omitempty"`
}

type MemoryConfig struct {
	Name       string                 `json:"name,omitempty"`
	MemoryType string                 `json:"memory_type,omitempty"`
	Namespace  string                 `json:"namespace,omitempty"`
	Operation  models.MemoryOperation `json:"operation,omitempty"   validate:"omitempty,oneof=store retrieve"`
}

type GuardrailConfig struct {
	Name         string                 `json:"name,omitempty"`
	Checks       []string               `json:"checks,omitempty"`
	BlockedTerms []string               `json:"blocked_terms,omitempty"`
	Action       models.GuardrailAction `json:"action,omitempty"        validate:"omitempty,oneof=block warn"`
}

type AggregatorConfig struct {
	Name              string                     `json:"name,omitempty"`
	Strategy          models.AggregationStrategy `json:"strategy,omitempty"            validate:"omitempty,oneof=merge concat first"`
	RequireAllSuccess bool                       `json:"require_all_success,omitempty"`
}

type MonitorConfig struct {
	Name         string   `json:"name,omitempty"`
	Metrics      []string `json:"metrics,omitempty"`
	AlertOnError bool     `json:"alert_on_error,omitempty"`
}

type ChatInterfaceConfig struct {
	Name     string `json:"name,omitempty"`
	Greeting string `json:"greeting,omitempty"`
}

// A2AConnectorConfig describes a connector node. Nil timeout or retry count
// take the defaults; an explicit zero retry count means a single attempt.
type A2AConnectorConfig struct {
	Name            string `json:"name,omitempty"`
	FromAgentID     string `json:"from_agent_id"              validate:"required"`
	ToAgentID       string `json:"to_agent_id"                validate:"required"`
	MessageTemplate string `json:"message_template,omitempty"`
	ConnectionType  string `json:"connection_type,omitempty"`
	TimeoutUnits    *int   `json:"timeout_units,omitempty"    validate:"omitempty,gt=0"`
	RetryCount      *int   `json:"retry_count,omitempty"      validate:"omitempty,gte=0"`
}
