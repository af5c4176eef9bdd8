// Package registry builds typed workflow nodes from external descriptors and
// from drag-and-drop placements.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/agentgraph/pkg/expr"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// IDGenerator returns a fresh node id for the given kind.
type IDGenerator func(kind models.NodeKind) string

// UUIDGenerator produces kind-prefixed random ids such as "agent-2f1c...".
func UUIDGenerator(kind models.NodeKind) string {
	return string(kind) + "-" + uuid.NewString()
}

type Registry struct {
	logger    *slog.Logger
	validate  *validator.Validate
	evaluator *expr.Evaluator
	clock     clockwork.Clock
	newID     IDGenerator
	utilities map[models.NodeKind]UtilityFactory
}

type Option func(*Registry)

func WithIDGenerator(gen IDGenerator) Option {
	return func(r *Registry) { r.newID = gen }
}

func WithClock(clock clockwork.Clock) Option {
	return func(r *Registry) { r.clock = clock }
}

// WithEvaluator shares an expression cache with the engine.
func WithEvaluator(e *expr.Evaluator) Option {
	return func(r *Registry) { r.evaluator = e }
}

func NewRegistry(log *slog.Logger, opts ...Option) *Registry {
	r := &Registry{
		logger:    log,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		evaluator: expr.NewEvaluator(),
		clock:     clockwork.NewRealClock(),
		newID:     UUIDGenerator,
		utilities: make(map[models.NodeKind]UtilityFactory),
	}

	for _, opt := range opts {
		opt(r)
	}

	r.RegisterDefaultUtilities()

	return r
}

func (r *Registry) newNode(kind models.NodeKind, name string, position models.Position, payload models.NodePayload) *models.WorkflowNode {
	node := &models.WorkflowNode{
		ID:        r.newID(kind),
		Kind:      kind,
		Name:      name,
		Position:  position,
		Payload:   payload,
		Status:    models.NodeStatusIdle,
		CreatedAt: r.clock.Now().UTC(),
	}

	r.logger.Debug("Created node", "node_id", node.ID, "kind", kind)

	return node
}

func (r *Registry) check(kind string, descriptor any) error {
	err := r.validate.Struct(descriptor)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		reasons := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			reasons = append(reasons, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}

		return NewDescriptorError(kind, strings.Join(reasons, ", "), nil)
	}

	return NewDescriptorError(kind, "validation failed", err)
}

func (r *Registry) CreateAgentNode(d AgentDescriptor, position models.Position) (*models.WorkflowNode, error) {
	if err := r.check("agent", d); err != nil {
		return nil, err
	}

	payload := &models.AgentPayload{
		AgentID:             d.ID,
		Name:                d.Name,
		Description:         d.Description,
		Model:               d.Model,
		Capabilities:        append([]string(nil), d.Capabilities...),
		Tools:               append([]string(nil), d.Tools...),
		ReasoningPattern:    d.ReasoningPattern,
		Reflection:          DefaultReflection,
		ChainOfThoughtDepth: d.ChainOfThoughtDepth,
	}

	if payload.ReasoningPattern == "" {
		payload.ReasoningPattern = DefaultReasoningPattern
	}

	if d.Reflection != nil {
		payload.Reflection = *d.Reflection
	}

	if payload.ChainOfThoughtDepth == 0 {
		payload.ChainOfThoughtDepth = DefaultChainOfThoughtDepth
	}

	return r.newNode(models.NodeKindAgent, d.Name, position, models.NodePayload{Agent: payload}), nil
}

func (r *Registry) CreateToolNode(d ToolDescriptor, position models.Position) (*models.WorkflowNode, error) {
	if err := r.check("tool", d); err != nil {
		return nil, err
	}

	payload := &models.ToolPayload{
		ToolID:      d.ID,
		Name:        d.Name,
		Description: d.Description,
		Parameters:  d.Parameters,
	}

	return r.newNode(models.NodeKindTool, d.Name, position, models.NodePayload{Tool: payload}), nil
}

func (r *Registry) CreateDecisionNode(c DecisionConfig, position models.Position) (*models.WorkflowNode, error) {
	if err := r.check("decision", c); err != nil {
		return nil, err
	}

	defaults := 0

	for i, b := range c.Branches {
		if b.Default {
			defaults++
		}

		if b.Condition == "" {
			continue
		}

		if err := r.evaluator.Compile(b.Condition); err != nil {
			return nil, NewDescriptorError("decision", fmt.Sprintf("branch %d condition", i), err)
		}
	}

	if defaults > 1 {
		return nil, NewDescriptorError("decision", "more than one default branch", nil)
	}

	payload := &models.DecisionPayload{Branches: append([]models.Branch(nil), c.Branches...)}

	return r.newNode(models.NodeKindDecision, nameOr(c.Name, "Decision"), position, models.NodePayload{Decision: payload}), nil
}

func (r *Registry) CreateHandoffNode(c HandoffConfig, position models.Position) (*models.WorkflowNode, error) {
	if err := r.check("handoff", c); err != nil {
		return nil, err
	}

	payload := &models.HandoffPayload{
		SourceAgentID:       c.SourceAgentID,
		TargetAgentID:       c.TargetAgentID,
		ContextPreservation: c.ContextPreservation,
		FallbackAction:      c.FallbackAction,
	}

	if payload.ContextPreservation == "" {
		payload.ContextPreservation = DefaultContextPreservation
	}

	return r.newNode(models.NodeKindHandoff, nameOr(c.Name, "Handoff"), position, models.NodePayload{Handoff: payload}), nil
}

func (r *Registry) CreateHumanNode(c HumanConfig, position models.Position) (*models.WorkflowNode, error) {
	payload := &models.HumanPayload{Prompt: c.Prompt, RequireApproval: c.RequireApproval}

	return r.newNode(models.NodeKindHuman, nameOr(c.Name, "Human Input"), position, models.NodePayload{Human: payload}), nil
}

func (r *Registry) CreateMemoryNode(c MemoryConfig, position models.Position) (*models.WorkflowNode, error) {
	if err := r.check("memory", c); err != nil {
		return nil, err
	}

	payload := &models.MemoryPayload{
		MemoryType: nameOr(c.MemoryType, DefaultMemoryType),
		Namespace:  nameOr(c.Namespace, DefaultMemoryNamespace),
		Operation:  c.Operation,
	}

	if payload.Operation == "" {
		payload.Operation = DefaultMemoryOperation
	}

	return r.newNode(models.NodeKindMemory, nameOr(c.Name, "Memory"), position, models.NodePayload{Memory: payload}), nil
}

func (r *Registry) CreateGuardrailNode(c GuardrailConfig, position models.Position) (*models.WorkflowNode, error) {
	if err := r.check("guardrail", c); err != nil {
		return nil, err
	}

	for i, check := range c.Checks {
		if err := r.evaluator.Compile(check); err != nil {
			return nil, NewDescriptorError("guardrail", fmt.Sprintf("check %d", i), err)
		}
	}

	payload := &models.GuardrailPayload{
		Checks:       append([]string(nil), c.Checks...),
		BlockedTerms: append([]string(nil), c.BlockedTerms...),
		Action:       c.Action,
	}

	if payload.Action == "" {
		payload.Action = DefaultGuardrailAction
	}

	return r.newNode(models.NodeKindGuardrail, nameOr(c.Name, "Guardrail"), position, models.NodePayload{Guardrail: payload}), nil
}

func (r *Registry) CreateAggregatorNode(c AggregatorConfig, position models.Position) (*models.WorkflowNode, error) {
	if err := r.check("aggregator", c); err != nil {
		return nil, err
	}

	payload := &models.AggregatorPayload{Strategy: c.Strategy, RequireAllSuccess: c.RequireAllSuccess}
	if payload.Strategy == "" {
		payload.Strategy = DefaultAggregation
	}

	return r.newNode(models.NodeKindAggregator, nameOr(c.Name, "Aggregator"), position, models.NodePayload{Aggregator: payload}), nil
}

func (r *Registry) CreateMonitorNode(c MonitorConfig, position models.Position) (*models.WorkflowNode, error) {
	payload := &models.MonitorPayload{
		Metrics:      append([]string(nil), c.Metrics...),
		AlertOnError: c.AlertOnError,
	}

	return r.newNode(models.NodeKindMonitor, nameOr(c.Name, "Monitor"), position, models.NodePayload{Monitor: payload}), nil
}

func (r *Registry) CreateChatInterfaceNode(c ChatInterfaceConfig, position models.Position) (*models.WorkflowNode, error) {
	payload := &models.ChatInterfacePayload{Greeting: c.Greeting}

	return r.newNode(models.NodeKindChatInterface, nameOr(c.Name, "Chat"), position, models.NodePayload{ChatInterface: payload}), nil
}

func (r *Registry) CreateA2AConnectorNode(c A2AConnectorConfig, position models.Position) (*models.WorkflowNode, error) {
	if err := r.check("a2a_connector", c); err != nil {
		return nil, err
	}

	if c.FromAgentID == c.ToAgentID {
		return nil, NewDescriptorError("a2a_connector", "from and to agent must differ", nil)
	}

	payload := &models.A2AConnectorPayload{
		FromAgentID:     c.FromAgentID,
		ToAgentID:       c.ToAgentID,
		MessageTemplate: c.MessageTemplate,
		ConnectionType:  nameOr(c.ConnectionType, DefaultConnectionType),
		TimeoutUnits:    intOr(c.TimeoutUnits, DefaultTimeoutUnits),
		RetryCount:      intOr(c.RetryCount, DefaultRetryCount),
	}

	name := nameOr(c.Name, fmt.Sprintf("A2A %s -> %s", c.FromAgentID, c.ToAgentID))

	return r.newNode(models.NodeKindA2AConnector, name, position, models.NodePayload{A2AConnector: payload}), nil
}

func intOr(n *int, fallback int) *int {
	if n != nil {
		fallback = *n
	}

	return &fallback
}

func nameOr(name, fallback string) string {
	if name == "" {
		return fallback
	}

	return name
}
