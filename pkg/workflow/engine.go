// Package workflow plans and runs workflow graphs.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dukex/agentgraph/pkg/a2a"
	"github.com/dukex/agentgraph/pkg/eventbus"
	"github.com/dukex/agentgraph/pkg/events"
	"github.com/dukex/agentgraph/pkg/graph"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/nodes"
	"github.com/dukex/agentgraph/pkg/otelhelper"
	"github.com/dukex/agentgraph/pkg/protocol"
	"github.com/dukex/agentgraph/pkg/template"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultHistoryLimit = 100

const cancelledReason = "execution cancelled"

var ErrNoInvoker = errors.New("no agent invoker configured")

// RunObserver is told about every finished node and run.
type RunObserver interface {
	ObserveNode(outcome models.NodeOutcome)
	ObserveRun(rec *models.ExecutionRecord)
}

// Recorder persists terminal execution records.
type Recorder interface {
	SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error
}

// Engine runs workflows held in a graph.Store. At most one run per workflow
// is active at a time; the run owns the workflow until it finishes.
type Engine struct {
	store     *graph.Store
	invoker   protocol.Invoker
	planner   *Planner
	messenger *a2a.Messenger
	executors map[models.NodeKind]protocol.NodeExecutor
	publisher eventbus.EventPublisher
	history   *History
	recorder  Recorder
	observer  RunObserver
	tracer    trace.Tracer
	clock     clockwork.Clock
	latency   time.Duration
	logger    *slog.Logger
	newID     func() string

	mu   sync.Mutex
	runs map[string]*Run
}

type Option func(*Engine)

func WithPlanner(p *Planner) Option {
	return func(e *Engine) { e.planner = p }
}

func WithMessenger(m *a2a.Messenger) Option {
	return func(e *Engine) { e.messenger = m }
}

// WithExecutors replaces the per-kind executors of non-agent nodes.
func WithExecutors(executors map[models.NodeKind]protocol.NodeExecutor) Option {
	return func(e *Engine) { e.executors = executors }
}

func WithPublisher(p eventbus.EventPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithHistory(h *History) Option {
	return func(e *Engine) { e.history = h }
}

func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithObserver(o RunObserver) Option {
	return func(e *Engine) { e.observer = o }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithNodeLatency makes every node visit wait d before doing its work.
func WithNodeLatency(d time.Duration) Option {
	return func(e *Engine) { e.latency = d }
}

func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

func NewEngine(store *graph.Store, invoker protocol.Invoker, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		invoker:   invoker,
		publisher: eventbus.Discard{},
		history:   NewHistory(DefaultHistoryLimit),
		tracer:    otelhelper.NoopTracer(),
		clock:     clockwork.NewRealClock(),
		logger:    logger.With("module", "engine"),
		newID:     func() string { return "exec-" + uuid.NewString() },
		runs:      make(map[string]*Run),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.planner == nil {
		e.planner = NewPlanner(nil)
	}

	if e.messenger == nil {
		e.messenger = a2a.NewMessenger(InvokerTransport(invoker), logger, a2a.WithClock(e.clock))
	}

	if e.executors == nil {
		e.executors = nodes.Executors(nodes.Dependencies{Logger: logger})
	}

	return e
}

func (e *Engine) History() *History {
	return e.history
}

// Plan returns the path a run would take without starting one.
func (e *Engine) Plan(workflowID string, entry map[string]any) (*Plan, error) {
	def, err := e.store.GetWorkflow(workflowID)
	if err != nil {
		return nil, err
	}

	def.ResetStatuses()

	return e.planner.Plan(def, entry)
}

// Start plans the workflow and begins running it in the background. It
// fails with ErrConcurrentRun when the workflow already has an active run and
// with the planner's error when the graph cannot be planned; in both cases no
// record is created and the workflow is left untouched.
func (e *Engine) Start(ctx context.Context, workflowID string, entry map[string]any) (*Run, error) {
	runID := e.newID()

	var plan *Plan

	def, err := e.store.Acquire(workflowID, runID, func(def *models.WorkflowDefinition) error {
		p, err := e.planner.Plan(def, entry)
		if err != nil {
			return err
		}

		plan = p

		return nil
	})
	if err != nil {
		if graph.IsLocked(err) {
			active, _ := e.store.ActiveRun(workflowID)

			return nil, &ConcurrentRunError{WorkflowID: workflowID, ActiveRunID: active}
		}

		return nil, err
	}

	entry = maps.Clone(entry)

	rec := &models.ExecutionRecord{
		ID:            runID,
		WorkflowID:    workflowID,
		StartedAt:     e.clock.Now().UTC(),
		Status:        models.ExecutionStatusRunning,
		EntryInput:    entry,
		ExecutionPath: make([]string, 0, len(plan.Path)),
		Results:       make([]models.NodeOutcome, 0, len(plan.Path)),
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	run := newRun(rec, plan, cancel)

	e.mu.Lock()
	e.runs[workflowID] = run
	e.mu.Unlock()

	e.logger.Info("Starting workflow execution", "workflow_id", workflowID, "execution_id", runID, "path", plan.Path)

	e.publish(runCtx, run, events.RunStarted{
		BaseEvent:  e.base(events.RunStartedEvent, run),
		Path:       slices.Clone(plan.Path),
		EntryInput: entry,
	})

	go e.execute(runCtx, run, def, entry)

	return run, nil
}

// Execute starts a run and waits for it. If ctx ends first the run is
// cancelled and its finalized record is returned.
func (e *Engine) Execute(ctx context.Context, workflowID string, entry map[string]any) (*models.ExecutionRecord, error) {
	run, err := e.Start(ctx, workflowID, entry)
	if err != nil {
		return nil, err
	}

	select {
	case <-run.Done():
	case <-ctx.Done():
		run.Cancel()
		<-run.Done()
	}

	return run.Record(), nil
}

// ActiveRun returns the run currently holding the workflow.
func (e *Engine) ActiveRun(workflowID string) (*Run, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	run, ok := e.runs[workflowID]

	return run, ok
}

// Cancel requests the active run of the workflow to stop at the next node
// boundary.
func (e *Engine) Cancel(workflowID string) error {
	run, ok := e.ActiveRun(workflowID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, workflowID)
	}

	run.Cancel()

	return nil
}

func (e *Engine) execute(ctx context.Context, run *Run, def *models.WorkflowDefinition, entry map[string]any) {
	spanCtx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.run",
		attribute.String(otelhelper.WorkflowIDKey, run.WorkflowID),
		attribute.String(otelhelper.WorkflowNameKey, def.Name),
		attribute.String(otelhelper.ExecutionIDKey, run.ID),
	)

	logger := e.logger.With("workflow_id", run.WorkflowID, "execution_id", run.ID)

	// Node work is never interrupted; cancellation is observed between nodes.
	work := context.WithoutCancel(spanCtx)

	var (
		results    []models.NodeOutcome
		failedNode string
		reason     string
		cancelled  bool
	)

	for _, nodeID := range run.Plan.Path {
		if ctx.Err() != nil {
			cancelled = true

			break
		}

		node := def.Node(nodeID)

		outcome, halt := e.visit(work, run, def, node, entry, results, logger)
		results = append(results, outcome)

		run.update(func(rec *models.ExecutionRecord) {
			rec.ExecutionPath = append(rec.ExecutionPath, nodeID)
			rec.Results = append(rec.Results, outcome)
		})

		if halt != "" {
			failedNode = nodeID
			reason = halt

			break
		}
	}

	e.finalize(work, run, span, failedNode, reason, cancelled, logger)
	span.End()
	close(run.done)
}

func (e *Engine) finalize(ctx context.Context, run *Run, span trace.Span, failedNode, reason string, cancelled bool, logger *slog.Logger) {
	finished := e.clock.Now().UTC()

	run.update(func(rec *models.ExecutionRecord) {
		rec.FinishedAt = &finished

		switch {
		case cancelled:
			rec.Status = models.ExecutionStatusError
			rec.Cancelled = true
			rec.Reason = cancelledReason
		case failedNode != "":
			rec.Status = models.ExecutionStatusError
			rec.FailedNodeID = failedNode
			rec.Reason = reason
		default:
			rec.Status = models.ExecutionStatusCompleted
		}
	})

	rec := run.Record()

	// A finished run is always visible, either as active or in history.
	e.history.Append(rec)

	if e.recorder != nil {
		if err := e.recorder.SaveExecution(ctx, rec); err != nil {
			logger.Error("Failed to persist execution record", "error", err)
		}
	}

	e.store.Release(run.WorkflowID, run.ID)

	e.mu.Lock()
	if e.runs[run.WorkflowID] == run {
		delete(e.runs, run.WorkflowID)
	}
	e.mu.Unlock()

	if e.observer != nil {
		e.observer.ObserveRun(rec)
	}

	durationMs := finished.Sub(rec.StartedAt).Milliseconds()

	e.publish(ctx, run, events.RunFinished{
		BaseEvent:     e.base(events.RunFinishedEvent, run),
		Status:        rec.Status,
		FailedNodeID:  rec.FailedNodeID,
		Reason:        rec.Reason,
		Cancelled:     rec.Cancelled,
		DurationMs:    durationMs,
		NodesExecuted: len(rec.Results),
	})

	otelhelper.SetStatus(span, otelhelper.NodeStatusKey, string(rec.Status), rec.Reason)

	logger.Info("Finished workflow execution",
		"status", rec.Status,
		"nodes_executed", len(rec.Results),
		"failed_node_id", rec.FailedNodeID,
		"cancelled", rec.Cancelled,
		"duration_ms", durationMs,
	)
}

// visit runs one node and returns its outcome and, when the run must stop,
// the reason.
func (e *Engine) visit(
	ctx context.Context,
	run *Run,
	def *models.WorkflowDefinition,
	node *models.WorkflowNode,
	entry map[string]any,
	results []models.NodeOutcome,
	logger *slog.Logger,
) (models.NodeOutcome, string) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, node.ID),
		attribute.String(otelhelper.NodeKindKey, string(node.Kind)),
	)
	defer span.End()

	logger = logger.With("node_id", node.ID, "kind", node.Kind)
	started := e.clock.Now()

	e.setNodeStatus(ctx, run, node, models.NodeStatusRunning, logger)

	inbound := activeInbound(run.Plan, def, node.ID)
	for _, edge := range inbound {
		e.setEdgeStatus(ctx, run, edge, models.EdgeStatusActive, logger)
	}

	in := protocol.NodeInput{
		WorkflowID:  run.WorkflowID,
		ExecutionID: run.ID,
		Node:        node.Clone(),
		Entry:       entry,
		Upstream:    upstream(inbound, results),
		Branch:      run.Plan.Branch(node.ID),
		Results:     slices.Clone(results),
	}

	for _, u := range in.Upstream {
		if !u.Succeeded() {
			in.Partial = true
		}
	}

	if e.latency > 0 {
		e.clock.Sleep(e.latency)
	}

	out, sent := e.perform(ctx, run, def, in)
	if out.Halt != "" && out.Err == nil {
		out.Err = errors.New(out.Halt)
	}

	outcome := models.NodeOutcome{
		NodeID:       node.ID,
		Kind:         node.Kind,
		Status:       models.NodeStatusCompleted,
		Response:     out.Response,
		PartialInput: in.Partial,
		A2A:          sent,
		StartedAt:    started.UTC(),
		ElapsedMs:    e.clock.Since(started).Milliseconds(),
	}

	if out.Err != nil {
		outcome.Status = models.NodeStatusError
		outcome.Error = out.Err.Error()

		logger.Warn("Node failed", "error", out.Err, "halt", out.Halt != "")
	} else {
		logger.Debug("Node completed", "elapsed_ms", outcome.ElapsedMs)
	}

	e.setNodeStatus(ctx, run, node, outcome.Status, logger)

	for _, edge := range inbound {
		e.setEdgeStatus(ctx, run, edge, edgeOutcome(edge, in.Upstream, outcome.Status), logger)
	}

	if e.observer != nil {
		e.observer.ObserveNode(outcome)
	}

	otelhelper.SetStatus(span, otelhelper.NodeStatusKey, string(outcome.Status), outcome.Error)

	return outcome, out.Halt
}

// perform does the modeled work of a node. Panics from invokers, transports
// or executors become node errors.
func (e *Engine) perform(ctx context.Context, run *Run, def *models.WorkflowDefinition, in protocol.NodeInput) (out protocol.NodeOutput, sent []models.A2AOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = protocol.NodeOutput{Err: fmt.Errorf("node %s panicked: %v", in.Node.ID, r)}
		}
	}()

	switch in.Node.Kind {
	case models.NodeKindAgent:
		response, err := e.invoke(ctx, in)
		if err != nil {
			return protocol.NodeOutput{Err: err}, nil
		}

		return protocol.NodeOutput{Response: response}, e.sendFromAgent(ctx, run, def, in, response)
	case models.NodeKindTool:
		response, err := e.invoke(ctx, in)
		if err != nil {
			return protocol.NodeOutput{Err: err}, nil
		}

		return protocol.NodeOutput{Response: response}, nil
	case models.NodeKindA2AConnector:
		return e.connect(ctx, run, def, in)
	}

	executor, ok := e.executors[in.Node.Kind]
	if !ok {
		return protocol.NodeOutput{Err: fmt.Errorf("%w: %s", ErrNoExecutor, in.Node.Kind)}, nil
	}

	return executor.Execute(ctx, in), nil
}

func (e *Engine) invoke(ctx context.Context, in protocol.NodeInput) (any, error) {
	if e.invoker == nil {
		return nil, ErrNoInvoker
	}

	return e.invoker.Invoke(ctx, protocol.Invocation{
		WorkflowID:  in.WorkflowID,
		ExecutionID: in.ExecutionID,
		Node:        in.Node,
		Input:       in.Payload(),
		Upstream:    in.Upstream,
	})
}

// sendFromAgent delivers the agent's response across each of its outbound
// connector edges.
func (e *Engine) sendFromAgent(ctx context.Context, run *Run, def *models.WorkflowDefinition, in protocol.NodeInput, response any) []models.A2AOutcome {
	edges := def.OutboundEdges(in.Node.ID, models.EdgeKindA2A)
	if len(edges) == 0 {
		return nil
	}

	logger := e.logger.With("workflow_id", run.WorkflowID, "execution_id", run.ID, "node_id", in.Node.ID)
	outcomes := make([]models.A2AOutcome, 0, len(edges))

	for _, edge := range edges {
		target := def.Node(edge.TargetNodeID)
		if target == nil {
			continue
		}

		e.setEdgeStatus(ctx, run, edge, models.EdgeStatusActive, logger)

		outcome := e.deliver(ctx, run, edge.ID, edge.Connector, in, in.Node, target, response)

		status := models.EdgeStatusSuccess
		if outcome.Status != models.A2ADelivered {
			status = models.EdgeStatusError
		}

		e.setEdgeStatus(ctx, run, edge, status, logger)

		outcomes = append(outcomes, outcome)
	}

	return outcomes
}

// connect runs a connector node: one message from its source agent to its
// target agent. The node fails unless the message is delivered.
func (e *Engine) connect(ctx context.Context, run *Run, def *models.WorkflowDefinition, in protocol.NodeInput) (protocol.NodeOutput, []models.A2AOutcome) {
	cfg := in.Node.Payload.A2AConnector

	from := resolveAgent(def, cfg.FromAgentID)
	to := resolveAgent(def, cfg.ToAgentID)

	if from == nil || to == nil {
		return protocol.NodeOutput{Err: fmt.Errorf("connector %s: agents %q and %q must both be in the workflow", in.Node.ID, cfg.FromAgentID, cfg.ToAgentID)}, nil
	}

	outcome := e.deliver(ctx, run, in.Node.ID, cfg.Connector(), in, from, to, in.Payload())

	out := protocol.NodeOutput{Response: outcome.Response}
	if outcome.Status != models.A2ADelivered {
		out.Err = fmt.Errorf("message %s: %s", outcome.Status, outcome.Reason)
	}

	return out, []models.A2AOutcome{outcome}
}

func (e *Engine) deliver(
	ctx context.Context,
	run *Run,
	edgeID string,
	cfg *models.ConnectorConfig,
	in protocol.NodeInput,
	from, to *models.WorkflowNode,
	payload any,
) models.A2AOutcome {
	tmpl := ""
	if cfg != nil {
		tmpl = cfg.MessageTemplate
	}

	var outcome models.A2AOutcome

	content, err := template.RenderMessage(tmpl, template.MessageData{
		From:      describe(from),
		To:        describe(to),
		Input:     in.Entry,
		Upstream:  payload,
		Execution: map[string]any{"id": run.ID, "workflow_id": run.WorkflowID},
	})
	if err != nil {
		outcome = models.A2AOutcome{
			EdgeID:     edgeID,
			FromNodeID: from.ID,
			ToNodeID:   to.ID,
			Status:     models.A2AFailed,
			Reason:     err.Error(),
		}
	} else {
		outcome = e.messenger.Send(ctx, edgeID, cfg, a2a.Message{
			WorkflowID:  run.WorkflowID,
			ExecutionID: run.ID,
			EdgeID:      edgeID,
			From:        from,
			To:          to,
			Content:     content,
			Payload:     payload,
		})
	}

	e.publish(ctx, run, events.A2AMessage{
		BaseEvent: e.base(events.A2AMessageEvent, run),
		Outcome:   outcome,
	})

	return outcome
}

func (e *Engine) setNodeStatus(ctx context.Context, run *Run, node *models.WorkflowNode, status models.NodeStatus, logger *slog.Logger) {
	if err := e.store.SetNodeStatus(run.WorkflowID, run.ID, node.ID, status); err != nil {
		logger.Error("Failed to update node status", "status", status, "error", err)
	}

	e.publish(ctx, run, events.NodeStatusChanged{
		BaseEvent: e.base(events.NodeStatusChangedEvent, run),
		NodeID:    node.ID,
		Kind:      node.Kind,
		Status:    status,
	})
}

func (e *Engine) setEdgeStatus(ctx context.Context, run *Run, edge *models.WorkflowEdge, status models.EdgeStatus, logger *slog.Logger) {
	if err := e.store.SetEdgeStatus(run.WorkflowID, run.ID, edge.ID, status); err != nil {
		logger.Error("Failed to update edge status", "edge_id", edge.ID, "status", status, "error", err)
	}

	e.publish(ctx, run, events.EdgeStatusChanged{
		BaseEvent:    e.base(events.EdgeStatusChangedEvent, run),
		EdgeID:       edge.ID,
		SourceNodeID: edge.SourceNodeID,
		TargetNodeID: edge.TargetNodeID,
		Status:       status,
	})
}

func (e *Engine) publish(ctx context.Context, run *Run, event eventbus.Event) {
	if err := e.publisher.Publish(ctx, run.WorkflowID, event); err != nil {
		e.logger.Warn("Failed to publish event", "event_type", event.GetType(), "execution_id", run.ID, "error", err)
	}
}

func (e *Engine) base(eventType events.EventType, run *Run) events.BaseEvent {
	return events.NewBaseEvent(eventType, run.WorkflowID, run.ID, e.clock.Now())
}

func activeInbound(plan *Plan, def *models.WorkflowDefinition, nodeID string) []*models.WorkflowEdge {
	var edges []*models.WorkflowEdge

	for _, edge := range def.InboundEdges(nodeID, models.EdgeKindData) {
		if plan.Active(edge.ID) {
			edges = append(edges, edge)
		}
	}

	return edges
}

// edgeOutcome is error when either endpoint of the edge failed in this run.
func edgeOutcome(edge *models.WorkflowEdge, upstream []protocol.Upstream, target models.NodeStatus) models.EdgeStatus {
	if target == models.NodeStatusError {
		return models.EdgeStatusError
	}

	for _, u := range upstream {
		if u.NodeID == edge.SourceNodeID && !u.Succeeded() {
			return models.EdgeStatusError
		}
	}

	return models.EdgeStatusSuccess
}

// upstream collects the recorded outcome of each distinct source, in edge order.
func upstream(inbound []*models.WorkflowEdge, results []models.NodeOutcome) []protocol.Upstream {
	if len(inbound) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(inbound))
	out := make([]protocol.Upstream, 0, len(inbound))

	for _, edge := range inbound {
		if seen[edge.SourceNodeID] {
			continue
		}

		seen[edge.SourceNodeID] = true

		for _, r := range results {
			if r.NodeID == edge.SourceNodeID {
				out = append(out, protocol.Upstream{
					NodeID:   r.NodeID,
					Kind:     r.Kind,
					Status:   r.Status,
					Response: r.Response,
					Error:    r.Error,
				})

				break
			}
		}
	}

	return out
}

// resolveAgent finds an agent node by node id or by its agent descriptor id.
func resolveAgent(def *models.WorkflowDefinition, id string) *models.WorkflowNode {
	if n := def.Node(id); n != nil && n.Kind == models.NodeKindAgent {
		return n
	}

	for _, n := range def.Nodes {
		if n.Kind == models.NodeKindAgent && n.Payload.Agent != nil && n.Payload.Agent.AgentID == id {
			return n
		}
	}

	return nil
}

func describe(n *models.WorkflowNode) map[string]any {
	if n == nil {
		return nil
	}

	out := map[string]any{
		"id":   n.ID,
		"name": n.Name,
		"kind": string(n.Kind),
	}

	if n.Payload.Agent != nil {
		out["agent_id"] = n.Payload.Agent.AgentID
		out["model"] = n.Payload.Agent.Model
	}

	return out
}
