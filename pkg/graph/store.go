package graph

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/agentgraph/pkg/expr"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// NodeUpdate lists the presentation-owned fields of a node. Nil fields are
// left untouched; kind and id never change.
type NodeUpdate struct {
	Name     *string             `json:"name,omitempty"`
	Position *models.Position    `json:"position,omitempty"`
	Payload  *models.NodePayload `json:"payload,omitempty"`
}

type entry struct {
	def   *models.WorkflowDefinition
	runID string
}

// Store keeps the authoritative definition of every workflow. While a run
// holds a workflow, only that run may change node and edge statuses and all
// other mutations fail with ErrWorkflowLocked.
type Store struct {
	logger    *slog.Logger
	clock     clockwork.Clock
	evaluator *expr.Evaluator

	mu        sync.RWMutex
	workflows map[string]*entry
	order     []string
}

type StoreOption func(*Store)

func WithStoreClock(clock clockwork.Clock) StoreOption {
	return func(s *Store) { s.clock = clock }
}

func NewStore(logger *slog.Logger, opts ...StoreOption) *Store {
	s := &Store{
		logger:    logger.With("module", "graph_store"),
		clock:     clockwork.NewRealClock(),
		evaluator: expr.NewEvaluator(),
		workflows: make(map[string]*entry),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *Store) blank() models.WorkflowDefinition {
	now := s.clock.Now().UTC()

	return models.WorkflowDefinition{CreatedAt: now, UpdatedAt: now}
}

// CreateWorkflow registers an empty workflow and returns its id.
func (s *Store) CreateWorkflow(name, description string) string {
	def := s.blank()
	def.ID = uuid.NewString()
	def.Name = name
	def.Description = description
	def.Nodes = []*models.WorkflowNode{}
	def.Edges = []*models.WorkflowEdge{}

	s.mu.Lock()
	s.workflows[def.ID] = &entry{def: &def}
	s.order = append(s.order, def.ID)
	s.mu.Unlock()

	s.logger.Info("Created workflow", "workflow_id", def.ID, "name", name)

	return def.ID
}

// Import stores a complete definition, replacing any workflow with the same
// id. Every node and edge is checked as if added one by one, and statuses are
// reset to idle. An empty id gets a fresh one.
func (s *Store) Import(def *models.WorkflowDefinition) (string, error) {
	candidate := def.Clone()
	if candidate.ID == "" {
		candidate.ID = uuid.NewString()
	}

	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = s.clock.Now().UTC()
	}

	candidate.UpdatedAt = s.clock.Now().UTC()

	if err := checkDefinition(candidate, s.checkNode); err != nil {
		return "", NewWorkflowError("import", candidate.ID, err)
	}

	candidate.ResetStatuses()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.workflows[candidate.ID]; ok {
		if existing.runID != "" {
			return "", NewWorkflowError("import", candidate.ID, ErrWorkflowLocked)
		}

		existing.def = candidate
	} else {
		s.workflows[candidate.ID] = &entry{def: candidate}
		s.order = append(s.order, candidate.ID)
	}

	s.logger.Info("Imported workflow",
		"workflow_id", candidate.ID,
		"nodes", len(candidate.Nodes),
		"edges", len(candidate.Edges))

	return candidate.ID, nil
}

// checkNode validates the node and compiles its decision conditions and
// guardrail checks.
func (s *Store) checkNode(n *models.WorkflowNode) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidNode, err)
	}

	var expressions []string

	if d := n.Payload.Decision; d != nil {
		for _, b := range d.Branches {
			if b.Condition != "" {
				expressions = append(expressions, b.Condition)
			}
		}
	}

	if g := n.Payload.Guardrail; g != nil {
		expressions = append(expressions, g.Checks...)
	}

	for _, expression := range expressions {
		if err := s.evaluator.Compile(expression); err != nil {
			return fmt.Errorf("%w: node %s: %w", ErrInvalidNode, n.ID, err)
		}
	}

	return nil
}

func checkDefinition(def *models.WorkflowDefinition, checkNode func(*models.WorkflowNode) error) error {
	staged := &models.WorkflowDefinition{}
	seen := make(map[string]bool, len(def.Nodes))

	for _, n := range def.Nodes {
		if err := checkNode(n); err != nil {
			return err
		}

		if seen[n.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
		}

		seen[n.ID] = true
		staged.Nodes = append(staged.Nodes, n)
	}

	for _, e := range def.Edges {
		if staged.Edge(e.ID) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateEdge, e.ID)
		}

		if err := admit(staged, e); err != nil {
			return err
		}

		staged.Edges = append(staged.Edges, e)
	}

	return nil
}

// admit checks an edge against the definition it would join.
func admit(def *models.WorkflowDefinition, e *models.WorkflowEdge) error {
	if e.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidEdge)
	}

	if !e.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEdge, e.Kind)
	}

	source := def.Node(e.SourceNodeID)
	if source == nil {
		return fmt.Errorf("%w: source %s", ErrNodeNotFound, e.SourceNodeID)
	}

	target := def.Node(e.TargetNodeID)
	if target == nil {
		return fmt.Errorf("%w: target %s", ErrNodeNotFound, e.TargetNodeID)
	}

	if result := ValidateConnection(source, target, e.Kind, def.Edges); !result.Valid {
		return &ConnectionError{SourceNodeID: source.ID, TargetNodeID: target.ID, Reason: result.Reason}
	}

	return nil
}

// GetWorkflow returns a copy of the workflow.
func (s *Store) GetWorkflow(workflowID string) (*models.WorkflowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.workflows[workflowID]
	if !ok {
		return nil, NewWorkflowError("get", workflowID, ErrWorkflowNotFound)
	}

	return e.def.Clone(), nil
}

// ListWorkflows returns copies of all workflows in creation order.
func (s *Store) ListWorkflows() []*models.WorkflowDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.WorkflowDefinition, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.workflows[id].def.Clone())
	}

	return out
}

func (s *Store) DeleteWorkflow(workflowID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.workflows[workflowID]
	if !ok {
		return NewWorkflowError("delete", workflowID, ErrWorkflowNotFound)
	}

	if e.runID != "" {
		return NewWorkflowError("delete", workflowID, ErrWorkflowLocked)
	}

	delete(s.workflows, workflowID)

	for i, id := range s.order {
		if id == workflowID {
			s.order = append(s.order[:i], s.order[i+1:]...)

			break
		}
	}

	s.logger.Info("Deleted workflow", "workflow_id", workflowID)

	return nil
}

// Reset replaces the workflow with an empty definition that keeps its id,
// name and description.
func (s *Store) Reset(workflowID string) error {
	return s.mutate("reset", workflowID, func(e *entry) error {
		def := s.blank()
		def.ID = e.def.ID
		def.Name = e.def.Name
		def.Description = e.def.Description
		def.Nodes = []*models.WorkflowNode{}
		def.Edges = []*models.WorkflowEdge{}
		e.def = &def

		return nil
	})
}

// ResetStatuses returns every node and edge to idle without touching the graph.
func (s *Store) ResetStatuses(workflowID string) error {
	return s.mutate("reset_statuses", workflowID, func(e *entry) error {
		e.def.ResetStatuses()

		return nil
	})
}

func (s *Store) mutate(op, workflowID string, fn func(*entry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.workflows[workflowID]
	if !ok {
		return NewWorkflowError(op, workflowID, ErrWorkflowNotFound)
	}

	if e.runID != "" {
		return NewWorkflowError(op, workflowID, ErrWorkflowLocked)
	}

	if err := fn(e); err != nil {
		return NewWorkflowError(op, workflowID, err)
	}

	e.def.UpdatedAt = s.clock.Now().UTC()

	return nil
}

// AddNode inserts a copy of node. Nodes always enter the store idle.
func (s *Store) AddNode(workflowID string, node *models.WorkflowNode) error {
	if err := s.checkNode(node); err != nil {
		return NewWorkflowError("add_node", workflowID, err)
	}

	return s.mutate("add_node", workflowID, func(e *entry) error {
		if e.def.Node(node.ID) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
		}

		n := node.Clone()
		n.Status = models.NodeStatusIdle
		e.def.Nodes = append(e.def.Nodes, n)

		s.logger.Debug("Added node", "workflow_id", workflowID, "node_id", n.ID, "kind", n.Kind)

		return nil
	})
}

// UpdateNode applies presentation edits and returns the updated node.
func (s *Store) UpdateNode(workflowID, nodeID string, update NodeUpdate) (*models.WorkflowNode, error) {
	var updated *models.WorkflowNode

	err := s.mutate("update_node", workflowID, func(e *entry) error {
		n := e.def.Node(nodeID)
		if n == nil {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
		}

		candidate := n.Clone()

		if update.Name != nil {
			candidate.Name = *update.Name
		}

		if update.Position != nil {
			candidate.Position = *update.Position
		}

		if update.Payload != nil {
			candidate.Payload = update.Payload.Clone()
		}

		if err := s.checkNode(candidate); err != nil {
			return err
		}

		*n = *candidate
		updated = candidate.Clone()

		return nil
	})

	return updated, err
}

// RemoveNode deletes the node together with every edge that references it.
func (s *Store) RemoveNode(workflowID, nodeID string) error {
	return s.mutate("remove_node", workflowID, func(e *entry) error {
		idx := -1

		for i, n := range e.def.Nodes {
			if n.ID == nodeID {
				idx = i

				break
			}
		}

		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
		}

		e.def.Nodes = append(e.def.Nodes[:idx], e.def.Nodes[idx+1:]...)

		kept := e.def.Edges[:0]
		removed := 0

		for _, edge := range e.def.Edges {
			if edge.SourceNodeID == nodeID || edge.TargetNodeID == nodeID {
				removed++

				continue
			}

			kept = append(kept, edge)
		}

		e.def.Edges = kept

		s.logger.Debug("Removed node", "workflow_id", workflowID, "node_id", nodeID, "cascaded_edges", removed)

		return nil
	})
}

// AddEdge validates and stores a copy of edge, assigning an id and the data
// kind when missing. The stored edge is returned.
func (s *Store) AddEdge(workflowID string, edge *models.WorkflowEdge) (*models.WorkflowEdge, error) {
	candidate := edge.Clone()
	if candidate.ID == "" {
		candidate.ID = "edge-" + uuid.NewString()
	}

	if candidate.Kind == "" {
		candidate.Kind = models.EdgeKindData
	}

	candidate.Status = models.EdgeStatusIdle
	candidate.Animated = false

	err := s.mutate("add_edge", workflowID, func(e *entry) error {
		if e.def.Edge(candidate.ID) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateEdge, candidate.ID)
		}

		if err := admit(e.def, candidate); err != nil {
			return err
		}

		e.def.Edges = append(e.def.Edges, candidate.Clone())

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Added edge",
		"workflow_id", workflowID,
		"edge_id", candidate.ID,
		"source", candidate.SourceNodeID,
		"target", candidate.TargetNodeID,
		"kind", candidate.Kind)

	return candidate, nil
}

func (s *Store) RemoveEdge(workflowID, edgeID string) error {
	return s.mutate("remove_edge", workflowID, func(e *entry) error {
		for i, edge := range e.def.Edges {
			if edge.ID == edgeID {
				e.def.Edges = append(e.def.Edges[:i], e.def.Edges[i+1:]...)

				return nil
			}
		}

		return fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
	})
}

// Acquire hands exclusive ownership of the workflow to runID, resets all
// statuses to idle and returns a copy of the definition. When check is given
// it runs against that copy first; if it fails the workflow is left exactly
// as it was.
func (s *Store) Acquire(workflowID, runID string, check func(*models.WorkflowDefinition) error) (*models.WorkflowDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.workflows[workflowID]
	if !ok {
		return nil, NewWorkflowError("acquire", workflowID, ErrWorkflowNotFound)
	}

	if e.runID != "" {
		return nil, NewWorkflowError("acquire", workflowID, ErrWorkflowLocked)
	}

	def := e.def.Clone()
	def.ResetStatuses()

	if check != nil {
		if err := check(def); err != nil {
			return nil, NewWorkflowError("acquire", workflowID, err)
		}
	}

	e.runID = runID
	e.def.ResetStatuses()

	return def, nil
}

// Release ends runID's ownership. Releasing a workflow the run does not own
// is a no-op.
func (s *Store) Release(workflowID, runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.workflows[workflowID]; ok && e.runID == runID {
		e.runID = ""
	}
}

// ActiveRun returns the id of the run holding the workflow, if any.
func (s *Store) ActiveRun(workflowID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.workflows[workflowID]
	if !ok || e.runID == "" {
		return "", false
	}

	return e.runID, true
}

func (s *Store) owned(op, workflowID, runID string) (*entry, error) {
	e, ok := s.workflows[workflowID]
	if !ok {
		return nil, NewWorkflowError(op, workflowID, ErrWorkflowNotFound)
	}

	if e.runID == "" || e.runID != runID {
		return nil, NewWorkflowError(op, workflowID, ErrNotRunOwner)
	}

	return e, nil
}

// SetNodeStatus moves a node forward in its lifecycle on behalf of runID.
func (s *Store) SetNodeStatus(workflowID, runID, nodeID string, status models.NodeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.owned("set_node_status", workflowID, runID)
	if err != nil {
		return err
	}

	n := e.def.Node(nodeID)
	if n == nil {
		return NewWorkflowError("set_node_status", workflowID, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID))
	}

	if !n.Status.CanTransition(status) {
		return NewWorkflowError("set_node_status", workflowID,
			fmt.Errorf("%w: node %s %s -> %s", ErrInvalidTransition, nodeID, n.Status, status))
	}

	n.Status = status

	return nil
}

// SetEdgeStatus moves an edge forward in its lifecycle on behalf of runID.
func (s *Store) SetEdgeStatus(workflowID, runID, edgeID string, status models.EdgeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.owned("set_edge_status", workflowID, runID)
	if err != nil {
		return err
	}

	edge := e.def.Edge(edgeID)
	if edge == nil {
		return NewWorkflowError("set_edge_status", workflowID, fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID))
	}

	if !edge.Status.CanTransition(status) {
		return NewWorkflowError("set_edge_status", workflowID,
			fmt.Errorf("%w: edge %s %s -> %s", ErrInvalidTransition, edgeID, edge.Status, status))
	}

	edge.Status = status
	edge.Animated = status == models.EdgeStatusActive

	return nil
}
