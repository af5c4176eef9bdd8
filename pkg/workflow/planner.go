package workflow

import (
	"slices"

	"github.com/dukex/agentgraph/pkg/expr"
	"github.com/dukex/agentgraph/pkg/models"
)

// Plan is the ordered list of nodes a run will visit.
type Plan struct {
	Path []string `json:"path"`

	// Branches maps each planned decision node to the branch it selected.
	// An empty name means no branch matched and the decision ends its path.
	Branches map[string]string `json:"branches,omitempty"`

	// Edges are the data edges that will carry data in this run, in the
	// order their targets are visited.
	Edges []string `json:"edges"`

	selected map[string]*models.Branch
	active   map[string]bool
	index    map[string]int
}

// Branch returns the branch selected for a decision node, or nil.
func (p *Plan) Branch(nodeID string) *models.Branch {
	return p.selected[nodeID]
}

// Active reports whether the data edge is followed in this run.
func (p *Plan) Active(edgeID string) bool {
	return p.active[edgeID]
}

// Contains reports whether the node is visited.
func (p *Plan) Contains(nodeID string) bool {
	_, ok := p.index[nodeID]

	return ok
}

// Planner turns a workflow definition into a deterministic execution path.
// It never mutates the definition it is given.
type Planner struct {
	evaluator *expr.Evaluator
}

func NewPlanner(evaluator *expr.Evaluator) *Planner {
	if evaluator == nil {
		evaluator = expr.NewEvaluator()
	}

	return &Planner{evaluator: evaluator}
}

// PlanExecution plans def with a fresh evaluator.
func PlanExecution(def *models.WorkflowDefinition, entry map[string]any) (*Plan, error) {
	return NewPlanner(nil).Plan(def, entry)
}

// Plan rejects cyclic graphs, then walks the graph from each entry node in
// creation order. Decision nodes follow the first branch whose condition
// holds for entry, falling back to the default branch. A node with several
// inbound edges is emitted only after every source that is reachable in this
// run has been emitted.
func (p *Planner) Plan(def *models.WorkflowDefinition, entry map[string]any) (*Plan, error) {
	if err := DetectCycle(def); err != nil {
		return nil, err
	}

	plan := &Plan{
		Path:     make([]string, 0, len(def.Nodes)),
		Branches: make(map[string]string),
		Edges:    make([]string, 0),
		selected: make(map[string]*models.Branch),
		active:   make(map[string]bool),
		index:    make(map[string]int),
	}

	outbound := make(map[string][]*models.WorkflowEdge, len(def.Nodes))
	inbound := make(map[string][]*models.WorkflowEdge, len(def.Nodes))

	for _, e := range dataEdges(def) {
		outbound[e.SourceNodeID] = append(outbound[e.SourceNodeID], e)
		inbound[e.TargetNodeID] = append(inbound[e.TargetNodeID], e)
	}

	for _, n := range def.Nodes {
		if n.Kind != models.NodeKindDecision || n.Payload.Decision == nil {
			continue
		}

		b := p.selectBranch(n.Payload.Decision, entry)
		if b != nil {
			plan.selected[n.ID] = b
		}
	}

	follows := func(e *models.WorkflowEdge) bool {
		source := def.Node(e.SourceNodeID)
		if source.Kind != models.NodeKindDecision {
			return true
		}

		b := plan.selected[source.ID]

		return b != nil && b.TargetNodeID == e.TargetNodeID
	}

	var entries []string

	for _, n := range def.Nodes {
		if len(inbound[n.ID]) == 0 {
			entries = append(entries, n.ID)
		}
	}

	reachable := make(map[string]bool, len(def.Nodes))
	queue := slices.Clone(entries)

	for _, id := range queue {
		reachable[id] = true
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, e := range outbound[id] {
			if follows(e) && !reachable[e.TargetNodeID] {
				reachable[e.TargetNodeID] = true
				queue = append(queue, e.TargetNodeID)
			}
		}
	}

	ready := func(id string) bool {
		for _, e := range inbound[id] {
			if !reachable[e.SourceNodeID] || !follows(e) {
				continue
			}

			if !plan.Contains(e.SourceNodeID) {
				return false
			}
		}

		return true
	}

	emit := func(id string) {
		plan.index[id] = len(plan.Path)
		plan.Path = append(plan.Path, id)

		for _, e := range inbound[id] {
			if plan.Contains(e.SourceNodeID) && follows(e) {
				plan.active[e.ID] = true
				plan.Edges = append(plan.Edges, e.ID)
			}
		}

		if n := def.Node(id); n.Kind == models.NodeKindDecision {
			name := ""
			if b := plan.selected[id]; b != nil {
				name = b.Name
			}

			plan.Branches[id] = name
		}
	}

	for _, start := range entries {
		if plan.Contains(start) {
			continue
		}

		emit(start)
		segment := []string{start}

		for len(segment) > 0 {
			id := segment[0]
			segment = segment[1:]

			for _, e := range outbound[id] {
				target := e.TargetNodeID
				if !follows(e) || plan.Contains(target) || !ready(target) {
					continue
				}

				emit(target)
				segment = append(segment, target)
			}
		}
	}

	return plan, nil
}

func (p *Planner) selectBranch(d *models.DecisionPayload, entry map[string]any) *models.Branch {
	for i := range d.Branches {
		b := d.Branches[i]
		if b.Default {
			continue
		}

		if ok, err := p.evaluator.Match(b.Condition, entry); err == nil && ok {
			return &b
		}
	}

	if b, ok := d.DefaultBranch(); ok {
		return &b
	}

	return nil
}

// dataEdges returns the data edges whose endpoints both exist.
func dataEdges(def *models.WorkflowDefinition) []*models.WorkflowEdge {
	edges := make([]*models.WorkflowEdge, 0, len(def.Edges))

	for _, e := range def.Edges {
		if e.Kind == models.EdgeKindA2A {
			continue
		}

		if def.Node(e.SourceNodeID) == nil || def.Node(e.TargetNodeID) == nil {
			continue
		}

		edges = append(edges, e)
	}

	return edges
}

// DetectCycle returns a *CyclicGraphError for the first cycle found among
// data edges, visiting nodes in creation order.
func DetectCycle(def *models.WorkflowDefinition) error {
	const (
		unvisited = iota
		visiting
		done
	)

	outbound := make(map[string][]string, len(def.Nodes))
	for _, e := range dataEdges(def) {
		outbound[e.SourceNodeID] = append(outbound[e.SourceNodeID], e.TargetNodeID)
	}

	state := make(map[string]int, len(def.Nodes))

	var (
		stack []string
		cycle []string
	)

	var visit func(id string) bool

	visit = func(id string) bool {
		state[id] = visiting
		stack = append(stack, id)

		for _, next := range outbound[id] {
			switch state[next] {
			case visiting:
				start := slices.Index(stack, next)
				cycle = append(slices.Clone(stack[start:]), next)

				return true
			case unvisited:
				if visit(next) {
					return true
				}
			}
		}

		stack = stack[:len(stack)-1]
		state[id] = done

		return false
	}

	for _, n := range def.Nodes {
		if state[n.ID] == unvisited && visit(n.ID) {
			return &CyclicGraphError{Cycle: cycle}
		}
	}

	return nil
}
