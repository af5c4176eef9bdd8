package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/agentgraph/pkg/graph"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
	"github.com/dukex/agentgraph/pkg/snapshot"
	"github.com/dukex/agentgraph/pkg/workflow"
)

// Workflow manages workflow definitions. The graph store is authoritative;
// when persistence is configured every accepted change is written through.
type Workflow struct {
	store       *graph.Store
	persistence persistence.Persistence
	history     *workflow.History
	logger      *slog.Logger
}

type WorkflowOption func(*Workflow)

// WithHistory makes Delete also drop the in-memory execution history.
func WithHistory(h *workflow.History) WorkflowOption {
	return func(w *Workflow) { w.history = h }
}

// NewWorkflow creates a new workflow service. p may be nil to keep workflows
// in memory only.
func NewWorkflow(store *graph.Store, p persistence.Persistence, logger *slog.Logger, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		store:       store,
		persistence: p,
		logger:      logger.With("module", "workflow_service"),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Running without persistence", true
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// Restore imports every persisted workflow into the store. Workflows that no
// longer pass the graph rules are skipped and logged.
func (w *Workflow) Restore(ctx context.Context) (int, error) {
	if w.persistence == nil {
		return 0, nil
	}

	defs, err := w.persistence.Workflows(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load workflows: %w", err)
	}

	restored := 0

	for _, def := range defs {
		if _, err := w.store.Import(def); err != nil {
			w.logger.WarnContext(ctx, "Skipping persisted workflow", "workflow_id", def.ID, "error", err)

			continue
		}

		restored++
	}

	w.logger.InfoContext(ctx, "Restored workflows", "count", restored)

	return restored, nil
}

// List returns every workflow in creation order.
func (w *Workflow) List() []*models.WorkflowDefinition {
	return w.store.ListWorkflows()
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(id string) (*models.WorkflowDefinition, error) {
	return w.store.GetWorkflow(id)
}

// Create registers an empty workflow.
func (w *Workflow) Create(ctx context.Context, name, description string) (*models.WorkflowDefinition, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("create", "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	}

	id := w.store.CreateWorkflow(name, description)

	return w.persist(ctx, id)
}

// Delete removes the workflow and its persisted history.
func (w *Workflow) Delete(ctx context.Context, id string) error {
	if err := w.store.DeleteWorkflow(id); err != nil {
		return err
	}

	if w.history != nil {
		w.history.Forget(id)
	}

	if w.persistence == nil {
		return nil
	}

	if err := w.persistence.DeleteWorkflow(ctx, id); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

// Reset replaces the workflow with an empty definition.
func (w *Workflow) Reset(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	if err := w.store.Reset(id); err != nil {
		return nil, err
	}

	return w.persist(ctx, id)
}

// Export returns the portable snapshot of the workflow.
func (w *Workflow) Export(id string) (*models.Snapshot, error) {
	def, err := w.store.GetWorkflow(id)
	if err != nil {
		return nil, err
	}

	return snapshot.Export(def), nil
}

// Import loads a snapshot document. A snapshot whose metadata carries the id
// of an existing workflow replaces it.
func (w *Workflow) Import(ctx context.Context, data []byte) (*models.WorkflowDefinition, error) {
	def, err := snapshot.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	return w.ImportDefinition(ctx, def)
}

// ImportDefinition stores a decoded definition.
func (w *Workflow) ImportDefinition(ctx context.Context, def *models.WorkflowDefinition) (*models.WorkflowDefinition, error) {
	if def == nil {
		return nil, ErrWorkflowNil
	}

	id, err := w.store.Import(def)
	if err != nil {
		return nil, err
	}

	return w.persist(ctx, id)
}

// persist writes the current definition through and returns it.
func (w *Workflow) persist(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	def, err := w.store.GetWorkflow(id)
	if err != nil {
		return nil, err
	}

	if w.persistence == nil {
		return def, nil
	}

	if err := w.persistence.SaveWorkflow(ctx, def); err != nil {
		w.logger.ErrorContext(ctx, "Failed to persist workflow", "workflow_id", id, "error", err)

		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	return def, nil
}
