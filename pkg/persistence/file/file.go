// Package file provides file-based persistence for workflow snapshots and
// execution history.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
)

var errInvalidID = errors.New("id contains invalid characters")

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root          string
	workflowRepo  *WorkflowRepository
	executionRepo *ExecutionRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:          cleanRoot,
		workflowRepo:  NewWorkflowRepository(cleanRoot),
		executionRepo: NewExecutionRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Workflows(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	return fp.workflowRepo.GetAll(ctx)
}

func (fp *Persistence) SaveWorkflow(ctx context.Context, def *models.WorkflowDefinition) error {
	return fp.workflowRepo.Save(ctx, def)
}

func (fp *Persistence) WorkflowByID(ctx context.Context, id string) (*models.WorkflowDefinition, error) {
	return fp.workflowRepo.GetByID(ctx, id)
}

// DeleteWorkflow removes the workflow and its execution history.
func (fp *Persistence) DeleteWorkflow(ctx context.Context, id string) error {
	if err := fp.workflowRepo.Delete(ctx, id); err != nil {
		return err
	}

	return fp.executionRepo.DeleteByWorkflow(ctx, id)
}

func (fp *Persistence) SaveExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	return fp.executionRepo.Save(ctx, rec)
}

func (fp *Persistence) ExecutionsByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	return fp.executionRepo.GetByWorkflow(ctx, workflowID)
}

func (fp *Persistence) ExecutionByID(ctx context.Context, workflowID, executionID string) (*models.ExecutionRecord, error) {
	return fp.executionRepo.GetByID(ctx, workflowID, executionID)
}

// validateID rejects ids that could escape the storage directory.
func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", errInvalidID, id)
	}

	return nil
}

var _ persistence.Persistence = (*Persistence)(nil)
