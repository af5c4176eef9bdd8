package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
)

// ExecutionRepository stores execution records under
// <root>/executions/<workflow id>/<execution id>.json.
type ExecutionRepository struct {
	root string
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root}
}

func (er *ExecutionRepository) dir(workflowID string) string {
	return filepath.Join(er.root, "executions", workflowID)
}

func (er *ExecutionRepository) Save(_ context.Context, rec *models.ExecutionRecord) error {
	if err := persistence.CheckExecution(rec); err != nil {
		return err
	}

	for _, id := range []string{rec.WorkflowID, rec.ID} {
		if err := validateID(id); err != nil {
			return persistence.NewExecutionError("save", rec.WorkflowID, rec.ID, err)
		}
	}

	dir := er.dir(rec.WorkflowID)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create executions directory: %w", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution %s: %w", rec.ID, err)
	}

	err = os.WriteFile(filepath.Join(dir, rec.ID+".json"), data, 0600)
	if err != nil {
		return fmt.Errorf("failed to write execution %s: %w", rec.ID, err)
	}

	return nil
}

func (er *ExecutionRepository) GetByWorkflow(ctx context.Context, workflowID string) ([]*models.ExecutionRecord, error) {
	if err := validateID(workflowID); err != nil {
		return nil, persistence.NewExecutionError("list", workflowID, "", err)
	}

	files, err := fs.Glob(os.DirFS(er.dir(workflowID)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list execution files: %w", err)
	}

	records := make([]*models.ExecutionRecord, 0, len(files))

	for _, file := range files {
		rec, err := er.read(workflowID, file[:len(file)-len(".json")])
		if err != nil {
			return nil, err
		}

		records = append(records, rec)
	}

	persistence.SortExecutions(records)

	return records, nil
}

func (er *ExecutionRepository) GetByID(_ context.Context, workflowID, executionID string) (*models.ExecutionRecord, error) {
	for _, id := range []string{workflowID, executionID} {
		if err := validateID(id); err != nil {
			return nil, persistence.NewExecutionError("get", workflowID, executionID, err)
		}
	}

	return er.read(workflowID, executionID)
}

func (er *ExecutionRepository) read(workflowID, executionID string) (*models.ExecutionRecord, error) {
	data, err := os.ReadFile(filepath.Join(er.dir(workflowID), executionID+".json")) // #nosec G304 -- ids are validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError("get", workflowID, executionID, persistence.ErrExecutionNotFound)
		}

		return nil, fmt.Errorf("failed to read execution %s: %w", executionID, err)
	}

	var rec models.ExecutionRecord

	err = json.Unmarshal(data, &rec)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", executionID, err)
	}

	return &rec, nil
}

// DeleteByWorkflow drops the whole history of a workflow.
func (er *ExecutionRepository) DeleteByWorkflow(_ context.Context, workflowID string) error {
	if err := validateID(workflowID); err != nil {
		return persistence.NewExecutionError("delete", workflowID, "", err)
	}

	err := os.RemoveAll(er.dir(workflowID))
	if err != nil {
		return fmt.Errorf("failed to delete executions of workflow %s: %w", workflowID, err)
	}

	return nil
}
