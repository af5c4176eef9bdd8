package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
)

// WorkflowRepository stores one JSON file per workflow under <root>/workflows.
type WorkflowRepository struct {
	root string
}

func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

// GetAll returns every stored workflow ordered by creation time.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowDefinition, error) {
	jsonFiles, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	workflows := make([]*models.WorkflowDefinition, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		def, err := wr.GetByID(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, def)
	}

	sort.SliceStable(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.Before(workflows[j].CreatedAt)
	})

	return workflows, nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.WorkflowDefinition, error) {
	if err := validateID(workflowID); err != nil {
		return nil, persistence.NewWorkflowError("get", workflowID, err)
	}

	body, err := os.ReadFile(filepath.Join(wr.dir(), workflowID+".json")) // #nosec G304 -- id is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("get", workflowID, persistence.ErrWorkflowNotFound)
		}

		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	var def models.WorkflowDefinition

	err = json.Unmarshal(body, &def)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal workflow %s: %w", workflowID, err)
	}

	return &def, nil
}

// Save writes the workflow, replacing any previous version.
func (wr *WorkflowRepository) Save(_ context.Context, def *models.WorkflowDefinition) error {
	if err := persistence.CheckWorkflow(def); err != nil {
		return err
	}

	if err := validateID(def.ID); err != nil {
		return persistence.NewWorkflowError("save", def.ID, err)
	}

	err := os.MkdirAll(wr.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workflow %s: %w", def.ID, err)
	}

	return os.WriteFile(filepath.Join(wr.dir(), def.ID+".json"), data, 0600)
}

// Delete removes a workflow by its ID. Deleting a missing workflow is not an error.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return persistence.NewWorkflowError("delete", id, err)
	}

	err := os.Remove(filepath.Join(wr.dir(), id+".json"))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	return nil
}
