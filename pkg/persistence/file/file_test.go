package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/agentgraph/pkg/persistence/persistencetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPersistence(t *testing.T) {
	persistencetest.Run(t, NewPersistence("file://"+t.TempDir()))
}

func TestPersistence_HealthCheckMissingRoot(t *testing.T) {
	p := NewPersistence(filepath.Join(t.TempDir(), "missing"))

	assert.ErrorIs(t, p.HealthCheck(context.Background()), os.ErrNotExist)
}

func TestPersistence_RejectsPathTraversal(t *testing.T) {
	p := NewPersistence(t.TempDir())
	ctx := context.Background()

	tests := []string{"../escape", "a/b", `a\b`, ""}

	for _, id := range tests {
		t.Run(id, func(t *testing.T) {
			_, err := p.WorkflowByID(ctx, id)
			require.Error(t, err)

			_, err = p.ExecutionByID(ctx, "wf", id)
			require.Error(t, err)

			def := persistencetest.Workflow(id, persistencetest.Epoch)
			if id != "" {
				assert.ErrorIs(t, p.SaveWorkflow(ctx, def), errInvalidID)
			}
		})
	}
}

func TestPersistence_FileLayout(t *testing.T) {
	root := t.TempDir()
	p := NewPersistence(root)
	ctx := context.Background()

	require.NoError(t, p.SaveWorkflow(ctx, persistencetest.Workflow("wf-1", persistencetest.Epoch)))
	require.NoError(t, p.SaveExecution(ctx, persistencetest.Execution("wf-1", "exec-1", persistencetest.Epoch)))

	assert.FileExists(t, filepath.Join(root, "workflows", "wf-1.json"))
	assert.FileExists(t, filepath.Join(root, "executions", "wf-1", "exec-1.json"))
}
