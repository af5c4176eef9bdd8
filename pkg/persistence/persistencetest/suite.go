// Package persistencetest holds the behaviour every persistence backend must
// share, run against each implementation from its own tests.
package persistencetest

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Epoch is the creation time of fixtures built by the suite.
var Epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Workflow builds a small definition with one agent feeding a decision.
func Workflow(id string, created time.Time) *models.WorkflowDefinition {
	retries := 2

	return &models.WorkflowDefinition{
		ID:          id,
		Name:        "Workflow " + id,
		Description: "persisted workflow",
		CreatedAt:   created,
		UpdatedAt:   created,
		Nodes: []*models.WorkflowNode{
			{
				ID:        "agent-1",
				Kind:      models.NodeKindAgent,
				Name:      "Triage",
				Position:  models.Position{X: 10, Y: 20},
				Status:    models.NodeStatusCompleted,
				CreatedAt: created,
				Payload: models.NodePayload{Agent: &models.AgentPayload{
					AgentID:             "triage",
					Name:                "Triage",
					Capabilities:        []string{"search"},
					ReasoningPattern:    models.ReasoningReAct,
					ChainOfThoughtDepth: 2,
				}},
			},
			{
				ID:        "agent-2",
				Kind:      models.NodeKindAgent,
				Name:      "Resolver",
				Status:    models.NodeStatusIdle,
				CreatedAt: created,
				Payload:   models.NodePayload{Agent: &models.AgentPayload{AgentID: "resolver", Name: "Resolver"}},
			},
		},
		Edges: []*models.WorkflowEdge{
			{
				ID:           "edge-1",
				SourceNodeID: "agent-1",
				TargetNodeID: "agent-2",
				Kind:         models.EdgeKindA2A,
				Status:       models.EdgeStatusSuccess,
				Connector:    &models.ConnectorConfig{TimeoutUnits: 5, RetryCount: &retries},
			},
		},
	}
}

// Execution builds a terminal record of workflowID started at started.
func Execution(workflowID, id string, started time.Time) *models.ExecutionRecord {
	finished := started.Add(time.Second)

	return &models.ExecutionRecord{
		ID:            id,
		WorkflowID:    workflowID,
		StartedAt:     started,
		FinishedAt:    &finished,
		Status:        models.ExecutionStatusCompleted,
		EntryInput:    map[string]any{"message": "hello"},
		ExecutionPath: []string{"agent-1", "agent-2"},
		Results: []models.NodeOutcome{
			{
				NodeID:    "agent-1",
				Kind:      models.NodeKindAgent,
				Status:    models.NodeStatusCompleted,
				Response:  "ok",
				StartedAt: started,
				A2A: []models.A2AOutcome{
					{EdgeID: "edge-1", FromNodeID: "agent-1", ToNodeID: "agent-2", Status: models.A2ADelivered, Attempts: 1},
				},
			},
			{NodeID: "agent-2", Kind: models.NodeKindAgent, Status: models.NodeStatusError, Error: "boom", StartedAt: started},
		},
	}
}

// Run exercises p through the full workflow and execution lifecycle. p must
// start empty.
func Run(t *testing.T, p persistence.Persistence) {
	t.Helper()

	ctx := context.Background()

	t.Run("health check", func(t *testing.T) {
		require.NoError(t, p.HealthCheck(ctx))
	})

	t.Run("missing workflow", func(t *testing.T) {
		_, err := p.WorkflowByID(ctx, "missing")
		require.Error(t, err)
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("workflow round trip", func(t *testing.T) {
		def := Workflow("wf-1", Epoch)
		require.NoError(t, p.SaveWorkflow(ctx, def))

		got, err := p.WorkflowByID(ctx, "wf-1")
		require.NoError(t, err)
		assert.Equal(t, def.Name, got.Name)
		assert.True(t, def.CreatedAt.Equal(got.CreatedAt))
		require.Len(t, got.Nodes, 2)
		assert.Equal(t, "agent-1", got.Nodes[0].ID)
		assert.Equal(t, []string{"search"}, got.Nodes[0].Payload.Agent.Capabilities)
		require.Len(t, got.Edges, 1)
		assert.Equal(t, 2, *got.Edges[0].Connector.RetryCount)
		assert.Equal(t, models.EdgeKindA2A, got.Edges[0].Kind)
	})

	t.Run("save replaces", func(t *testing.T) {
		def := Workflow("wf-1", Epoch)
		def.Name = "renamed"
		def.Nodes = def.Nodes[:1]
		def.Edges = nil
		require.NoError(t, p.SaveWorkflow(ctx, def))

		got, err := p.WorkflowByID(ctx, "wf-1")
		require.NoError(t, err)
		assert.Equal(t, "renamed", got.Name)
		assert.Len(t, got.Nodes, 1)
		assert.Empty(t, got.Edges)
	})

	t.Run("list in creation order", func(t *testing.T) {
		require.NoError(t, p.SaveWorkflow(ctx, Workflow("wf-0", Epoch.Add(-time.Hour))))

		all, err := p.Workflows(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "wf-0", all[0].ID)
		assert.Equal(t, "wf-1", all[1].ID)
	})

	t.Run("invalid execution", func(t *testing.T) {
		running := Execution("wf-1", "exec-x", Epoch)
		running.Status = models.ExecutionStatusRunning

		assert.ErrorIs(t, p.SaveExecution(ctx, running), persistence.ErrInvalidRecord)
	})

	t.Run("execution history", func(t *testing.T) {
		require.NoError(t, p.SaveExecution(ctx, Execution("wf-1", "exec-2", Epoch.Add(time.Minute))))
		require.NoError(t, p.SaveExecution(ctx, Execution("wf-1", "exec-1", Epoch)))
		require.NoError(t, p.SaveExecution(ctx, Execution("wf-0", "exec-3", Epoch)))

		list, err := p.ExecutionsByWorkflow(ctx, "wf-1")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "exec-1", list[0].ID)
		assert.Equal(t, "exec-2", list[1].ID)

		rec, err := p.ExecutionByID(ctx, "wf-1", "exec-2")
		require.NoError(t, err)
		assert.Equal(t, models.ExecutionStatusCompleted, rec.Status)
		assert.Equal(t, []string{"agent-1", "agent-2"}, rec.ExecutionPath)
		require.Len(t, rec.Results, 2)
		assert.Equal(t, "boom", rec.Results[1].Error)
		require.Len(t, rec.Results[0].A2A, 1)
		assert.Equal(t, models.A2ADelivered, rec.Results[0].A2A[0].Status)
		require.NotNil(t, rec.FinishedAt)

		_, err = p.ExecutionByID(ctx, "wf-1", "exec-3")
		assert.True(t, persistence.IsExecutionNotFound(err))

		empty, err := p.ExecutionsByWorkflow(ctx, "unknown")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("delete removes workflow and history", func(t *testing.T) {
		require.NoError(t, p.DeleteWorkflow(ctx, "wf-1"))
		require.NoError(t, p.DeleteWorkflow(ctx, "wf-1"))

		_, err := p.WorkflowByID(ctx, "wf-1")
		assert.True(t, persistence.IsWorkflowNotFound(err))

		list, err := p.ExecutionsByWorkflow(ctx, "wf-1")
		require.NoError(t, err)
		assert.Empty(t, list)

		others, err := p.ExecutionsByWorkflow(ctx, "wf-0")
		require.NoError(t, err)
		assert.Len(t, others, 1)
	})
}
