package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from     NodeStatus
		to       NodeStatus
		expected bool
	}{
		{NodeStatusIdle, NodeStatusRunning, true},
		{NodeStatusIdle, NodeStatusCompleted, false},
		{NodeStatusRunning, NodeStatusCompleted, true},
		{NodeStatusRunning, NodeStatusError, true},
		{NodeStatusRunning, NodeStatusIdle, false},
		{NodeStatusCompleted, NodeStatusRunning, false},
		{NodeStatusError, NodeStatusIdle, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.from.CanTransition(tt.to))
		})
	}
}

func TestEdgeStatus_CanTransition(t *testing.T) {
	assert.True(t, EdgeStatusIdle.CanTransition(EdgeStatusActive))
	assert.False(t, EdgeStatusIdle.CanTransition(EdgeStatusSuccess))
	assert.True(t, EdgeStatusActive.CanTransition(EdgeStatusSuccess))
	assert.True(t, EdgeStatusActive.CanTransition(EdgeStatusError))
	assert.False(t, EdgeStatusSuccess.CanTransition(EdgeStatusActive))
}

func TestNodeKind(t *testing.T) {
	for _, k := range NodeKinds {
		assert.True(t, k.Valid(), k)
	}

	assert.False(t, NodeKind("robot").Valid())
	assert.True(t, NodeKindMemory.IsUtility())
	assert.True(t, NodeKindGuardrail.IsUtility())
	assert.True(t, NodeKindMonitor.IsUtility())
	assert.False(t, NodeKindAgent.IsUtility())
	assert.False(t, NodeKindAggregator.IsUtility())
}

func TestNodePayload_Validate(t *testing.T) {
	tests := []struct {
		name    string
		kind    NodeKind
		payload NodePayload
		wantErr bool
	}{
		{
			name:    "matching variant",
			kind:    NodeKindAgent,
			payload: NodePayload{Agent: &AgentPayload{AgentID: "a", Name: "A"}},
		},
		{
			name:    "no variant",
			kind:    NodeKindTool,
			payload: NodePayload{},
			wantErr: true,
		},
		{
			name:    "wrong variant",
			kind:    NodeKindTool,
			payload: NodePayload{Agent: &AgentPayload{AgentID: "a", Name: "A"}},
			wantErr: true,
		},
		{
			name: "two variants",
			kind: NodeKindHuman,
			payload: NodePayload{
				Human:   &HumanPayload{},
				Monitor: &MonitorPayload{},
			},
			wantErr: true,
		},
		{
			name: "two default branches",
			kind: NodeKindDecision,
			payload: NodePayload{Decision: &DecisionPayload{Branches: []Branch{
				{Name: "a", Default: true},
				{Name: "b", Default: true},
			}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate(tt.kind)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrPayloadMismatch)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestWorkflowDefinition_CloneIsDeep(t *testing.T) {
	retries := 2
	wf := &WorkflowDefinition{
		ID:   "wf-1",
		Name: "support",
		Nodes: []*WorkflowNode{
			{
				ID:     "agent-1",
				Kind:   NodeKindAgent,
				Status: NodeStatusIdle,
				Payload: NodePayload{Agent: &AgentPayload{
					AgentID:      "triage",
					Name:         "Triage",
					Capabilities: []string{"search"},
				}},
			},
		},
		Edges: []*WorkflowEdge{
			{ID: "e1", SourceNodeID: "agent-1", TargetNodeID: "agent-1", Kind: EdgeKindA2A, Connector: &ConnectorConfig{RetryCount: &retries}},
		},
	}

	clone := wf.Clone()
	clone.Nodes[0].Status = NodeStatusRunning
	clone.Nodes[0].Payload.Agent.Capabilities[0] = "changed"
	*clone.Edges[0].Connector.RetryCount = 9

	assert.Equal(t, NodeStatusIdle, wf.Nodes[0].Status)
	assert.Equal(t, "search", wf.Nodes[0].Payload.Agent.Capabilities[0])
	assert.Equal(t, 2, *wf.Edges[0].Connector.RetryCount)
}

func TestWorkflowDefinition_EdgeQueries(t *testing.T) {
	wf := &WorkflowDefinition{
		Edges: []*WorkflowEdge{
			{ID: "e1", SourceNodeID: "a", TargetNodeID: "b", Kind: EdgeKindData},
			{ID: "e2", SourceNodeID: "a", TargetNodeID: "b", Kind: EdgeKindA2A},
			{ID: "e3", SourceNodeID: "c", TargetNodeID: "b", Kind: EdgeKindData},
		},
	}

	in := wf.InboundEdges("b", EdgeKindData)
	require.Len(t, in, 2)
	assert.Equal(t, "e1", in[0].ID)
	assert.Equal(t, "e3", in[1].ID)

	out := wf.OutboundEdges("a", EdgeKindA2A)
	require.Len(t, out, 1)
	assert.Equal(t, "e2", out[0].ID)

	assert.Nil(t, wf.Edge("missing"))
}
