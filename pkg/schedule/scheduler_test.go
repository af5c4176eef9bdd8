package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dukex/agentgraph/pkg/graph"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/protocol"
	"github.com/dukex/agentgraph/pkg/testutil"
	"github.com/dukex/agentgraph/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	workflowID string
	entry      map[string]any
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (r *fakeRunner) Execute(_ context.Context, workflowID string, entry map[string]any) (*models.ExecutionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, call{workflowID: workflowID, entry: entry})

	if r.err != nil {
		return nil, r.err
	}

	return &models.ExecutionRecord{ID: "exec-1", WorkflowID: workflowID, Status: models.ExecutionStatusCompleted}, nil
}

func TestJob_Validate(t *testing.T) {
	tests := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{name: "valid", job: Job{ID: "nightly", WorkflowID: "wf-1", Cron: "0 2 * * *"}},
		{name: "descriptor", job: Job{ID: "hourly", WorkflowID: "wf-1", Cron: "@hourly"}},
		{name: "missing id", job: Job{WorkflowID: "wf-1", Cron: "@hourly"}, wantErr: true},
		{name: "missing workflow", job: Job{ID: "j", Cron: "@hourly"}, wantErr: true},
		{name: "bad cron", job: Job{ID: "j", WorkflowID: "wf-1", Cron: "every day"}, wantErr: true},
		{name: "seconds field not accepted", job: Job{ID: "j", WorkflowID: "wf-1", Cron: "0 0 2 * * *"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.job.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidJob)

				return
			}

			assert.NoError(t, err)
		})
	}
}

func TestScheduler_AddRemove(t *testing.T) {
	s := New(&fakeRunner{}, testutil.Logger())

	require.NoError(t, s.Add(Job{ID: "b", WorkflowID: "wf-1", Cron: "@daily"}))
	require.NoError(t, s.Add(Job{ID: "a", WorkflowID: "wf-2", Cron: "*/5 * * * *"}))

	err := s.Add(Job{ID: "a", WorkflowID: "wf-3", Cron: "@daily"})
	assert.ErrorIs(t, err, ErrDuplicateJob)

	err = s.Add(Job{ID: "c", WorkflowID: "wf-3", Cron: "nope"})
	assert.ErrorIs(t, err, ErrInvalidJob)

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "a", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)

	require.NoError(t, s.Remove("a"))
	assert.ErrorIs(t, s.Remove("a"), ErrJobNotFound)
	assert.Len(t, s.Jobs(), 1)
}

func TestScheduler_TriggerPassesFixedInput(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, testutil.Logger())

	input := map[string]any{"topic": "weekly report"}
	require.NoError(t, s.Add(Job{ID: "report", WorkflowID: "wf-1", Cron: "@weekly", Input: input}))

	input["topic"] = "mutated"

	require.NoError(t, s.Trigger(t.Context(), "report"))
	require.NoError(t, s.Trigger(t.Context(), "report"))

	require.Len(t, runner.calls, 2)

	for _, c := range runner.calls {
		assert.Equal(t, "wf-1", c.workflowID)
		assert.Equal(t, map[string]any{"topic": "weekly report"}, c.entry)
	}

	assert.ErrorIs(t, s.Trigger(t.Context(), "missing"), ErrJobNotFound)
}

func TestScheduler_ConcurrentRunIsSkipped(t *testing.T) {
	runner := &fakeRunner{err: &workflow.ConcurrentRunError{WorkflowID: "wf-1", ActiveRunID: "exec-0"}}
	s := New(runner, testutil.Logger())

	require.NoError(t, s.Add(Job{ID: "j", WorkflowID: "wf-1", Cron: "@hourly"}))
	assert.NoError(t, s.Trigger(t.Context(), "j"))

	runner.err = errors.New("planner exploded")
	assert.EqualError(t, s.Trigger(t.Context(), "j"), "planner exploded")
}

func TestScheduler_RunsEngine(t *testing.T) {
	store := graph.NewStore(testutil.Logger())

	_, err := store.Import(testutil.CreateTestWorkflow("wf-1",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b")},
		testutil.Edge("ab", "a", "b"),
	))
	require.NoError(t, err)

	history := workflow.NewHistory(0)
	invoker := protocol.InvokerFunc(func(_ context.Context, inv protocol.Invocation) (any, error) {
		return inv.Input, nil
	})

	engine := workflow.NewEngine(store, invoker, testutil.Logger(), workflow.WithHistory(history))

	s := New(engine, testutil.Logger())
	require.NoError(t, s.Add(Job{ID: "j", WorkflowID: "wf-1", Cron: "@hourly", Input: map[string]any{"q": "x"}}))

	s.Start(t.Context())
	defer s.Stop()

	require.NoError(t, s.Trigger(t.Context(), "j"))

	records := history.List("wf-1")
	require.Len(t, records, 1)
	assert.Equal(t, models.ExecutionStatusCompleted, records[0].Status)
	assert.Equal(t, map[string]any{"q": "x"}, records[0].EntryInput)
}
