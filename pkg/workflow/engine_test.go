package workflow

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dukex/agentgraph/pkg/a2a"
	"github.com/dukex/agentgraph/pkg/eventbus"
	"github.com/dukex/agentgraph/pkg/events"
	"github.com/dukex/agentgraph/pkg/graph"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/protocol"
	"github.com/dukex/agentgraph/pkg/snapshot"
	"github.com/dukex/agentgraph/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var errAgentDown = errors.New("agent unavailable")

func echo() protocol.Invoker {
	return protocol.InvokerFunc(func(_ context.Context, inv protocol.Invocation) (any, error) {
		return map[string]any{"node": inv.Node.ID, "input": inv.Input}, nil
	})
}

// failing echoes every node except the listed ones, which return errAgentDown.
func failing(nodeIDs ...string) protocol.Invoker {
	return protocol.InvokerFunc(func(ctx context.Context, inv protocol.Invocation) (any, error) {
		for _, id := range nodeIDs {
			if inv.Node.ID == id {
				return nil, errAgentDown
			}
		}

		return echo().Invoke(ctx, inv)
	})
}

// messenger gives each connector unit 20ms so single-unit timeouts stay
// well above scheduling noise.
func messenger(transport a2a.Transport) *a2a.Messenger {
	return a2a.NewMessenger(transport, testutil.Logger(), a2a.WithTimeUnit(20*time.Millisecond))
}

func newTestEngine(t *testing.T, def *models.WorkflowDefinition, invoker protocol.Invoker, opts ...Option) (*Engine, *graph.Store) {
	t.Helper()

	store := graph.NewStore(testutil.Logger())
	_, err := store.Import(def)
	require.NoError(t, err)

	opts = append([]Option{WithMessenger(messenger(InvokerTransport(invoker)))}, opts...)

	return NewEngine(store, invoker, testutil.Logger(), opts...), store
}

func nodeStatuses(t *testing.T, store *graph.Store, workflowID string) map[string]models.NodeStatus {
	t.Helper()

	def, err := store.GetWorkflow(workflowID)
	require.NoError(t, err)

	out := make(map[string]models.NodeStatus, len(def.Nodes))
	for _, n := range def.Nodes {
		out[n.ID] = n.Status
	}

	return out
}

func TestEngine_SingleAgent(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf", []*models.WorkflowNode{testutil.Agent("a")})
	engine, store := newTestEngine(t, def, echo())

	rec, err := engine.Execute(context.Background(), "wf", map[string]any{"message": "hello"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, rec.Status)
	assert.Equal(t, []string{"a"}, rec.ExecutionPath)
	require.Len(t, rec.Results, 1)
	assert.Equal(t, models.NodeStatusCompleted, rec.Results[0].Status)
	assert.Equal(t, map[string]any{"node": "a", "input": map[string]any{"message": "hello"}}, rec.Results[0].Response)
	assert.NotNil(t, rec.FinishedAt)
	assert.Equal(t, map[string]models.NodeStatus{"a": models.NodeStatusCompleted}, nodeStatuses(t, store, "wf"))

	_, running := store.ActiveRun("wf")
	assert.False(t, running)
}

func TestEngine_DecisionLeavesUnselectedBranchIdle(t *testing.T) {
	toB := models.Branch{Name: "to-b", Condition: "route == 'b'", TargetNodeID: "b"}
	toC := models.Branch{Name: "to-c", Condition: "route == 'c'", TargetNodeID: "c"}

	def := testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Decision("d", toB, toC), testutil.Agent("b"), testutil.Agent("c")},
		testutil.Edge("ad", "a", "d"), testutil.Edge("db", "d", "b"), testutil.Edge("dc", "d", "c"),
	)
	engine, store := newTestEngine(t, def, echo())

	rec, err := engine.Execute(context.Background(), "wf", map[string]any{"route": "b"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, rec.Status)
	assert.Equal(t, []string{"a", "d", "b"}, rec.ExecutionPath)

	decision, ok := rec.Result("d")
	require.True(t, ok)
	assert.Equal(t, "to-b", decision.Response.(map[string]any)["branch"])

	assert.Equal(t, map[string]models.NodeStatus{
		"a": models.NodeStatusCompleted,
		"d": models.NodeStatusCompleted,
		"b": models.NodeStatusCompleted,
		"c": models.NodeStatusIdle,
	}, nodeStatuses(t, store, "wf"))

	current, err := store.GetWorkflow("wf")
	require.NoError(t, err)
	assert.Equal(t, models.EdgeStatusSuccess, current.Edge("db").Status)
	assert.Equal(t, models.EdgeStatusIdle, current.Edge("dc").Status)
}

func TestEngine_UnreachableA2ATarget(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b")},
		testutil.A2AEdge("ab", "a", "b", 3),
	)

	var attempts int32

	transport := a2a.TransportFunc(func(context.Context, a2a.Message) (any, error) {
		atomic.AddInt32(&attempts, 1)

		return nil, errAgentDown
	})
	engine, store := newTestEngine(t, def, echo(), WithMessenger(messenger(transport)))

	rec, err := engine.Execute(context.Background(), "wf", nil)
	require.NoError(t, err)

	assert.True(t, rec.Status.IsTerminal())
	assert.Equal(t, models.ExecutionStatusCompleted, rec.Status)
	assert.Equal(t, int32(4), atomic.LoadInt32(&attempts))

	a, ok := rec.Result("a")
	require.True(t, ok)
	assert.Equal(t, models.NodeStatusCompleted, a.Status)
	require.Len(t, a.A2A, 1)
	assert.Equal(t, models.A2AFailed, a.A2A[0].Status)
	assert.Equal(t, 4, a.A2A[0].Attempts)
	assert.Equal(t, "b", a.A2A[0].ToNodeID)

	current, err := store.GetWorkflow("wf")
	require.NoError(t, err)
	assert.Equal(t, models.EdgeStatusError, current.Edge("ab").Status)
}

func TestEngine_A2ADelivery(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b")},
		testutil.A2AEdge("ab", "a", "b", 0),
	)
	def.Edges[0].Connector.MessageTemplate = "{{.from.name}} says {{.input.message}}"

	var got a2a.Message

	transport := a2a.TransportFunc(func(_ context.Context, msg a2a.Message) (any, error) {
		got = msg

		return "ack", nil
	})
	engine, _ := newTestEngine(t, def, echo(), WithMessenger(messenger(transport)))

	rec, err := engine.Execute(context.Background(), "wf", map[string]any{"message": "hi"})
	require.NoError(t, err)

	a, _ := rec.Result("a")
	require.Len(t, a.A2A, 1)
	assert.Equal(t, models.A2ADelivered, a.A2A[0].Status)
	assert.Equal(t, "ack", a.A2A[0].Response)
	assert.Equal(t, "a says hi", got.Content)
	assert.Equal(t, rec.ID, got.ExecutionID)
	assert.Equal(t, "b", got.To.ID)
}

func TestEngine_AggregatorWithFailedInput(t *testing.T) {
	tests := []struct {
		name       string
		requireAll bool
		status     models.ExecutionStatus
		aggStatus  models.NodeStatus
		failedNode string
	}{
		{name: "partial input completes", requireAll: false, status: models.ExecutionStatusCompleted, aggStatus: models.NodeStatusCompleted},
		{name: "require all success halts", requireAll: true, status: models.ExecutionStatusError, aggStatus: models.NodeStatusError, failedNode: "agg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := testutil.CreateTestWorkflow("wf",
				[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b"), testutil.Aggregator("agg", tt.requireAll)},
				testutil.Edge("a-agg", "a", "agg"), testutil.Edge("b-agg", "b", "agg"),
			)
			engine, _ := newTestEngine(t, def, failing("b"))

			rec, err := engine.Execute(context.Background(), "wf", map[string]any{"message": "hi"})
			require.NoError(t, err)

			assert.Equal(t, tt.status, rec.Status)
			assert.Equal(t, tt.failedNode, rec.FailedNodeID)
			assert.Equal(t, []string{"a", "b", "agg"}, rec.ExecutionPath)
			require.Len(t, rec.Results, 3)

			b, _ := rec.Result("b")
			assert.Equal(t, models.NodeStatusError, b.Status)
			assert.Equal(t, errAgentDown.Error(), b.Error)

			agg, ok := rec.Result("agg")
			require.True(t, ok)
			assert.Equal(t, tt.aggStatus, agg.Status)
			assert.True(t, agg.PartialInput)
		})
	}
}

func TestEngine_GuardrailBlockHaltsRun(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Guardrail("g", models.GuardrailBlock, "forbidden"), testutil.Agent("b")},
		testutil.Edge("ag", "a", "g"), testutil.Edge("gb", "g", "b"),
	)
	engine, store := newTestEngine(t, def, echo())

	rec, err := engine.Execute(context.Background(), "wf", map[string]any{"message": "something forbidden"})
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusError, rec.Status)
	assert.Equal(t, "g", rec.FailedNodeID)
	assert.Contains(t, rec.Reason, "forbidden")
	assert.Equal(t, []string{"a", "g"}, rec.ExecutionPath)
	require.Len(t, rec.Results, len(rec.ExecutionPath))
	assert.Equal(t, models.NodeStatusIdle, nodeStatuses(t, store, "wf")["b"])
}

func TestEngine_NodeErrorDoesNotStopRun(t *testing.T) {
	tests := []struct {
		name    string
		failing string
		partial bool
	}{
		{name: "source fails", failing: "a", partial: true},
		{name: "target fails", failing: "b", partial: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := testutil.CreateTestWorkflow("wf",
				[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b")},
				testutil.Edge("ab", "a", "b"),
			)
			engine, store := newTestEngine(t, def, failing(tt.failing))

			rec, err := engine.Execute(context.Background(), "wf", nil)
			require.NoError(t, err)

			assert.Equal(t, models.ExecutionStatusCompleted, rec.Status)
			assert.Equal(t, []string{"a", "b"}, rec.ExecutionPath)
			require.Len(t, rec.Results, 2)

			b, _ := rec.Result("b")
			assert.Equal(t, tt.partial, b.PartialInput)

			current, err := store.GetWorkflow("wf")
			require.NoError(t, err)
			assert.Equal(t, models.EdgeStatusError, current.Edge("ab").Status)
		})
	}
}

func TestEngine_EdgeSucceedsWhenBothEndpointsComplete(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b")},
		testutil.Edge("ab", "a", "b"),
	)
	engine, store := newTestEngine(t, def, echo())

	_, err := engine.Execute(context.Background(), "wf", nil)
	require.NoError(t, err)

	current, err := store.GetWorkflow("wf")
	require.NoError(t, err)
	assert.Equal(t, models.EdgeStatusSuccess, current.Edge("ab").Status)
}

func TestEngine_ImportedConnectorUsesDefaultRetries(t *testing.T) {
	conn := testutil.Connector("conn", "a", "b", 0)
	conn.Payload.A2AConnector.RetryCount = nil
	conn.Payload.A2AConnector.TimeoutUnits = nil

	data, err := snapshot.Marshal(testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), conn, testutil.Agent("b")},
		testutil.Edge("a-conn", "a", "conn"), testutil.Edge("conn-b", "conn", "b"),
	))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "retry_count")

	def, err := snapshot.Unmarshal(data)
	require.NoError(t, err)

	var calls atomic.Int32

	engine, _ := newTestEngine(t, def, echo(), WithMessenger(messenger(a2a.TransportFunc(func(context.Context, a2a.Message) (any, error) {
		calls.Add(1)

		return nil, errAgentDown
	}))))

	rec, err := engine.Execute(context.Background(), "wf", nil)
	require.NoError(t, err)

	result, ok := rec.Result("conn")
	require.True(t, ok)
	require.Len(t, result.A2A, 1)
	assert.Equal(t, models.A2AFailed, result.A2A[0].Status)
	assert.Equal(t, a2a.DefaultRetryCount+1, result.A2A[0].Attempts)
	assert.Equal(t, int32(a2a.DefaultRetryCount+1), calls.Load())
}

func TestEngine_PanickingInvoker(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf", []*models.WorkflowNode{testutil.Agent("a")})
	engine, _ := newTestEngine(t, def, protocol.InvokerFunc(func(context.Context, protocol.Invocation) (any, error) {
		panic("model exploded")
	}))

	rec, err := engine.Execute(context.Background(), "wf", nil)
	require.NoError(t, err)

	require.Len(t, rec.Results, 1)
	assert.Equal(t, models.NodeStatusError, rec.Results[0].Status)
	assert.Contains(t, rec.Results[0].Error, "model exploded")
	assert.Equal(t, models.ExecutionStatusCompleted, rec.Status)
}

func TestEngine_ConnectorNode(t *testing.T) {
	tests := []struct {
		name      string
		transport a2a.Transport
		status    models.NodeStatus
		a2a       models.A2AStatus
	}{
		{
			name: "delivered",
			transport: a2a.TransportFunc(func(context.Context, a2a.Message) (any, error) {
				return "received", nil
			}),
			status: models.NodeStatusCompleted,
			a2a:    models.A2ADelivered,
		},
		{
			name: "undelivered",
			transport: a2a.TransportFunc(func(context.Context, a2a.Message) (any, error) {
				return nil, errAgentDown
			}),
			status: models.NodeStatusError,
			a2a:    models.A2AFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := testutil.CreateTestWorkflow("wf",
				[]*models.WorkflowNode{testutil.Agent("a"), testutil.Connector("conn", "a", "b", 1), testutil.Agent("b")},
				testutil.Edge("a-conn", "a", "conn"), testutil.Edge("conn-b", "conn", "b"),
			)
			engine, _ := newTestEngine(t, def, echo(), WithMessenger(messenger(tt.transport)))

			rec, err := engine.Execute(context.Background(), "wf", nil)
			require.NoError(t, err)

			conn, ok := rec.Result("conn")
			require.True(t, ok)
			assert.Equal(t, tt.status, conn.Status)
			require.Len(t, conn.A2A, 1)
			assert.Equal(t, tt.a2a, conn.A2A[0].Status)
			assert.Equal(t, "a", conn.A2A[0].FromNodeID)
			assert.Equal(t, "b", conn.A2A[0].ToNodeID)
			assert.Equal(t, models.ExecutionStatusCompleted, rec.Status)
		})
	}
}

func TestEngine_AtMostOneRunPerWorkflow(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf", []*models.WorkflowNode{testutil.Agent("a")})

	started := make(chan struct{})
	release := make(chan struct{})

	engine, store := newTestEngine(t, def, protocol.InvokerFunc(func(context.Context, protocol.Invocation) (any, error) {
		close(started)
		<-release

		return "done", nil
	}))

	run, err := engine.Start(context.Background(), "wf", nil)
	require.NoError(t, err)
	<-started

	_, err = engine.Start(context.Background(), "wf", nil)
	require.Error(t, err)
	assert.True(t, IsConcurrentRun(err))

	var concurrent *ConcurrentRunError
	require.ErrorAs(t, err, &concurrent)
	assert.Equal(t, run.ID, concurrent.ActiveRunID)

	err = store.AddNode("wf", testutil.Agent("late"))
	assert.True(t, graph.IsLocked(err))

	active, ok := engine.ActiveRun("wf")
	require.True(t, ok)
	assert.Equal(t, run.ID, active.ID)

	close(release)

	rec, err := run.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, rec.Status)

	assert.Len(t, engine.History().List("wf"), 1)

	_, ok = engine.ActiveRun("wf")
	assert.False(t, ok)
}

func TestEngine_CyclicGraphLeavesWorkflowUntouched(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b")},
		testutil.Edge("ab", "a", "b"), testutil.Edge("ba", "b", "a"),
	)

	var calls int32

	engine, store := newTestEngine(t, def, protocol.InvokerFunc(func(context.Context, protocol.Invocation) (any, error) {
		atomic.AddInt32(&calls, 1)

		return nil, nil
	}))

	before, err := store.GetWorkflow("wf")
	require.NoError(t, err)

	rec, err := engine.Execute(context.Background(), "wf", nil)
	require.Error(t, err)
	assert.Nil(t, rec)
	assert.True(t, IsCyclicGraph(err))

	after, err := store.GetWorkflow("wf")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, running := store.ActiveRun("wf")
	assert.False(t, running)
	assert.Empty(t, engine.History().List("wf"))
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestEngine_UnknownWorkflow(t *testing.T) {
	engine := NewEngine(graph.NewStore(testutil.Logger()), echo(), testutil.Logger())

	_, err := engine.Execute(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, graph.IsWorkflowNotFound(err))

	assert.ErrorIs(t, engine.Cancel("missing"), ErrRunNotFound)
}

func TestEngine_Cancel(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b")},
		testutil.Edge("ab", "a", "b"),
	)

	started := make(chan struct{})
	release := make(chan struct{})

	engine, store := newTestEngine(t, def, protocol.InvokerFunc(func(_ context.Context, inv protocol.Invocation) (any, error) {
		if inv.Node.ID == "a" {
			close(started)
			<-release
		}

		return inv.Node.ID, nil
	}))

	run, err := engine.Start(context.Background(), "wf", nil)
	require.NoError(t, err)

	<-started
	require.NoError(t, engine.Cancel("wf"))
	close(release)

	rec, err := run.Wait(context.Background())
	require.NoError(t, err)

	assert.True(t, rec.Cancelled)
	assert.Equal(t, models.ExecutionStatusError, rec.Status)
	require.Len(t, rec.Results, 1)
	assert.Equal(t, []string{"a"}, rec.ExecutionPath)
	assert.Equal(t, models.NodeStatusCompleted, rec.Results[0].Status, "running node finishes its work")
	assert.Equal(t, models.NodeStatusIdle, nodeStatuses(t, store, "wf")["b"])

	_, running := store.ActiveRun("wf")
	assert.False(t, running)
}

func TestEngine_ExecuteReturnsRecordWhenContextEnds(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b")},
		testutil.Edge("ab", "a", "b"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, _ := newTestEngine(t, def, protocol.InvokerFunc(func(_ context.Context, inv protocol.Invocation) (any, error) {
		cancel()
		// Give Execute time to observe ctx and cancel the run before a finishes.
		time.Sleep(50 * time.Millisecond)

		return inv.Node.ID, nil
	}))

	rec, err := engine.Execute(ctx, "wf", nil)
	require.NoError(t, err)
	assert.True(t, rec.Cancelled)
	assert.Len(t, rec.Results, 1)
}

func TestEngine_EventsInOrder(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b")},
		testutil.Edge("ab", "a", "b"),
	)

	broadcaster := eventbus.NewBroadcaster(testutil.Logger())
	ch, unsubscribe := broadcaster.Channel(64)

	engine, _ := newTestEngine(t, def, echo(), WithPublisher(broadcaster))

	rec, err := engine.Execute(context.Background(), "wf", nil)
	require.NoError(t, err)
	unsubscribe()

	var got []string

	for event := range ch {
		switch ev := event.(type) {
		case events.RunStarted:
			assert.Equal(t, rec.ID, ev.ExecutionID)
			got = append(got, "started")
		case events.NodeStatusChanged:
			got = append(got, ev.NodeID+":"+string(ev.Status))
		case events.EdgeStatusChanged:
			got = append(got, ev.EdgeID+":"+string(ev.Status))
		case events.RunFinished:
			assert.Equal(t, models.ExecutionStatusCompleted, ev.Status)
			assert.Equal(t, 2, ev.NodesExecuted)
			got = append(got, "finished")
		}
	}

	assert.Equal(t, []string{
		"started",
		"a:running", "a:completed",
		"b:running", "ab:active", "b:completed", "ab:success",
		"finished",
	}, got)
}

type recordingRecorder struct {
	mu      sync.Mutex
	records []*models.ExecutionRecord
	err     error
}

func (r *recordingRecorder) SaveExecution(_ context.Context, rec *models.ExecutionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, rec)

	return r.err
}

type countingObserver struct {
	mu    sync.Mutex
	nodes []string
	runs  int
}

func (o *countingObserver) ObserveNode(outcome models.NodeOutcome) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.nodes = append(o.nodes, outcome.NodeID)
}

func (o *countingObserver) ObserveRun(*models.ExecutionRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.runs++
}

func TestEngine_RecorderObserverAndHistory(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf", []*models.WorkflowNode{testutil.Agent("a")})

	recorder := &recordingRecorder{err: errors.New("disk full")}
	observer := &countingObserver{}

	ids := []string{"exec-1", "exec-2", "exec-3"}

	var next int32

	engine, _ := newTestEngine(t, def, echo(),
		WithRecorder(recorder),
		WithObserver(observer),
		WithHistory(NewHistory(2)),
		WithIDGenerator(func() string { return ids[atomic.AddInt32(&next, 1)-1] }),
	)

	for range ids {
		rec, err := engine.Execute(context.Background(), "wf", nil)
		require.NoError(t, err, "a failing recorder never fails the run")
		assert.Equal(t, models.ExecutionStatusCompleted, rec.Status)
	}

	assert.Len(t, recorder.records, 3)
	assert.Equal(t, 3, observer.runs)
	assert.Equal(t, []string{"a", "a", "a"}, observer.nodes)

	history := engine.History().List("wf")
	require.Len(t, history, 2)
	assert.Equal(t, "exec-2", history[0].ID)
	assert.Equal(t, "exec-3", history[1].ID)

	_, ok := engine.History().Get("wf", "exec-1")
	assert.False(t, ok)
}

func TestEngine_Plan(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b")},
		testutil.Edge("ab", "a", "b"),
	)
	engine, store := newTestEngine(t, def, echo())

	plan, err := engine.Plan("wf", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, plan.Path)

	_, running := store.ActiveRun("wf")
	assert.False(t, running)
	assert.Empty(t, engine.History().List("wf"))
}

func TestEngine_Spans(t *testing.T) {
	def := testutil.CreateTestWorkflow("wf",
		[]*models.WorkflowNode{testutil.Agent("a"), testutil.Agent("b")},
		testutil.Edge("ab", "a", "b"),
	)

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	engine, _ := newTestEngine(t, def, echo(), WithTracer(provider.Tracer("test")))

	_, err := engine.Execute(context.Background(), "wf", nil)
	require.NoError(t, err)

	names := make(map[string]int)
	for _, span := range recorder.Ended() {
		names[span.Name()]++
	}

	assert.Equal(t, map[string]int{"workflow.run": 1, "workflow.node": 2}, names)
}
