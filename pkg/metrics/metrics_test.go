package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveRun(t *testing.T) {
	m := New()
	started := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	finished := started.Add(2 * time.Second)

	m.ObserveRun(&models.ExecutionRecord{Status: models.ExecutionStatusCompleted, StartedAt: started, FinishedAt: &finished})
	m.ObserveRun(&models.ExecutionRecord{Status: models.ExecutionStatusError, StartedAt: started, FinishedAt: &finished, Cancelled: true})
	m.ObserveRun(&models.ExecutionRecord{Status: models.ExecutionStatusCompleted, StartedAt: started, FinishedAt: &finished})

	assert.InDelta(t, 2, testutil.ToFloat64(m.runsTotal.WithLabelValues("completed", "false")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.runsTotal.WithLabelValues("error", "true")), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(m.runDuration))
}

func TestMetrics_ObserveNode(t *testing.T) {
	m := New()

	m.ObserveNode(models.NodeOutcome{Kind: models.NodeKindAgent, Status: models.NodeStatusCompleted, ElapsedMs: 120})
	m.ObserveNode(models.NodeOutcome{Kind: models.NodeKindAgent, Status: models.NodeStatusError, ElapsedMs: 30})
	m.ObserveNode(models.NodeOutcome{Kind: models.NodeKindDecision, Status: models.NodeStatusCompleted})

	assert.InDelta(t, 1, testutil.ToFloat64(m.nodesTotal.WithLabelValues("agent", "completed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.nodesTotal.WithLabelValues("agent", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.nodesTotal.WithLabelValues("decision", "completed")), 0)
}

func TestMetrics_A2A(t *testing.T) {
	m := New()

	m.ObserveA2AAttempt(models.A2AFailed)
	m.ObserveA2AAttempt(models.A2ATimeout)
	m.ObserveA2AAttempt(models.A2ADelivered)
	m.ObserveA2AOutcome(models.A2AOutcome{Status: models.A2ADelivered, Attempts: 3})

	assert.InDelta(t, 1, testutil.ToFloat64(m.a2aAttempts.WithLabelValues("timeout")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.a2aOutcomes.WithLabelValues("delivered")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(m.a2aAttemptsUsed))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveA2AOutcome(models.A2AOutcome{Status: models.A2AFailed, Attempts: 4})

	server := httptest.NewServer(m.Handler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `agentgraph_a2a_messages_total{status="failed"} 1`)
}
