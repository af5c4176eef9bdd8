// Package metrics exposes Prometheus collectors for workflow runs, node
// outcomes and agent-to-agent deliveries.
package metrics

import (
	"net/http"

	"github.com/dukex/agentgraph/pkg/a2a"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "agentgraph"

// Metrics records engine and messenger activity. It satisfies both
// workflow.RunObserver and a2a.Observer.
type Metrics struct {
	gatherer prometheus.Gatherer

	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	nodesTotal      *prometheus.CounterVec
	nodeDuration    *prometheus.HistogramVec
	a2aAttempts     *prometheus.CounterVec
	a2aOutcomes     *prometheus.CounterVec
	a2aAttemptsUsed prometheus.Histogram
}

// New registers the collectors with a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	return NewWithRegistry(registry, registry)
}

// NewWithRegistry registers the collectors with reg and serves them from gatherer.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		gatherer: gatherer,
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of finished workflow runs",
			},
			[]string{"status", "cancelled"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Histogram of workflow run duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),
		nodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "nodes_total",
				Help:      "Total number of executed nodes",
			},
			[]string{"kind", "status"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "node_duration_seconds",
				Help:      "Histogram of node execution duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		a2aAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "a2a_attempts_total",
				Help:      "Total number of agent-to-agent delivery attempts",
			},
			[]string{"status"},
		),
		a2aOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "a2a_messages_total",
				Help:      "Total number of agent-to-agent messages by final status",
			},
			[]string{"status"},
		),
		a2aAttemptsUsed: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "a2a_attempts_per_message",
				Help:      "Histogram of attempts made per agent-to-agent message",
				Buckets:   []float64{1, 2, 3, 4, 5, 8},
			},
		),
	}

	reg.MustRegister(
		m.runsTotal,
		m.runDuration,
		m.nodesTotal,
		m.nodeDuration,
		m.a2aAttempts,
		m.a2aOutcomes,
		m.a2aAttemptsUsed,
	)

	return m
}

func (m *Metrics) ObserveRun(rec *models.ExecutionRecord) {
	cancelled := "false"
	if rec.Cancelled {
		cancelled = "true"
	}

	m.runsTotal.WithLabelValues(string(rec.Status), cancelled).Inc()

	if rec.FinishedAt != nil {
		m.runDuration.WithLabelValues(string(rec.Status)).Observe(rec.FinishedAt.Sub(rec.StartedAt).Seconds())
	}
}

func (m *Metrics) ObserveNode(outcome models.NodeOutcome) {
	m.nodesTotal.WithLabelValues(string(outcome.Kind), string(outcome.Status)).Inc()
	m.nodeDuration.WithLabelValues(string(outcome.Kind)).Observe(float64(outcome.ElapsedMs) / 1000)
}

func (m *Metrics) ObserveA2AAttempt(status models.A2AStatus) {
	m.a2aAttempts.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ObserveA2AOutcome(outcome models.A2AOutcome) {
	m.a2aOutcomes.WithLabelValues(string(outcome.Status)).Inc()
	m.a2aAttemptsUsed.Observe(float64(outcome.Attempts))
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

var (
	_ workflow.RunObserver = (*Metrics)(nil)
	_ a2a.Observer         = (*Metrics)(nil)
)
