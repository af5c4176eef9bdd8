// Package monitor observes the run so far and reports on it.
package monitor

import (
	"context"
	"log/slog"

	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/protocol"
)

// Metric names a monitor node may request.
const (
	MetricLatency   = "latency"
	MetricErrorRate = "error_rate"
	MetricA2A       = "a2a_deliveries"
)

type Executor struct {
	Logger *slog.Logger
}

func New(logger *slog.Logger) *Executor {
	return &Executor{Logger: logger.With("module", "monitor")}
}

func (e *Executor) Execute(_ context.Context, in protocol.NodeInput) protocol.NodeOutput {
	cfg := in.Node.Payload.Monitor

	var (
		completed int
		errored   []string
		elapsed   int64
		delivered int
		undeliv   int
	)

	for _, r := range in.Results {
		switch r.Status {
		case models.NodeStatusCompleted:
			completed++
		case models.NodeStatusError:
			errored = append(errored, r.NodeID)
		}

		elapsed += r.ElapsedMs

		for _, a := range r.A2A {
			if a.Status == models.A2ADelivered {
				delivered++
			} else {
				undeliv++
			}
		}
	}

	response := map[string]any{
		"observed":     len(in.Results),
		"completed":    completed,
		"errors":       len(errored),
		"failed_nodes": append([]string{}, errored...),
	}

	metrics := map[string]any{}

	for _, name := range cfg.Metrics {
		switch name {
		case MetricLatency:
			metrics[name] = elapsed
		case MetricErrorRate:
			rate := 0.0
			if len(in.Results) > 0 {
				rate = float64(len(errored)) / float64(len(in.Results))
			}

			metrics[name] = rate
		case MetricA2A:
			metrics[name] = map[string]int{"delivered": delivered, "undelivered": undeliv}
		default:
			metrics[name] = nil
		}
	}

	if len(metrics) > 0 {
		response["metrics"] = metrics
	}

	logger := e.Logger.With("workflow_id", in.WorkflowID, "execution_id", in.ExecutionID, "node_id", in.Node.ID)

	if cfg.AlertOnError && len(errored) > 0 {
		logger.Error("Monitor alert: nodes failed", "failed_nodes", errored)
		response["alert"] = true
	} else {
		logger.Info("Monitor checkpoint", "observed", len(in.Results), "errors", len(errored))
	}

	return protocol.NodeOutput{Response: response}
}
