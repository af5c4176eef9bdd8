// Package nodes wires the modeled work of every non-agent node kind.
package nodes

import (
	"log/slog"

	"github.com/dukex/agentgraph/pkg/expr"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/nodes/aggregator"
	"github.com/dukex/agentgraph/pkg/nodes/chat"
	"github.com/dukex/agentgraph/pkg/nodes/decision"
	"github.com/dukex/agentgraph/pkg/nodes/guardrail"
	"github.com/dukex/agentgraph/pkg/nodes/handoff"
	"github.com/dukex/agentgraph/pkg/nodes/human"
	"github.com/dukex/agentgraph/pkg/nodes/memory"
	"github.com/dukex/agentgraph/pkg/nodes/monitor"
	"github.com/dukex/agentgraph/pkg/protocol"
)

type Dependencies struct {
	Logger    *slog.Logger
	Evaluator *expr.Evaluator
	Memory    memory.Store
	Human     human.Responder
}

// Executors returns the executor of every kind the engine does not run
// itself. Agent, tool and connector nodes go through the invoker.
func Executors(deps Dependencies) map[models.NodeKind]protocol.NodeExecutor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return map[models.NodeKind]protocol.NodeExecutor{
		models.NodeKindDecision:      decision.Executor{},
		models.NodeKindHandoff:       handoff.Executor{},
		models.NodeKindHuman:         human.New(deps.Human),
		models.NodeKindMemory:        memory.New(deps.Memory),
		models.NodeKindGuardrail:     guardrail.New(deps.Evaluator, logger),
		models.NodeKindAggregator:    aggregator.Executor{},
		models.NodeKindMonitor:       monitor.New(logger),
		models.NodeKindChatInterface: chat.Executor{},
	}
}
