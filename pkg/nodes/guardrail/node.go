// Package guardrail checks the data flowing through a node against JMESPath
// rules and a list of blocked terms.
package guardrail

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/agentgraph/pkg/expr"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/dukex/agentgraph/pkg/protocol"
)

var ErrBlocked = errors.New("guardrail blocked the input")

type Executor struct {
	Evaluator *expr.Evaluator
	Logger    *slog.Logger
}

func New(evaluator *expr.Evaluator, logger *slog.Logger) *Executor {
	if evaluator == nil {
		evaluator = expr.NewEvaluator()
	}

	return &Executor{Evaluator: evaluator, Logger: logger.With("module", "guardrail")}
}

func (e *Executor) Execute(_ context.Context, in protocol.NodeInput) protocol.NodeOutput {
	cfg := in.Node.Payload.Guardrail
	payload := in.Payload()

	violations := make([]string, 0)

	for _, check := range cfg.Checks {
		ok, err := e.Evaluator.Match(check, payload)

		switch {
		case err != nil:
			violations = append(violations, fmt.Sprintf("check %q: %v", check, err))
		case !ok:
			violations = append(violations, fmt.Sprintf("check %q failed", check))
		}
	}

	if len(cfg.BlockedTerms) > 0 {
		raw, err := json.Marshal(payload)
		if err != nil {
			return protocol.NodeOutput{Err: fmt.Errorf("failed to encode guardrail input: %w", err)}
		}

		text := strings.ToLower(string(raw))

		for _, term := range cfg.BlockedTerms {
			if term != "" && strings.Contains(text, strings.ToLower(term)) {
				violations = append(violations, fmt.Sprintf("blocked term %q", term))
			}
		}
	}

	action := cfg.Action
	if action == "" {
		action = models.GuardrailBlock
	}

	response := map[string]any{
		"passed":     len(violations) == 0,
		"violations": violations,
		"action":     string(action),
	}

	if len(violations) == 0 {
		return protocol.NodeOutput{Response: response}
	}

	logger := e.Logger.With("node_id", in.Node.ID, "execution_id", in.ExecutionID)

	if action == models.GuardrailWarn {
		logger.Warn("Guardrail violations", "violations", violations)

		return protocol.NodeOutput{Response: response}
	}

	logger.Info("Guardrail blocked input", "violations", violations)

	reason := fmt.Sprintf("guardrail %s blocked input: %s", in.Node.ID, strings.Join(violations, "; "))

	return protocol.NodeOutput{
		Response: response,
		Err:      fmt.Errorf("%w: %s", ErrBlocked, strings.Join(violations, "; ")),
		Halt:     reason,
	}
}
