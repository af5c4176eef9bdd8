// Package a2a models point-to-point message delivery between agent nodes with
// per-attempt timeouts and a bounded number of retries.
package a2a

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultTimeoutUnits = 30
	DefaultRetryCount   = 3
	DefaultTimeUnit     = time.Second
)

var (
	ErrNoTransport    = errors.New("no transport configured")
	ErrAttemptTimeout = errors.New("delivery attempt timed out")
)

// Message is one payload sent across a connector.
type Message struct {
	WorkflowID  string
	ExecutionID string
	EdgeID      string
	From        *models.WorkflowNode
	To          *models.WorkflowNode
	Content     string
	Payload     any
}

// Transport performs a single delivery attempt. Implementations must return
// when ctx is done.
type Transport interface {
	Deliver(ctx context.Context, msg Message) (any, error)
}

type TransportFunc func(ctx context.Context, msg Message) (any, error)

func (f TransportFunc) Deliver(ctx context.Context, msg Message) (any, error) {
	return f(ctx, msg)
}

// Observer receives attempt and outcome notifications, typically metrics.
type Observer interface {
	ObserveA2AAttempt(status models.A2AStatus)
	ObserveA2AOutcome(outcome models.A2AOutcome)
}

// Messenger sends messages across connector edges. It keeps no state between
// sends, so concurrent calls are independent.
type Messenger struct {
	transport    Transport
	logger       *slog.Logger
	clock        clockwork.Clock
	timeUnit     time.Duration
	timeoutUnits int
	retryCount   int
	observer     Observer
}

type Option func(*Messenger)

func WithClock(clock clockwork.Clock) Option {
	return func(m *Messenger) { m.clock = clock }
}

// WithTimeUnit sets the duration of one timeout unit.
func WithTimeUnit(unit time.Duration) Option {
	return func(m *Messenger) { m.timeUnit = unit }
}

// WithDefaults overrides the timeout and retry count used when a connector
// does not set its own.
func WithDefaults(timeoutUnits, retryCount int) Option {
	return func(m *Messenger) {
		m.timeoutUnits = timeoutUnits
		m.retryCount = retryCount
	}
}

func WithObserver(o Observer) Option {
	return func(m *Messenger) { m.observer = o }
}

func NewMessenger(transport Transport, logger *slog.Logger, opts ...Option) *Messenger {
	m := &Messenger{
		transport:    transport,
		logger:       logger.With("module", "a2a"),
		clock:        clockwork.NewRealClock(),
		timeUnit:     DefaultTimeUnit,
		timeoutUnits: DefaultTimeoutUnits,
		retryCount:   DefaultRetryCount,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Policy resolves the effective timeout and retry count for a connector.
func (m *Messenger) Policy(cfg *models.ConnectorConfig) (time.Duration, int) {
	units := m.timeoutUnits
	retries := m.retryCount

	if cfg != nil {
		if cfg.TimeoutUnits > 0 {
			units = cfg.TimeoutUnits
		}

		if cfg.RetryCount != nil && *cfg.RetryCount >= 0 {
			retries = *cfg.RetryCount
		}
	}

	return time.Duration(units) * m.timeUnit, retries
}

// Send delivers msg across the connector described by cfg. It makes at most
// retries+1 attempts, each with its own timeout, and never returns an error:
// failures are reported in the outcome.
func (m *Messenger) Send(ctx context.Context, edgeID string, cfg *models.ConnectorConfig, msg Message) models.A2AOutcome {
	timeout, retries := m.Policy(cfg)
	start := m.clock.Now()

	outcome := models.A2AOutcome{EdgeID: edgeID}
	if msg.From != nil {
		outcome.FromNodeID = msg.From.ID
	}

	if msg.To != nil {
		outcome.ToNodeID = msg.To.ID
	}

	logger := m.logger.With("edge_id", edgeID, "from", outcome.FromNodeID, "to", outcome.ToNodeID)

	if m.transport == nil {
		outcome.Status = models.A2AFailed
		outcome.Reason = ErrNoTransport.Error()

		return m.finish(outcome, start)
	}

	lastTimedOut := false

	operation := func() (any, error) {
		outcome.Attempts++

		response, err := m.attempt(ctx, timeout, msg)

		switch {
		case err == nil:
			lastTimedOut = false
			m.observeAttempt(models.A2ADelivered)

			return response, nil
		case errors.Is(err, ErrAttemptTimeout):
			lastTimedOut = true
			m.observeAttempt(models.A2ATimeout)
		default:
			lastTimedOut = false
			m.observeAttempt(models.A2AFailed)
		}

		logger.Debug("Delivery attempt failed", "attempt", outcome.Attempts, "error", err)

		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}

		return nil, err
	}

	policy := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, uint64(retries))

	response, err := backoff.RetryWithData(operation, backoff.WithContext(policy, ctx))
	if err == nil {
		outcome.Status = models.A2ADelivered
		outcome.Response = response

		return m.finish(outcome, start)
	}

	if lastTimedOut {
		outcome.Status = models.A2ATimeout
	} else {
		outcome.Status = models.A2AFailed
	}

	outcome.Reason = err.Error()

	logger.Warn("Message not delivered", "status", outcome.Status, "attempts", outcome.Attempts, "reason", outcome.Reason)

	return m.finish(outcome, start)
}

// attempt runs one delivery bounded by timeout. A transport that ignores
// cancellation is abandoned once the deadline passes.
func (m *Messenger) attempt(ctx context.Context, timeout time.Duration, msg Message) (any, error) {
	attemptCtx, cancel := clockwork.WithTimeout(ctx, m.clock, timeout)
	defer cancel()

	type result struct {
		response any
		err      error
	}

	done := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("transport panic: %v", r)}
			}
		}()

		response, err := m.transport.Deliver(attemptCtx, msg)
		done <- result{response: response, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(r.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w after %s", ErrAttemptTimeout, timeout)
		}

		return r.response, r.err
	case <-attemptCtx.Done():
		select {
		case r := <-done:
			if r.err == nil {
				return r.response, nil
			}
		default:
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("%w after %s", ErrAttemptTimeout, timeout)
	}
}

func (m *Messenger) finish(outcome models.A2AOutcome, start time.Time) models.A2AOutcome {
	outcome.ElapsedMs = m.clock.Since(start).Milliseconds()

	if m.observer != nil {
		m.observer.ObserveA2AOutcome(outcome)
	}

	return outcome
}

func (m *Messenger) observeAttempt(status models.A2AStatus) {
	if m.observer != nil {
		m.observer.ObserveA2AAttempt(status)
	}
}
