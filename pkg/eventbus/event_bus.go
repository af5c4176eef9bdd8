// Package eventbus carries the run status stream from the engine to whoever
// listens: in-process observers, a message broker, or both.
package eventbus

import (
	"context"
	"errors"

	"github.com/dukex/agentgraph/pkg/events"
)

type Event interface {
	GetType() events.EventType
}

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}

// Fanout publishes every event to each publisher in turn and joins their errors.
type Fanout []EventPublisher

func (f Fanout) Publish(ctx context.Context, key string, event Event) error {
	var errs []error

	for _, p := range f {
		if p == nil {
			continue
		}

		if err := p.Publish(ctx, key, event); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, string, Event) error {
	return nil
}
