package eventbus

import (
	"context"
	"log/slog"
	"sync"
)

// Observer receives events synchronously, in publish order.
type Observer func(ctx context.Context, event Event)

// Broadcaster is an in-process observer list. Observers are called in
// subscription order; a panicking observer is logged and skipped.
type Broadcaster struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	nextID    int
	observers map[int]Observer
	order     []int
}

func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		logger:    logger.With("module", "broadcaster"),
		observers: make(map[int]Observer),
	}
}

// Subscribe registers an observer and returns a function removing it.
func (b *Broadcaster) Subscribe(observer Observer) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.observers[id] = observer
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		delete(b.observers, id)

		for i, o := range b.order {
			if o == id {
				b.order = append(b.order[:i], b.order[i+1:]...)

				break
			}
		}
	}
}

// Channel subscribes a buffered channel. Events are dropped when the buffer
// is full so a slow reader never stalls the publisher.
func (b *Broadcaster) Channel(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	var (
		mu     sync.Mutex
		closed bool
	)

	unsubscribe := b.Subscribe(func(_ context.Context, event Event) {
		mu.Lock()
		defer mu.Unlock()

		if closed {
			return
		}

		select {
		case ch <- event:
		default:
			b.logger.Warn("Dropping event for slow subscriber", "event_type", event.GetType())
		}
	})

	return ch, func() {
		unsubscribe()

		mu.Lock()
		defer mu.Unlock()

		if !closed {
			closed = true
			close(ch)
		}
	}
}

func (b *Broadcaster) Publish(ctx context.Context, _ string, event Event) error {
	b.mu.RLock()
	observers := make([]Observer, 0, len(b.order))

	for _, id := range b.order {
		observers = append(observers, b.observers[id])
	}
	b.mu.RUnlock()

	for _, observer := range observers {
		b.notify(ctx, observer, event)
	}

	return nil
}

func (b *Broadcaster) notify(ctx context.Context, observer Observer, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Observer panicked", "event_type", event.GetType(), "panic", r)
		}
	}()

	observer(ctx, event)
}
