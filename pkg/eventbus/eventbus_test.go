package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/agentgraph/pkg/channels/gochannel"
	"github.com/dukex/agentgraph/pkg/events"
	"github.com/dukex/agentgraph/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func nodeEvent(status models.NodeStatus) events.NodeStatusChanged {
	return events.NodeStatusChanged{
		BaseEvent: events.NewBaseEvent(events.NodeStatusChangedEvent, "wf-1", "exec-1", time.Now()),
		NodeID:    "agent-1",
		Kind:      models.NodeKindAgent,
		Status:    status,
	}
}

func TestBroadcaster_DeliversInOrder(t *testing.T) {
	b := NewBroadcaster(testLogger())

	var seen []string

	b.Subscribe(func(_ context.Context, e Event) {
		seen = append(seen, "first:"+string(e.(events.NodeStatusChanged).Status))
	})
	unsubscribe := b.Subscribe(func(_ context.Context, e Event) {
		seen = append(seen, "second:"+string(e.(events.NodeStatusChanged).Status))
	})

	require.NoError(t, b.Publish(context.Background(), "wf-1", nodeEvent(models.NodeStatusRunning)))
	unsubscribe()
	require.NoError(t, b.Publish(context.Background(), "wf-1", nodeEvent(models.NodeStatusCompleted)))

	assert.Equal(t, []string{"first:running", "second:running", "first:completed"}, seen)
}

func TestBroadcaster_PanickingObserverIsIsolated(t *testing.T) {
	b := NewBroadcaster(testLogger())

	called := false

	b.Subscribe(func(context.Context, Event) { panic("bad observer") })
	b.Subscribe(func(context.Context, Event) { called = true })

	assert.NoError(t, b.Publish(context.Background(), "wf-1", nodeEvent(models.NodeStatusRunning)))
	assert.True(t, called)
}

func TestBroadcaster_Channel(t *testing.T) {
	b := NewBroadcaster(testLogger())

	ch, stop := b.Channel(1)

	require.NoError(t, b.Publish(context.Background(), "wf-1", nodeEvent(models.NodeStatusRunning)))
	require.NoError(t, b.Publish(context.Background(), "wf-1", nodeEvent(models.NodeStatusCompleted)))

	first := <-ch
	assert.Equal(t, models.NodeStatusRunning, first.(events.NodeStatusChanged).Status)

	stop()
	stop()

	_, open := <-ch
	assert.False(t, open)

	assert.NoError(t, b.Publish(context.Background(), "wf-1", nodeEvent(models.NodeStatusError)))
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, string, Event) error { return f.err }

func TestFanout(t *testing.T) {
	b := NewBroadcaster(testLogger())
	ch, stop := b.Channel(4)
	defer stop()

	boom := errors.New("broker down")
	fan := Fanout{b, nil, failingPublisher{err: boom}, Discard{}}

	err := fan.Publish(context.Background(), "wf-1", nodeEvent(models.NodeStatusRunning))
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ch, 1)
}

func TestWatermillEventBus_RoundTrip(t *testing.T) {
	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := NewWatermillEventBus(pub, sub)
	defer bus.Close()

	received := make(chan *events.NodeStatusChanged, 1)

	require.NoError(t, bus.Handle(events.NodeStatusChangedEvent, func(_ context.Context, event any) error {
		received <- event.(*events.NodeStatusChanged)

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))
	require.NoError(t, bus.Publish(ctx, "wf-1", nodeEvent(models.NodeStatusCompleted)))

	select {
	case event := <-received:
		assert.Equal(t, "agent-1", event.NodeID)
		assert.Equal(t, models.NodeStatusCompleted, event.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("event not received")
	}
}
