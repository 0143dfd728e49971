package eventbus_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surpluscoord/control-plane/internal/eventbus"
)

type mockSubscriber struct {
	id     string
	mu     sync.Mutex
	events []eventbus.Event
	ctx    context.Context
	cancel context.CancelFunc
}

func newMockSubscriber(id string) *mockSubscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &mockSubscriber{id: id, ctx: ctx, cancel: cancel}
}

func (m *mockSubscriber) ID() string                  { return m.id }
func (m *mockSubscriber) Context() context.Context    { return m.ctx }
func (m *mockSubscriber) Close() error                { m.cancel(); return nil }

func (m *mockSubscriber) Send(event eventbus.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *mockSubscriber) received() []eventbus.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]eventbus.Event, len(m.events))
	copy(out, m.events)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishBroadcastsToSubscribers(t *testing.T) {
	bus := eventbus.New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	sub := newMockSubscriber("sub-1")
	bus.Subscribe(sub)

	require.NoError(t, bus.Publish(eventbus.New(eventbus.EventTypeListingCreated, "listing-1", map[string]any{"status": "posted"}, eventbus.SourceOrchestrator)))

	assert.Eventually(t, func() bool {
		return len(sub.received()) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestSinceReturnsEventsAfterCursor(t *testing.T) {
	bus := eventbus.New(testLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(eventbus.New(eventbus.EventTypeListingCreated, "listing-1", nil, eventbus.SourceOrchestrator)))
	}

	events := bus.Since(2, 10)
	require.Len(t, events, 3)
	assert.EqualValues(t, 3, events[0].Sequence)
	assert.EqualValues(t, 5, events[2].Sequence)
}

func TestSinceRespectsLimit(t *testing.T) {
	bus := eventbus.New(testLogger())
	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(eventbus.New(eventbus.EventTypeDemandCreated, "demand-1", nil, eventbus.SourceOrchestrator)))
	}

	events := bus.Since(0, 2)
	assert.Len(t, events, 2)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := eventbus.New(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	sub := newMockSubscriber("sub-1")
	bus.Subscribe(sub)
	bus.Unsubscribe(sub.ID())
	assert.Equal(t, 0, bus.ActiveSubscribers())

	require.NoError(t, bus.Publish(eventbus.New(eventbus.EventTypeMatchProposed, "match-1", nil, eventbus.SourceMatching)))
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sub.received())
}
