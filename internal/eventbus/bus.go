package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultChannelBuffer = 1000
	defaultReplayBuffer  = 2000
)

// Bus fans out published events to live subscribers and retains a bounded
// replay buffer so the GET /events?since=&limit= long-poll surface can
// catch up without itself being a Subscriber.
//
// Adapted from the teacher's DefaultEventBus: same buffered-channel plus
// per-subscriber-goroutine broadcast worker, plus the replay ring buffer
// the teacher's dashboard-only design didn't need (its consumers were all
// live SSE/websocket connections, never a stateless poller).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]Subscriber

	eventChan chan Event
	sequence  int64

	replayMu  sync.Mutex
	replay    []Event
	replayCap int

	logger   *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// New creates a Bus. Call Start to begin the broadcast worker.
func New(logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[string]Subscriber),
		eventChan:   make(chan Event, defaultChannelBuffer),
		replayCap:   defaultReplayBuffer,
		logger:      logger.With("component", "eventbus"),
		stopChan:    make(chan struct{}),
	}
}

// Start runs the broadcast worker until ctx is done or Stop is called.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	go b.broadcastWorker(ctx)
}

// Stop waits (up to ctx's deadline) for the broadcast worker to drain.
func (b *Bus) Stop(ctx context.Context) error {
	close(b.stopChan)
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a live subscriber.
func (b *Bus) Subscribe(sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[sub.ID()] = sub
	b.logger.Info("subscriber added", "subscriber_id", sub.ID(), "total", len(b.subscribers))
}

// Unsubscribe removes and closes a subscriber.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		_ = sub.Close()
		b.logger.Info("subscriber removed", "subscriber_id", id, "total", len(b.subscribers))
	}
}

// ActiveSubscribers returns the current live subscriber count.
func (b *Bus) ActiveSubscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish assigns a sequence number, appends to the replay buffer, and
// enqueues the event for asynchronous broadcast. It never blocks: a full
// channel drops the event from live broadcast (it is still retained in the
// replay buffer) and returns ErrChannelFull.
func (b *Bus) Publish(event Event) error {
	event.Sequence = atomic.AddInt64(&b.sequence, 1)
	b.appendReplay(event)

	select {
	case b.eventChan <- event:
		return nil
	default:
		b.logger.Warn("event channel full, dropping from live broadcast", "event_type", event.Type, "event_id", event.ID)
		return ErrChannelFull
	}
}

func (b *Bus) appendReplay(event Event) {
	b.replayMu.Lock()
	defer b.replayMu.Unlock()
	b.replay = append(b.replay, event)
	if len(b.replay) > b.replayCap {
		b.replay = b.replay[len(b.replay)-b.replayCap:]
	}
}

// Since returns up to limit events with sequence strictly greater than
// cursor, ascending by sequence — the data behind GET /events?since=&limit=.
func (b *Bus) Since(cursor int64, limit int) []Event {
	b.replayMu.Lock()
	defer b.replayMu.Unlock()

	out := make([]Event, 0, limit)
	for _, e := range b.replay {
		if e.Sequence <= cursor {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (b *Bus) broadcastWorker(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.stopChan:
			return
		case event := <-b.eventChan:
			b.broadcast(event)
		}
	}
}

func (b *Bus) broadcast(event Event) {
	start := time.Now()

	b.mu.RLock()
	subs := make([]Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()

	if len(subs) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(sub Subscriber) {
			defer wg.Done()
			select {
			case <-sub.Context().Done():
				b.Unsubscribe(sub.ID())
				return
			default:
			}
			if err := sub.Send(event); err != nil {
				b.logger.Warn("failed to send event to subscriber", "subscriber_id", sub.ID(), "event_type", event.Type, "error", err)
				b.Unsubscribe(sub.ID())
			}
		}(sub)
	}
	wg.Wait()

	b.logger.Debug("event broadcast complete", "event_type", event.Type, "event_id", event.ID, "subscribers", len(subs), "duration_ms", time.Since(start).Milliseconds())
}
