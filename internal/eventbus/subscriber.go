package eventbus

import "context"

// Subscriber receives a live feed of published events (the websocket
// streaming surface). Grounded on the teacher's EventSubscriber interface.
type Subscriber interface {
	ID() string
	Send(event Event) error
	Close() error
	Context() context.Context
}

// ChannelSubscriber is a Subscriber backed by a buffered Go channel, the
// shape used by both the websocket writer goroutine and tests.
type ChannelSubscriber struct {
	id     string
	ctx    context.Context
	cancel context.CancelFunc
	events chan Event
}

// NewChannelSubscriber creates a subscriber whose Send enqueues onto an
// internal buffered channel; the caller drains Events() in its own
// goroutine (e.g. a websocket write pump).
func NewChannelSubscriber(ctx context.Context, id string, bufferSize int) *ChannelSubscriber {
	subCtx, cancel := context.WithCancel(ctx)
	return &ChannelSubscriber{
		id:     id,
		ctx:    subCtx,
		cancel: cancel,
		events: make(chan Event, bufferSize),
	}
}

func (s *ChannelSubscriber) ID() string { return s.id }

func (s *ChannelSubscriber) Context() context.Context { return s.ctx }

// Events returns the channel to range over for outgoing events.
func (s *ChannelSubscriber) Events() <-chan Event { return s.events }

func (s *ChannelSubscriber) Send(event Event) error {
	select {
	case s.events <- event:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return ErrChannelFull
	}
}

func (s *ChannelSubscriber) Close() error {
	s.cancel()
	return nil
}
