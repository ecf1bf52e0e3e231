package event

import (
	"sync"
	"time"
)

// Dashboard lifecycle event types.
const (
	TypeSessionCreated = "session.created"
	TypeSessionExited  = "session.exited"
	TypeSessionKilled  = "session.killed"
	TypeSessionReaped  = "session.reaped"
	TypeRuntimeConfig  = "runtime.config"
)

// Event is one dashboard lifecycle notification: a session changed state
// or the supervised runtime's config file changed on disk.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Path      string    `json:"path,omitempty"`
	Time      time.Time `json:"time"`
}

// subscriberBuffer bounds how far an event subscriber may lag before it
// is dropped.
const subscriberBuffer = 64

// Bus is an in-process pub/sub channel for dashboard events. Publishers
// never block: a subscriber that stops draining is dropped. A nil *Bus is
// valid and discards everything published to it.
type Bus struct {
	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

// Subscriber receives published events in publish order until it closes
// or falls behind.
type Subscriber struct {
	bus *Bus
	ch  chan Event
}

// Events is the subscriber's receive channel.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// Close deregisters the subscriber. Idempotent.
func (s *Subscriber) Close() {
	s.bus.unsubscribe(s)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscriber]struct{})}
}

// Publish stamps e with the current time if unset and delivers it to
// every subscriber that can take it.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for s := range b.subs {
		select {
		case s.ch <- e:
		default:
			delete(b.subs, s)
			close(s.ch)
		}
	}
}

// Subscribe registers a new subscriber. On a closed bus the returned
// subscriber's channel is already closed.
func (b *Bus) Subscribe() *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscriber{bus: b, ch: make(chan Event, subscriberBuffer)}
	if b.closed {
		close(s.ch)
		return s
	}
	b.subs[s] = struct{}{}
	return s
}

// Close drops all subscribers and makes later publishes no-ops.
// Idempotent.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		delete(b.subs, s)
		close(s.ch)
	}
}

// Subscribers returns the number of registered subscribers.
func (b *Bus) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Bus) unsubscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.ch)
	}
}
