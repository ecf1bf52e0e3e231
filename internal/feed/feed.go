package feed

import "sync"

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind is dropped rather than allowed to stall delivery
// to the process or to other subscribers.
const subscriberBuffer = 256

// Feed is the output broadcaster for one session: a bounded ring of frames
// plus the set of live subscribers. A single producer (the session's
// process) appends; any number of viewers subscribe and unsubscribe over
// the session's lifetime.
//
// All methods are safe for concurrent use.
type Feed struct {
	mu     sync.Mutex
	ring   *ring
	subs   map[*Subscriber]struct{}
	closed bool
}

// Subscriber receives every frame appended while it is registered, in
// append order. The channel is closed when the subscriber is dropped,
// unsubscribes, or the feed itself closes.
type Subscriber struct {
	feed *Feed
	ch   chan Frame
}

// Frames is the subscriber's receive channel.
func (s *Subscriber) Frames() <-chan Frame {
	return s.ch
}

// Close deregisters the subscriber and closes its channel. Idempotent.
func (s *Subscriber) Close() {
	s.feed.unsubscribe(s)
}

// New creates a feed retaining up to ringCap frames. ringCap <= 0 selects
// DefaultRingCap.
func New(ringCap int) *Feed {
	return &Feed{
		ring: newRing(ringCap),
		subs: make(map[*Subscriber]struct{}),
	}
}

// Append adds a frame to the ring, evicting the oldest frame at capacity,
// and delivers it to every registered subscriber. A subscriber whose buffer
// is full is unregistered and closed; delivery to the others proceeds.
// Append after Close is a no-op.
func (f *Feed) Append(frame Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.ring.append(frame)

	for s := range f.subs {
		select {
		case s.ch <- frame:
		default:
			delete(f.subs, s)
			close(s.ch)
		}
	}
}

// Subscribe registers a new subscriber for live frames. On a closed feed
// the returned subscriber's channel is already closed.
func (f *Feed) Subscribe() *Subscriber {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribeLocked()
}

// Snapshot returns the retained frames at call time, in append order.
func (f *Feed) Snapshot() []Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ring.snapshot()
}

// Attach atomically snapshots the ring and registers a subscriber, so the
// caller sees the buffered prefix followed by live frames with no gap and
// no duplication.
func (f *Feed) Attach() ([]Frame, *Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ring.snapshot(), f.subscribeLocked()
}

// Close ends the feed: every subscriber channel is closed and later
// appends are dropped. The ring stays readable so a late viewer can still
// replay history. Idempotent.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for s := range f.subs {
		delete(f.subs, s)
		close(s.ch)
	}
}

// Closed reports whether the feed has ended.
func (f *Feed) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Subscribers returns the number of registered subscribers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Len returns the number of retained frames.
func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ring.len()
}

func (f *Feed) subscribeLocked() *Subscriber {
	s := &Subscriber{feed: f, ch: make(chan Frame, subscriberBuffer)}
	if f.closed {
		close(s.ch)
		return s
	}
	f.subs[s] = struct{}{}
	return s
}

func (f *Feed) unsubscribe(s *Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.subs[s]; ok {
		delete(f.subs, s)
		close(s.ch)
	}
}
