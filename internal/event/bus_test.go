package event

import (
	"testing"
	"time"
)

func collect(s *Subscriber) []Event {
	var out []Event
	for {
		select {
		case e, ok := <-s.Events():
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

func TestBusFanOut(t *testing.T) {
	t.Parallel()
	b := NewBus()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(Event{Type: TypeSessionCreated, SessionID: "s1"})
	b.Publish(Event{Type: TypeSessionExited, SessionID: "s1"})

	for name, sub := range map[string]*Subscriber{"a": a, "c": c} {
		got := collect(sub)
		if len(got) != 2 {
			t.Fatalf("%s: got %d events, want 2", name, len(got))
		}
		if got[0].Type != TypeSessionCreated || got[1].Type != TypeSessionExited {
			t.Errorf("%s: event order: got %q then %q", name, got[0].Type, got[1].Type)
		}
	}
}

func TestBusStampsTime(t *testing.T) {
	t.Parallel()
	b := NewBus()
	sub := b.Subscribe()

	b.Publish(Event{Type: TypeRuntimeConfig, Path: "/tmp/runtime.json"})

	got := collect(sub)
	if len(got) != 1 {
		t.Fatalf("got %d events, want 1", len(got))
	}
	if got[0].Time.IsZero() {
		t.Error("published event has zero time")
	}
}

func TestBusUnsubscribeStopsDelivery(t *testing.T) {
	t.Parallel()
	b := NewBus()
	sub := b.Subscribe()

	sub.Close()
	sub.Close()
	b.Publish(Event{Type: TypeSessionKilled})

	if got := collect(sub); len(got) != 0 {
		t.Errorf("events after unsubscribe: got %d, want 0", len(got))
	}
	if n := b.Subscribers(); n != 0 {
		t.Errorf("subscriber count: got %d, want 0", n)
	}
}

func TestBusSlowSubscriberDropped(t *testing.T) {
	t.Parallel()
	b := NewBus()
	slow := b.Subscribe()
	fast := b.Subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.Publish(Event{Type: TypeSessionReaped})
		collect(fast)
	}

	if n := b.Subscribers(); n != 1 {
		t.Errorf("subscriber count after overflow: got %d, want 1", n)
	}
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-slow.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("dropped subscriber channel never closed")
		}
	}
}

func TestBusNilSafe(t *testing.T) {
	t.Parallel()
	var b *Bus

	b.Publish(Event{Type: TypeSessionCreated})
	b.Close()
	if n := b.Subscribers(); n != 0 {
		t.Errorf("nil bus subscribers: got %d, want 0", n)
	}
}

func TestBusClose(t *testing.T) {
	t.Parallel()
	b := NewBus()
	sub := b.Subscribe()

	b.Close()
	b.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("received event after bus close")
	}
	late := b.Subscribe()
	if _, ok := <-late.Events(); ok {
		t.Error("late subscriber on closed bus received an event")
	}
}
