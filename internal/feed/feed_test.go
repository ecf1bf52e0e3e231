package feed

import (
	"fmt"
	"testing"
	"time"
)

// drain collects frames already buffered on the subscriber channel.
func drain(s *Subscriber) []Frame {
	var out []Frame
	for {
		select {
		case f, ok := <-s.Frames():
			if !ok {
				return out
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func TestFeedDeliversInAppendOrder(t *testing.T) {
	t.Parallel()
	f := New(16)
	sub := f.Subscribe()

	for i := 0; i < 5; i++ {
		f.Append(Output(fmt.Sprintf("f%d", i)))
	}

	got := drain(sub)
	if len(got) != 5 {
		t.Fatalf("delivered frames: got %d, want 5", len(got))
	}
	for i := range got {
		want := fmt.Sprintf("f%d", i)
		if got[i].Text != want {
			t.Errorf("frame %d: got %q, want %q", i, got[i].Text, want)
		}
	}
}

func TestFeedTwoSubscribersIdenticalCopies(t *testing.T) {
	t.Parallel()
	f := New(16)
	a := f.Subscribe()
	b := f.Subscribe()

	f.Append(Output("x"))
	f.Append(Output("y"))

	gotA := drain(a)
	gotB := drain(b)
	if len(gotA) != 2 || len(gotB) != 2 {
		t.Fatalf("delivered: a=%d b=%d, want 2 each", len(gotA), len(gotB))
	}
	for i := range gotA {
		if gotA[i].Text != gotB[i].Text {
			t.Errorf("frame %d differs: a=%q b=%q", i, gotA[i].Text, gotB[i].Text)
		}
	}

	// Detaching one must not affect the other.
	a.Close()
	f.Append(Output("z"))
	if got := drain(b); len(got) != 1 || got[0].Text != "z" {
		t.Errorf("after detach of a: b got %v, want [z]", got)
	}
}

func TestFeedNoDeliveryAfterUnsubscribe(t *testing.T) {
	t.Parallel()
	f := New(16)
	sub := f.Subscribe()

	f.Append(Output("before"))
	sub.Close()
	f.Append(Output("after"))

	got := drain(sub)
	if len(got) != 1 || got[0].Text != "before" {
		t.Errorf("frames after unsubscribe: got %v, want [before]", got)
	}
	if n := f.Subscribers(); n != 0 {
		t.Errorf("subscriber count: got %d, want 0", n)
	}
}

func TestFeedUnsubscribeIdempotent(t *testing.T) {
	t.Parallel()
	f := New(16)
	sub := f.Subscribe()

	sub.Close()
	sub.Close() // second close must not panic or double-free
}

func TestFeedAttachNoGapNoDuplicate(t *testing.T) {
	t.Parallel()
	f := New(16)

	f.Append(Output("h1"))
	f.Append(Output("h2"))

	snapshot, sub := f.Attach()
	f.Append(Output("live"))

	if len(snapshot) != 2 || snapshot[0].Text != "h1" || snapshot[1].Text != "h2" {
		t.Fatalf("snapshot: got %v, want [h1 h2]", snapshot)
	}
	got := drain(sub)
	if len(got) != 1 || got[0].Text != "live" {
		t.Errorf("live frames: got %v, want [live]", got)
	}
}

func TestFeedSlowSubscriberDropped(t *testing.T) {
	t.Parallel()
	f := New(subscriberBuffer * 2)
	slow := f.Subscribe()
	fast := f.Subscribe()

	// Never read from slow; once its buffer fills it must be dropped
	// without stalling delivery to fast.
	for i := 0; i < subscriberBuffer+10; i++ {
		f.Append(Output("x"))
		drain(fast)
	}

	if n := f.Subscribers(); n != 1 {
		t.Fatalf("subscriber count after overflow: got %d, want 1", n)
	}

	// The dropped subscriber's channel ends after the buffered frames.
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-slow.Frames():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("dropped subscriber channel never closed")
		}
	}
}

func TestFeedCloseEndsSubscribers(t *testing.T) {
	t.Parallel()
	f := New(16)
	sub := f.Subscribe()

	f.Append(Exit(0))
	f.Close()

	got := drain(sub)
	if len(got) != 1 || got[0].Type != TypeExit {
		t.Fatalf("frames before close: got %v, want [exit]", got)
	}
	select {
	case _, ok := <-sub.Frames():
		if ok {
			t.Error("received frame after close")
		}
	case <-time.After(time.Second):
		t.Error("subscriber channel not closed")
	}
}

func TestFeedAppendAfterCloseDropped(t *testing.T) {
	t.Parallel()
	f := New(16)

	f.Append(Output("kept"))
	f.Close()
	f.Append(Output("dropped"))

	got := f.Snapshot()
	if len(got) != 1 || got[0].Text != "kept" {
		t.Errorf("snapshot after close: got %v, want [kept]", got)
	}
}

func TestFeedSnapshotSurvivesClose(t *testing.T) {
	t.Parallel()
	f := New(16)

	f.Append(Output("a"))
	f.Append(Exit(0))
	f.Close()

	// A late viewer still replays history from the closed feed, and its
	// subscription is immediately ended.
	snapshot, sub := f.Attach()
	if len(snapshot) != 2 {
		t.Fatalf("late snapshot: got %d frames, want 2", len(snapshot))
	}
	if _, ok := <-sub.Frames(); ok {
		t.Error("late subscriber received a frame from a closed feed")
	}
}

func TestFeedCloseIdempotent(t *testing.T) {
	t.Parallel()
	f := New(16)
	f.Subscribe()

	f.Close()
	f.Close()

	if !f.Closed() {
		t.Error("Closed() = false after Close")
	}
}

func TestFeedExitCodeZeroSurvivesEncoding(t *testing.T) {
	t.Parallel()
	f := Exit(0)
	if f.Code == nil || *f.Code != 0 {
		t.Fatal("exit frame lost code 0")
	}
	if !f.Terminal() {
		t.Error("exit frame not terminal")
	}
	if Ping().Terminal() {
		t.Error("ping frame reported terminal")
	}
}
