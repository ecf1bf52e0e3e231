package feed

import (
	"fmt"
	"testing"
)

func TestRingAppendAndSnapshot(t *testing.T) {
	t.Parallel()
	r := newRing(8)

	r.append(Output("a"))
	r.append(Output("b"))
	r.append(Output("c"))

	got := r.snapshot()
	if len(got) != 3 {
		t.Fatalf("snapshot length: got %d, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Text != want {
			t.Errorf("snapshot[%d].Text: got %q, want %q", i, got[i].Text, want)
		}
	}
}

func TestRingEvictsOldestFirst(t *testing.T) {
	t.Parallel()
	r := newRing(3)

	for i := 0; i < 5; i++ {
		r.append(Output(fmt.Sprintf("f%d", i)))
	}

	got := r.snapshot()
	want := []string{"f2", "f3", "f4"}
	if len(got) != len(want) {
		t.Fatalf("snapshot length: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Text != want[i] {
			t.Errorf("snapshot[%d].Text: got %q, want %q", i, got[i].Text, want[i])
		}
	}
}

func TestRingNeverExceedsCap(t *testing.T) {
	t.Parallel()
	r := newRing(100)

	for i := 0; i < 350; i++ {
		r.append(Output("x"))
		if r.len() > 100 {
			t.Fatalf("after %d appends: len %d exceeds cap 100", i+1, r.len())
		}
	}
	if r.len() != 100 {
		t.Errorf("final len: got %d, want 100", r.len())
	}
}

func TestRingWrapAroundOrder(t *testing.T) {
	t.Parallel()
	r := newRing(4)

	// 10 appends into a 4-slot ring; the retained window is the last 4,
	// still in append order.
	for i := 0; i < 10; i++ {
		r.append(Output(fmt.Sprintf("f%d", i)))
	}

	got := r.snapshot()
	want := []string{"f6", "f7", "f8", "f9"}
	for i := range want {
		if got[i].Text != want[i] {
			t.Errorf("snapshot[%d].Text: got %q, want %q", i, got[i].Text, want[i])
		}
	}
}

func TestRingEmptySnapshot(t *testing.T) {
	t.Parallel()
	r := newRing(4)

	if got := r.snapshot(); len(got) != 0 {
		t.Errorf("empty ring snapshot: got %d frames, want 0", len(got))
	}
}

func TestRingDefaultCap(t *testing.T) {
	t.Parallel()
	r := newRing(0)

	if len(r.frames) != DefaultRingCap {
		t.Errorf("default capacity: got %d, want %d", len(r.frames), DefaultRingCap)
	}
}
