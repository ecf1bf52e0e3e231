package feed

// DefaultRingCap is the default per-session frame retention. 5,000 frames
// of typical terminal output is minutes of scrollback; older frames are
// evicted, trading completeness for a bounded footprint.
const DefaultRingCap = 5000

// ring is a fixed-capacity circular buffer of frames, oldest evicted first.
// It is not safe for concurrent use; Feed serializes access.
type ring struct {
	frames []Frame
	// start is the index of the oldest retained frame; count is the number
	// of retained frames, never exceeding len(frames).
	start int
	count int
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = DefaultRingCap
	}
	return &ring{frames: make([]Frame, capacity)}
}

// append adds f, evicting the oldest frame when the ring is full.
func (r *ring) append(f Frame) {
	pos := (r.start + r.count) % len(r.frames)
	r.frames[pos] = f
	if r.count < len(r.frames) {
		r.count++
		return
	}
	r.start = (r.start + 1) % len(r.frames)
}

// snapshot returns the retained frames in append order.
func (r *ring) snapshot() []Frame {
	out := make([]Frame, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.frames[(r.start+i)%len(r.frames)]
	}
	return out
}

func (r *ring) len() int {
	return r.count
}
