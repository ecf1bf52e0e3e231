package session

import (
	"time"

	"github.com/harborlabs/skiff/internal/feed"
	"github.com/harborlabs/skiff/internal/proc"
)

// Session is one spawned interactive process plus its output feed. The
// session is the unit of lifetime: killing or reaping it tears down both.
type Session struct {
	ID        string
	Kind      string
	CreatedAt time.Time

	spec proc.Spec
	proc *proc.Proc
	feed *feed.Feed
}

// Info is the listing view of a session.
type Info struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Alive      bool      `json:"alive"`
	CreatedAt  time.Time `json:"createdAt"`
	AgeSeconds int64     `json:"ageSeconds"`
	PID        int       `json:"pid,omitempty"`
}

// Alive reports whether the session's process is still running.
func (s *Session) Alive() bool {
	return s.proc.Alive()
}

// Feed returns the session's output broadcaster.
func (s *Session) Feed() *feed.Feed {
	return s.feed
}

// Write forwards bytes to the process input. Returns proc.ErrProcDead
// once the process has exited.
func (s *Session) Write(data []byte) error {
	return s.proc.Write(data)
}

// Terminate best-effort-terminates the process. Idempotent; the exit
// watcher marks the session dead, not this call.
func (s *Session) Terminate() {
	s.proc.Terminate()
}

// Resize changes the PTY window size for interactive sessions.
func (s *Session) Resize(cols, rows uint16) error {
	return s.proc.Resize(cols, rows)
}

// Done closes once the process has exited and its terminal frame is in
// the feed.
func (s *Session) Done() <-chan struct{} {
	return s.proc.Done()
}

// PID returns the child process id.
func (s *Session) PID() int {
	return s.proc.PID()
}

// Interactive reports whether the session runs inside a PTY.
func (s *Session) Interactive() bool {
	return s.proc.Interactive()
}

// Info renders the listing view relative to now.
func (s *Session) Info(now time.Time) Info {
	return Info{
		ID:         s.ID,
		Kind:       s.Kind,
		Alive:      s.Alive(),
		CreatedAt:  s.CreatedAt,
		AgeSeconds: int64(now.Sub(s.CreatedAt).Seconds()),
		PID:        s.PID(),
	}
}
