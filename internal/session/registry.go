package session

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/harborlabs/skiff/internal/event"
	"github.com/harborlabs/skiff/internal/feed"
	"github.com/harborlabs/skiff/internal/proc"
)

var ErrNotFound = errors.New("session not found")

// Reaper defaults. Explicit kill is the primary cleanup path; the reaper
// is the safety net bounding growth from abandoned sessions.
const (
	DefaultMaxAge       = 30 * time.Minute
	DefaultReapInterval = 5 * time.Minute
)

// Options configures a Registry. Zero fields take defaults; Bus may stay
// nil when nobody listens for lifecycle events.
type Options struct {
	RingCap      int
	MaxAge       time.Duration
	ReapInterval time.Duration
	KillGrace    time.Duration
	Logger       *slog.Logger
	Bus          *event.Bus
}

// Registry is the single source of truth for what sessions exist. It is
// an explicit instance owned by the composition root, safe for concurrent
// use by handlers, exit watchers and the reaper.
type Registry struct {
	ringCap      int
	maxAge       time.Duration
	reapInterval time.Duration
	killGrace    time.Duration
	log          *slog.Logger
	bus          *event.Bus

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.RingCap <= 0 {
		opts.RingCap = feed.DefaultRingCap
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultMaxAge
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = DefaultReapInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Registry{
		ringCap:      opts.RingCap,
		maxAge:       opts.MaxAge,
		reapInterval: opts.ReapInterval,
		killGrace:    opts.KillGrace,
		log:          opts.Logger,
		bus:          opts.Bus,
		sessions:     make(map[string]*Session),
	}
}

// Create spawns the process described by spec and registers a new
// session around it. Spawn failure is returned synchronously and nothing
// is registered.
func (r *Registry) Create(kind string, spec proc.Spec) (*Session, error) {
	if spec.KillGrace <= 0 {
		spec.KillGrace = r.killGrace
	}

	f := feed.New(r.ringCap)
	p, err := proc.Start(spec, f)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:        uuid.New().String(),
		Kind:      kind,
		CreatedAt: time.Now(),
		spec:      spec,
		proc:      p,
		feed:      f,
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.log.Info("session created", "id", s.ID, "kind", kind, "pid", p.PID())
	r.bus.Publish(event.Event{Type: event.TypeSessionCreated, SessionID: s.ID, Kind: kind})
	go r.watchExit(s)
	return s, nil
}

// watchExit announces the process's own exit, however it came about.
func (r *Registry) watchExit(s *Session) {
	<-s.Done()
	r.log.Info("session exited", "id", s.ID, "kind", s.Kind)
	r.bus.Publish(event.Event{Type: event.TypeSessionExited, SessionID: s.ID, Kind: s.Kind})
}

// Get returns the session for id, or ErrNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// List returns the listing view of every session, oldest first.
func (r *Registry) List() []Info {
	now := time.Now()

	r.mu.RLock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info(now))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Remove terminates the session's process if still alive and evicts the
// entry. Subscribers attached at removal time receive the final
// exit/error frame before the feed teardown ends delivery. Unknown ids
// return ErrNotFound.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return ErrNotFound
	}
	delete(r.sessions, id)
	r.mu.Unlock()

	s.Terminate()
	r.log.Info("session removed", "id", id, "kind", s.Kind)
	r.bus.Publish(event.Event{Type: event.TypeSessionKilled, SessionID: id, Kind: s.Kind})
	return nil
}

// Reap sweeps once: every session that is dead or older than maxAge is
// terminated and evicted, attached viewers or not. Returns the number of
// sessions reaped. The sweep is O(sessions).
func (r *Registry) Reap() int {
	now := time.Now()

	r.mu.Lock()
	var victims []*Session
	for id, s := range r.sessions {
		if !s.Alive() || now.Sub(s.CreatedAt) > r.maxAge {
			delete(r.sessions, id)
			victims = append(victims, s)
		}
	}
	r.mu.Unlock()

	for _, s := range victims {
		s.Terminate()
		r.log.Info("session reaped", "id", s.ID, "kind", s.Kind, "age", now.Sub(s.CreatedAt).Round(time.Second).String())
		r.bus.Publish(event.Event{Type: event.TypeSessionReaped, SessionID: s.ID, Kind: s.Kind})
	}
	return len(victims)
}

// RunReaper sweeps on the configured interval until ctx is cancelled.
func (r *Registry) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(r.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Reap()
		}
	}
}

// Shutdown terminates every session and waits for the processes to exit,
// up to ctx's deadline.
func (r *Registry) Shutdown(ctx context.Context) {
	r.mu.Lock()
	victims := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		victims = append(victims, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range victims {
		s.Terminate()
	}
	for _, s := range victims {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return
		}
	}
}
