package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborlabs/skiff/internal/feed"
	"github.com/harborlabs/skiff/internal/session"
)

// DefaultKeepalive is the SSE ping interval when the config leaves it
// unset.
const DefaultKeepalive = 15 * time.Second

// bridgeState names the lifecycle phases of one streaming connection.
type bridgeState int

const (
	stateAttaching bridgeState = iota
	stateStreaming
	stateDetached
)

// bridge is one SSE connection to one session. It lives entirely on the
// handler goroutine; every exit path funnels through detach exactly once.
type bridge struct {
	w       http.ResponseWriter
	flusher http.Flusher
	sub     *feed.Subscriber
	ticker  *time.Ticker
	state   bridgeState
}

// handleStream handles GET /api/sessions/{id}/stream: replay of the
// retained buffer, a liveness status, then live frames with keepalive
// pings until the session ends or the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// no-transform keeps intermediary proxies from buffering or
	// reencoding the stream.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	b := &bridge{w: w, flusher: flusher, state: stateAttaching}
	b.run(r.Context(), sess, s.keepalive())
}

func (s *Server) keepalive() time.Duration {
	if s.cfg != nil && s.cfg.Sessions.Keepalive > 0 {
		return s.cfg.Sessions.Keepalive
	}
	return DefaultKeepalive
}

func (b *bridge) run(ctx context.Context, sess *session.Session, keepalive time.Duration) {
	// Snapshot and subscribe in one critical section: the replay ends
	// exactly where the live frames begin.
	snapshot, sub := sess.Feed().Attach()
	b.sub = sub
	b.ticker = time.NewTicker(keepalive)
	defer b.detach()

	if b.send(feed.Replay(snapshot)) != nil {
		return
	}
	if b.send(feed.Status(sess.Alive())) != nil {
		return
	}
	b.state = stateStreaming

	for {
		select {
		case <-ctx.Done():
			// Client disconnect is observed here, synchronously, not on
			// the next ping tick.
			return
		case f, ok := <-sub.Frames():
			if !ok {
				// Feed torn down. For a session that ended before we
				// attached, the terminal frame was already in the replay.
				return
			}
			if b.send(f) != nil {
				return
			}
			if f.Terminal() {
				return
			}
		case <-b.ticker.C:
			if b.send(feed.Ping()) != nil {
				return
			}
		}
	}
}

// detach is the single teardown path: unsubscribe and stop the keepalive.
// Safe against multiple triggers; only the first entry does work.
func (b *bridge) detach() {
	if b.state == stateDetached {
		return
	}
	b.state = stateDetached
	b.ticker.Stop()
	b.sub.Close()
}

// send writes one frame as an SSE data event.
func (b *bridge) send(f feed.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(b.w, "data: %s\n\n", data); err != nil {
		return err
	}
	b.flusher.Flush()
	return nil
}

// handleEvents handles GET /api/events: the dashboard lifecycle feed,
// one named SSE event per bus event.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	sub := s.bus.Subscribe()
	defer sub.Close()

	fmt.Fprintf(w, "event: connected\ndata: {\"time\":%q}\n\n", time.Now().UTC().Format(time.RFC3339))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
