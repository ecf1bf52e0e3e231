package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/harborlabs/skiff/internal/feed"
	"github.com/harborlabs/skiff/internal/proc"
	"github.com/harborlabs/skiff/internal/session"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Loopback-only server; the dashboard dev server is a different
		// local port.
		return true
	},
}

// controlMessage is a JSON text frame from the dashboard terminal.
type controlMessage struct {
	Type string `json:"type"`
	Cols uint16 `json:"cols,omitempty"`
	Rows uint16 `json:"rows,omitempty"`
}

// wsClient is one interactive terminal attach. Binary frames carry
// keystrokes to stdin; text frames out carry the same JSON frames the
// SSE stream does.
type wsClient struct {
	conn *websocket.Conn
	sess *session.Session
	sub  *feed.Subscriber
	log  *slog.Logger
}

// handleAttach handles GET /api/sessions/{id}/attach.
func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	snapshot, sub := sess.Feed().Attach()
	c := &wsClient{
		conn: conn,
		sess: sess,
		sub:  sub,
		log:  s.log.With("session", sess.ID),
	}
	go c.writePump(snapshot, sess.Alive())
	c.readPump()
}

// readPump reads client frames until the connection dies.
func (c *wsClient) readPump() {
	defer func() {
		c.sub.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("websocket read", "err", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			if err := c.sess.Write(data); err != nil && !errors.Is(err, proc.ErrProcDead) {
				c.log.Warn("session write", "err", err)
			}

		case websocket.TextMessage:
			var msg controlMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				c.log.Warn("invalid control message", "err", err)
				continue
			}
			c.handleControl(msg)
		}
	}
}

func (c *wsClient) handleControl(msg controlMessage) {
	switch msg.Type {
	case "resize":
		if msg.Cols > 0 && msg.Rows > 0 {
			if err := c.sess.Resize(msg.Cols, msg.Rows); err != nil && !errors.Is(err, proc.ErrNoPTY) && !errors.Is(err, proc.ErrProcDead) {
				c.log.Warn("resize", "err", err)
			}
		}

	case "ping":
		// Presence is the payload.

	default:
		c.log.Warn("unknown control message", "type", msg.Type)
	}
}

// writePump forwards the replay, a liveness status, then live frames,
// pinging the client on an interval. It owns all writes on the
// connection.
func (c *wsClient) writePump(snapshot []feed.Frame, alive bool) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	if c.writeFrame(feed.Replay(snapshot)) != nil {
		return
	}
	if c.writeFrame(feed.Status(alive)) != nil {
		return
	}

	for {
		select {
		case f, ok := <-c.sub.Frames():
			if !ok {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if c.writeFrame(f) != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) writeFrame(f feed.Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return err
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}
