package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/harborlabs/skiff/internal/gateway"
	"github.com/harborlabs/skiff/internal/proc"
	"github.com/harborlabs/skiff/internal/session"
	"github.com/harborlabs/skiff/internal/stats"
	"github.com/harborlabs/skiff/internal/workdir"
)

type createSessionRequest struct {
	// Kind selects a configured preset; Command launches a raw argv.
	// Exactly one of the two must be set.
	Kind    string   `json:"kind,omitempty"`
	Command []string `json:"command,omitempty"`
	Dir     string   `json:"dir,omitempty"`
	Env     []string `json:"env,omitempty"`
	PTY     bool     `json:"pty,omitempty"`
}

type inputRequest struct {
	Data string `json:"data"`
}

type resizeRequest struct {
	Cols uint16 `json:"cols"`
	Rows uint16 `json:"rows"`
}

// sessionView is a listing row: registry info plus a best-effort process
// sample.
type sessionView struct {
	session.Info
	Stats *stats.Sample `json:"stats,omitempty"`
}

// handleCreateSession handles POST /api/sessions.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	kind := req.Kind
	spec := proc.Spec{
		Command: req.Command,
		Dir:     req.Dir,
		Env:     req.Env,
		PTY:     req.PTY,
	}

	switch {
	case req.Kind != "" && len(req.Command) > 0:
		writeError(w, http.StatusBadRequest, "kind and command are mutually exclusive")
		return
	case req.Kind != "":
		preset, ok := s.cfg.Preset(req.Kind)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown session kind: "+req.Kind)
			return
		}
		spec.Command = preset.Command
		spec.PTY = preset.PTY
		if spec.Dir == "" {
			spec.Dir = preset.Dir
		}
	case len(req.Command) > 0:
		kind = "custom"
	default:
		writeError(w, http.StatusBadRequest, "kind or command is required")
		return
	}

	if s.guard != nil {
		resolved, err := s.guard.Resolve(spec.Dir)
		if err != nil {
			writeError(w, http.StatusBadRequest, "working directory: "+err.Error())
			return
		}
		spec.Dir = resolved
	}

	sess, err := s.registry.Create(kind, spec)
	if err != nil {
		if errors.Is(err, proc.ErrEmptyCommand) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Spawn failure: missing binary, permissions, bad directory.
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, sess.Info(time.Now()))
}

// handleListSessions handles GET /api/sessions.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.List()
	views := make([]sessionView, 0, len(infos))
	for _, info := range infos {
		v := sessionView{Info: info}
		if info.Alive && info.PID > 0 {
			v.Stats = stats.Collect(info.PID)
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": views,
		"count":    len(views),
	})
}

// handleGetSession handles GET /api/sessions/{id}.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	v := sessionView{Info: sess.Info(time.Now())}
	if v.Alive && v.PID > 0 {
		v.Stats = stats.Collect(v.PID)
	}
	writeJSON(w, http.StatusOK, v)
}

// handleKillSession handles DELETE /api/sessions/{id}. Killing an unknown
// id succeeds: the desired end state, session gone, already holds.
func (s *Server) handleKillSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.registry.Remove(id); err != nil && !errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w)
}

// handleInput handles POST /api/sessions/{id}/input.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := sess.Write([]byte(req.Data)); err != nil {
		if errors.Is(err, proc.ErrProcDead) {
			writeError(w, http.StatusConflict, "session has exited")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w)
}

// handleResize handles POST /api/sessions/{id}/resize.
func (s *Server) handleResize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Cols == 0 || req.Rows == 0 {
		writeError(w, http.StatusBadRequest, "cols and rows are required")
		return
	}

	sess, err := s.registry.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}

	if err := sess.Resize(req.Cols, req.Rows); err != nil {
		switch {
		case errors.Is(err, proc.ErrNoPTY):
			writeError(w, http.StatusBadRequest, "session has no pty")
		case errors.Is(err, proc.ErrProcDead):
			writeError(w, http.StatusConflict, "session has exited")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeOK(w)
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"sessions": s.registry.Count(),
	}
	if s.gateway != nil {
		resp["gateway"] = gateway.Probe(r.Context(), s.gateway)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRuntimeStatus handles GET /api/runtime/status. The gateway being
// down is a state the dashboard renders, not a failure of this endpoint.
func (s *Server) handleRuntimeStatus(w http.ResponseWriter, r *http.Request) {
	if s.gateway == nil {
		writeJSON(w, http.StatusOK, gateway.Status{Error: "gateway not configured"})
		return
	}
	writeJSON(w, http.StatusOK, gateway.Probe(r.Context(), s.gateway))
}

// handleWorkdir handles GET /api/workdir?path= for the directory picker.
func (s *Server) handleWorkdir(w http.ResponseWriter, r *http.Request) {
	if s.guard == nil {
		writeError(w, http.StatusNotFound, "workdir root not configured")
		return
	}

	path := r.URL.Query().Get("path")
	entries, err := s.guard.List(path)
	if err != nil {
		switch {
		case errors.Is(err, workdir.ErrPathEscape):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, workdir.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"root":    s.guard.Root(),
		"path":    path,
		"entries": entries,
	})
}
