package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/harborlabs/skiff/internal/config"
	"github.com/harborlabs/skiff/internal/event"
	"github.com/harborlabs/skiff/internal/gateway"
	"github.com/harborlabs/skiff/internal/session"
	"github.com/harborlabs/skiff/internal/workdir"
)

// Server bundles the dependencies behind the HTTP surface. The
// composition root owns all of them; Server only routes.
type Server struct {
	registry *session.Registry
	bus      *event.Bus
	gateway  gateway.Caller
	guard    *workdir.Guard
	cfg      *config.Config
	log      *slog.Logger
}

// NewServer creates the HTTP surface. guard may be nil when no workdir
// root is configured; gw may be nil when the gateway is not configured.
func NewServer(registry *session.Registry, bus *event.Bus, gw gateway.Caller, guard *workdir.Guard, cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{
		registry: registry,
		bus:      bus,
		gateway:  gw,
		guard:    guard,
		cfg:      cfg,
		log:      logger.With("component", "api"),
	}
}

// Router creates the chi router with all routes and middleware.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(s.log))
	r.Use(Recovery(s.log))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleCreateSession)
			r.Get("/{id}", s.handleGetSession)
			r.Delete("/{id}", s.handleKillSession)
			r.Post("/{id}/input", s.handleInput)
			r.Post("/{id}/resize", s.handleResize)
			r.Get("/{id}/stream", s.handleStream)
			r.Get("/{id}/attach", s.handleAttach)
		})

		r.Get("/events", s.handleEvents)
		r.Get("/runtime/status", s.handleRuntimeStatus)
		r.Get("/workdir", s.handleWorkdir)
	})

	return r
}
