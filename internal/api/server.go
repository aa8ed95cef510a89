// Package api serves registered workflows, the action registry and the
// event bus over HTTP: a JSON API, a Server-Sent Events stream and the
// trigger manager's webhooks.
package api

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/rendis/gaiaflow/internal/actions"
	"github.com/rendis/gaiaflow/internal/streaming"
	"github.com/rendis/gaiaflow/internal/triggers"
)

// Deps holds the dependencies for the API server.
type Deps struct {
	Triggers *triggers.Manager
	Registry *actions.Registry
	Bus      streaming.EventBus // optional; disables the event routes when nil
	Logger   *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	deps Deps
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{deps: deps}
}

// Handler returns the HTTP handler for every route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/workflows", s.handleListWorkflows)
	mux.HandleFunc("GET /api/workflows/{id}", s.handleGetWorkflow)
	mux.HandleFunc("GET /api/workflows/{id}/graph", s.handleWorkflowGraph)
	mux.HandleFunc("POST /api/workflows/{id}/run", s.handleRunWorkflow)
	mux.HandleFunc("GET /api/actions", s.handleListActions)

	if s.deps.Bus != nil {
		mux.HandleFunc("GET /api/events", s.handleEventHistory)
		mux.HandleFunc("POST /api/events/{name}", s.handleEmitEvent)
		mux.HandleFunc("GET /sse/events", s.handleSSE)
	}

	// Webhooks keep their own method and path handling.
	mux.Handle(triggers.WebhookPrefix, s.deps.Triggers.WebhookHandler())

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"workflows": len(s.deps.Triggers.Workflows()),
	})
}
