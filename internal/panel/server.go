// Package panel serves the canvas over HTTP: snapshots, rendered diagrams,
// node cards, graph edits, intents and a server-sent event stream.
package panel

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/internal/diagram"
	"github.com/rendis/flowcanvas/internal/expressions"
	"github.com/rendis/flowcanvas/internal/intents"
	"github.com/rendis/flowcanvas/internal/logging"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// Deps holds the dependencies of the panel server.
type Deps struct {
	Workspace *canvas.Workspace
	Renderer  *diagram.Renderer
	Intents   intents.Dispatcher
	Engines   []expressions.Engine
	// MermaidBinDir is searched for the mermaid-ascii binary used by the
	// "ascii" diagram format.
	MermaidBinDir string
	Logger        *slog.Logger
}

// Server serves the panel API.
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

// Handler returns the HTTP handler for the panel routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "service": "flowcanvas"})
	})

	r.Route("/api/workflows", func(r chi.Router) {
		r.Get("/", s.handleListWorkflows)
		r.Route("/{workflowID}", func(r chi.Router) {
			r.Post("/open", s.handleOpen)
			r.Delete("/", s.handleClose)
			r.Get("/", s.handleSnapshot)
			r.Get("/diagram", s.handleDiagram)
			r.Get("/find", s.handleFind)

			r.Post("/nodes", s.handleAddNode)
			r.Get("/nodes/{nodeID}", s.handleCard)
			r.Delete("/nodes/{nodeID}", s.handleRemoveNode)
			r.Post("/nodes/{nodeID}/intents", s.handleIntent)

			r.Post("/edges", s.handleConnect)
			r.Delete("/edges/{edgeID}", s.handleRemoveEdge)

			r.Put("/selection", s.handleSelect)
			r.Delete("/selection", s.handleClearSelection)
		})
	})

	r.Get("/sse/workflows/{workflowID}", s.handleSSE)
	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.deps.Logger.DebugContext(r.Context(), "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	})
}
