package panel

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/internal/diagram"
	"github.com/rendis/flowcanvas/internal/expressions"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// Diagram formats accepted by the diagram endpoint.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatASCII   = "ascii"
	FormatMermaid = "mermaid"
	FormatPNG     = "png"
)

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	available, err := s.deps.Workspace.Available(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"open":      s.deps.Workspace.IDs(),
		"available": available,
	})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSnapshot(w, http.StatusOK, st.Snapshot())
}

func (s *Server) model(snap *canvas.Snapshot) *diagram.DiagramModel {
	return s.deps.Renderer.Build(snap.Title, snap.Graph, snap.Context())
}

// handleDiagram renders the canvas. format is one of json (the card model,
// the default), text, ascii, mermaid or png.
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	model := s.model(st.Snapshot())

	switch format := r.URL.Query().Get("format"); format {
	case "", FormatJSON:
		writeJSON(w, http.StatusOK, model)
	case FormatText:
		writeText(w, diagram.RenderASCII(model))
	case FormatASCII:
		writeText(w, diagram.RenderASCIIAuto(r.Context(), model, s.deps.MermaidBinDir))
	case FormatMermaid:
		writeText(w, diagram.RenderMermaid(model))
	case FormatPNG:
		img, err := diagram.RenderImage(r.Context(), model)
		if err != nil {
			writeError(w, schema.NewError(schema.ErrCodeExecution, "render image").WithCause(err))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		w.Write(img)
	default:
		writeError(w, schema.NewErrorf(schema.ErrCodeValidation, "unknown diagram format %q", format))
	}
}

func writeText(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap := st.Snapshot()
	nodeID := chi.URLParam(r, "nodeID")
	n, ok := st.NodeByID(nodeID)
	if !ok {
		writeError(w, schema.NewErrorf(schema.ErrCodeNotFound, "node %q not found", nodeID).WithNode(nodeID))
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Renderer.RenderNode(n, snap.Context()))
}

// handleFind evaluates the q query on every node with the engine named by
// the engine parameter (expr by default).
func (s *Server) handleFind(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	engine, err := expressions.ByName(r.URL.Query().Get("engine"), s.deps.Engines...)
	if err != nil {
		writeError(w, err)
		return
	}
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, schema.NewError(schema.ErrCodeValidation, "q is required"))
		return
	}
	nodes, err := st.Find(r.Context(), engine, query)
	if err != nil {
		writeError(w, err)
		return
	}
	docs := make([]schema.NodeDocument, 0, len(nodes))
	for _, n := range nodes {
		docs = append(docs, n.Document())
	}
	writeJSON(w, http.StatusOK, map[string]any{"engine": engine.Name(), "nodes": docs})
}
