package panel

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/internal/intents"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// handleOpen loads a workflow through the workspace provider.
func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Workspace.Open(r.Context(), chi.URLParam(r, "workflowID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSnapshot(w, http.StatusOK, st.Snapshot())
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "workflowID")
	if err := s.deps.Workspace.Close(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "workflow_id": id})
}

func (s *Server) handleAddNode(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body schema.NodeDocument
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	n, err := graph.NodeFromDocument(body)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := st.AddNode(r.Context(), n)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSnapshot(w, http.StatusCreated, snap)
}

func (s *Server) handleRemoveNode(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := st.RemoveNode(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSnapshot(w, http.StatusOK, snap)
}

// handleConnect joins two handles. An invalid connection answers 422 and
// leaves the graph unchanged.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body graph.Connection
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	snap, edge, err := st.Connect(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"edge": edge, "version": snap.Version})
}

func (s *Server) handleRemoveEdge(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := st.RemoveEdge(r.Context(), chi.URLParam(r, "edgeID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeSnapshot(w, http.StatusOK, snap)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		NodeID string `json:"node_id"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	snap, err := st.Select(r.Context(), body.NodeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeSnapshot(w, http.StatusOK, snap)
}

func (s *Server) handleClearSelection(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	snap, err := st.ClearSelection(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeSnapshot(w, http.StatusOK, snap)
}

// handleIntent emits a card menu intent for a node.
func (s *Server) handleIntent(w http.ResponseWriter, r *http.Request) {
	if s.deps.Intents == nil {
		writeError(w, schema.NewError(schema.ErrCodeExecution, "no intent dispatcher configured"))
		return
	}
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	if _, ok := st.NodeByID(nodeID); !ok {
		writeError(w, schema.NewErrorf(schema.ErrCodeNotFound, "node %q not found", nodeID).WithNode(nodeID))
		return
	}
	var body struct {
		Intent string `json:"intent"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}
	params, err := s.deps.Intents.Dispatch(r.Context(), intents.Request{
		Intent:     body.Intent,
		WorkflowID: st.WorkflowID(),
		NodeID:     nodeID,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"intent": body.Intent, "params": params})
}
