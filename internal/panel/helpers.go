package panel

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes err as a JSON CanvasError with the status its code maps to.
func writeError(w http.ResponseWriter, err error) {
	var ce *schema.CanvasError
	if !errors.As(err, &ce) {
		ce = schema.NewError(schema.ErrCodeExecution, err.Error())
	}
	writeJSON(w, statusFor(ce.Code), map[string]any{"error": ce})
}

// statusFor maps a CanvasError code to an HTTP status.
func statusFor(code string) int {
	switch code {
	case schema.ErrCodeNotFound:
		return http.StatusNotFound
	case schema.ErrCodeConflict:
		return http.StatusConflict
	case schema.ErrCodeInvalidConnection, schema.ErrCodeValidation, schema.ErrCodeCycleDetected:
		return http.StatusUnprocessableEntity
	case schema.ErrCodeDecode:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody decodes a JSON request body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return schema.NewError(schema.ErrCodeDecode, "invalid JSON body").WithCause(err)
	}
	return nil
}

// store returns the open canvas named by the workflowID route parameter.
func (s *Server) store(r *http.Request) (*canvas.Store, error) {
	id := chi.URLParam(r, "workflowID")
	st, ok := s.deps.Workspace.Get(id)
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q is not open", id)
	}
	return st, nil
}

// writeSnapshot writes the wire form of snap.
func writeSnapshot(w http.ResponseWriter, status int, snap *canvas.Snapshot) {
	writeJSON(w, status, snap.View())
}
