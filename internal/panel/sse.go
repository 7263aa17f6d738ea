package panel

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/internal/streaming"
)

// handleSSE streams the events of one open canvas. The first message is the
// current snapshot; state events carry the snapshot they announce.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	st, err := s.store(r)
	if err != nil {
		writeError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ch, cancel, err := st.Subscribe(r.Context())
	if err != nil {
		s.deps.Logger.ErrorContext(r.Context(), "SSE subscribe failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	snap := st.Snapshot()
	writeEvent(w, streaming.CanvasEvent{
		WorkflowID: snap.WorkflowID,
		EventType:  "snapshot",
		Version:    snap.Version,
		Payload:    snap,
	})
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if event.Version != 0 && event.Version <= snap.Version {
				continue
			}
			writeEvent(w, event)
			flusher.Flush()
		}
	}
}

// writeEvent writes one SSE message, replacing snapshot payloads by their
// wire form.
func writeEvent(w http.ResponseWriter, event streaming.CanvasEvent) {
	if snap, ok := event.Payload.(*canvas.Snapshot); ok {
		event.Payload = snap.View()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
}
