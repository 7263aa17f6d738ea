package mcp

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/internal/logging"
	"github.com/rendis/flowcanvas/internal/streaming"
)

// watchSet tracks which agents watch which workflow, so that a second
// canvas.watch call does not start a second forwarder.
type watchSet struct {
	mu      sync.Mutex
	cancels map[[2]string]context.CancelFunc
}

func newWatchSet() *watchSet {
	return &watchSet{cancels: make(map[[2]string]context.CancelFunc)}
}

func (w *watchSet) add(workflowID, agentID string, cancel context.CancelFunc) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := [2]string{workflowID, agentID}
	if _, ok := w.cancels[key]; ok {
		return false
	}
	w.cancels[key] = cancel
	return true
}

func (w *watchSet) remove(workflowID, agentID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := [2]string{workflowID, agentID}
	if cancel, ok := w.cancels[key]; ok {
		cancel()
		delete(w.cancels, key)
	}
}

func (w *watchSet) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.cancels)
}

// handleWatch forwards every event of a workflow to the calling agent's
// session until the session goes away.
func (s *CanvasServer) handleWatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return mcp.NewToolResultError("agent_id is required"), nil
	}
	st, res := s.openStore(req)
	if res != nil {
		return res, nil
	}
	if !s.captureSession(ctx, agentID) {
		return mcp.NewToolResultError("canvas.watch needs a client session"), nil
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	if !s.watches.add(st.WorkflowID(), agentID, cancel) {
		cancel()
		return marshalResult(map[string]any{"ok": true, "workflow_id": st.WorkflowID(), "already_watching": true})
	}
	ch, unsub, err := st.Subscribe(watchCtx)
	if err != nil {
		s.watches.remove(st.WorkflowID(), agentID)
		return toolError("watch failed", err), nil
	}
	go s.forward(watchCtx, st, agentID, ch, unsub)

	return marshalResult(map[string]any{"ok": true, "workflow_id": st.WorkflowID(), "version": st.Snapshot().Version})
}

func (s *CanvasServer) forward(ctx context.Context, st *canvas.Store, agentID string, ch <-chan streaming.CanvasEvent, unsub func()) {
	defer s.watches.remove(st.WorkflowID(), agentID)
	defer unsub()
	ctx = logging.WithWorkflowID(ctx, st.WorkflowID())

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if _, connected := s.sessions.SessionFor(agentID); !connected {
				return
			}
			if err := s.notifier.NotifyEvent(ctx, agentID, ev); err != nil {
				s.logger.WarnContext(ctx, "watch notification failed",
					slog.String("agent_id", agentID), slog.String("error", err.Error()))
			}
		}
	}
}
