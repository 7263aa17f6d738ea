package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowcanvas/internal/streaming"
)

// notificationMethod carries canvas changes as MCP log messages, which every
// client displays.
const notificationMethod = "notifications/message"

// EventNotifier delivers canvas events to a watching agent.
type EventNotifier interface {
	NotifyEvent(ctx context.Context, agentID string, ev streaming.CanvasEvent) error
}

// SessionNotifier sends events on the MCP session the agent registered with.
type SessionNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

func NewSessionNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *SessionNotifier {
	return &SessionNotifier{mcpServer: mcpServer, sessions: sessions}
}

// NotifyEvent is a no-op for agents without a live session. A session that
// vanished since registration is forgotten.
func (n *SessionNotifier) NotifyEvent(_ context.Context, agentID string, ev streaming.CanvasEvent) error {
	sessionID, ok := n.sessions.SessionFor(agentID)
	if !ok {
		return nil
	}
	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, notificationMethod, notificationParams(ev))
	if errors.Is(err, server.ErrSessionNotFound) {
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}

// notificationParams shapes ev as a logging message. Intents are raised to
// notice so that clients surface them.
func notificationParams(ev streaming.CanvasEvent) map[string]any {
	data := map[string]any{
		"workflow_id": ev.WorkflowID,
		"event_type":  ev.EventType,
		"version":     ev.Version,
	}
	if ev.NodeID != "" {
		data["node_id"] = ev.NodeID
	}
	level := "info"
	if strings.HasPrefix(ev.EventType, "intent.") {
		level = "notice"
		data["params"] = ev.Payload
	}
	return map[string]any{"level": level, "logger": "flowcanvas", "data": data}
}
