package streaming

import "context"

// CanvasEvent is published whenever shared canvas state changes or a node
// emits an intent. For state changes Payload carries the new snapshot.
type CanvasEvent struct {
	WorkflowID string `json:"workflow_id"`
	NodeID     string `json:"node_id,omitempty"`
	EventType  string `json:"event_type"`
	Version    uint64 `json:"version"`
	Payload    any    `json:"payload,omitempty"`
}

// EventFilter specifies which events a subscriber wants to receive.
// A NodeID filter still lets through events that carry no node id, since
// those change the whole graph.
type EventFilter struct {
	WorkflowID string   `json:"workflow_id,omitempty"`
	NodeID     string   `json:"node_id,omitempty"`
	EventTypes []string `json:"event_types,omitempty"`
}

// EventHub provides pub/sub for canvas events.
type EventHub interface {
	Publish(ctx context.Context, event CanvasEvent) error
	Subscribe(ctx context.Context, filter EventFilter) (<-chan CanvasEvent, func(), error)
}
