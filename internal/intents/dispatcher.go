// Package intents carries the "Search events" and "View logs" menu actions of
// a card to the event/log query service.
package intents

import (
	"context"
	"log/slog"

	"github.com/rendis/flowcanvas/internal/logging"
	"github.com/rendis/flowcanvas/internal/streaming"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// Request is an intent emitted from a node's menu.
type Request struct {
	Intent     string `json:"intent"`
	WorkflowID string `json:"workflow_id"`
	NodeID     string `json:"node_id"`
}

// Dispatcher delivers intents.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (schema.EventSearchParams, error)
}

// Known reports whether name is an intent a card can emit.
func Known(name string) bool {
	return name == schema.EventIntentSearchEvents || name == schema.EventIntentViewLogs
}

// Params builds the search parameters an intent carries.
func Params(req Request) schema.EventSearchParams {
	return schema.DefaultEventSearchParams(req.WorkflowID, req.NodeID)
}

// HubDispatcher publishes intents on an event hub, where the query service
// (or any other subscriber) picks them up.
type HubDispatcher struct {
	hub    streaming.EventHub
	logger *slog.Logger
}

// NewHubDispatcher creates a dispatcher publishing on hub.
func NewHubDispatcher(hub streaming.EventHub, logger *slog.Logger) *HubDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &HubDispatcher{hub: hub, logger: logger}
}

// Dispatch publishes req and returns the parameters it carried.
func (d *HubDispatcher) Dispatch(ctx context.Context, req Request) (schema.EventSearchParams, error) {
	if !Known(req.Intent) {
		return schema.EventSearchParams{}, schema.NewErrorf(schema.ErrCodeValidation, "unknown intent %q", req.Intent)
	}
	if req.WorkflowID == "" || req.NodeID == "" {
		return schema.EventSearchParams{}, schema.NewError(schema.ErrCodeValidation, "intent requires workflow and node ids")
	}

	params := Params(req)
	ctx = logging.WithNodeID(logging.WithWorkflowID(ctx, req.WorkflowID), req.NodeID)
	err := d.hub.Publish(ctx, streaming.CanvasEvent{
		WorkflowID: req.WorkflowID,
		NodeID:     req.NodeID,
		EventType:  req.Intent,
		Payload:    params,
	})
	if err != nil {
		return schema.EventSearchParams{}, schema.NewErrorf(schema.ErrCodeProvider, "dispatch %s", req.Intent).
			WithNode(req.NodeID).WithCause(err)
	}
	d.logger.InfoContext(ctx, "intent dispatched", slog.String("intent", req.Intent))
	return params, nil
}

var _ Dispatcher = (*HubDispatcher)(nil)
