package schema

// Canvas event types published on every snapshot swap or emitted intent.
const (
	EventGraphLoaded      = "graph.loaded"
	EventGraphUnloaded    = "graph.unloaded"
	EventNodeAdded        = "node.added"
	EventNodeUpdated      = "node.updated"
	EventNodeRemoved      = "node.removed"
	EventEdgeAdded        = "edge.added"
	EventEdgeRemoved      = "edge.removed"
	EventSelectionChanged = "selection.changed"
	EventWorkflowUpdated  = "workflow.updated"

	EventIntentSearchEvents = "intent.search_events"
	EventIntentViewLogs     = "intent.view_logs"
)

// EventSearchParams is the query an event search intent carries to the
// event/log query service.
type EventSearchParams struct {
	WorkflowID    string   `json:"workflow_id"`
	ActionID      string   `json:"action_id,omitempty"`
	Limit         int      `json:"limit"`
	OrderBy       string   `json:"order_by"`
	WorkflowRunID string   `json:"workflow_run_id,omitempty"`
	Query         string   `json:"query,omitempty"`
	GroupBy       []string `json:"group_by,omitempty"`
	Agg           string   `json:"agg,omitempty"`
}

// DefaultEventSearchParams returns the search defaults used by the node menu.
func DefaultEventSearchParams(workflowID, actionID string) EventSearchParams {
	return EventSearchParams{
		WorkflowID: workflowID,
		ActionID:   actionID,
		Limit:      1000,
		OrderBy:    "published_at",
	}
}
