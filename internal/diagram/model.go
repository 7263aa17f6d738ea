package diagram

import (
	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/internal/icons"
	"github.com/rendis/flowcanvas/internal/schedules"
	"github.com/rendis/flowcanvas/internal/status"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string     `json:"title"`
	Nodes  []*Card    `json:"nodes"`
	Edges  []Edge     `json:"edges"`
	Levels [][]string `json:"levels"`
}

// Card is the renderer-neutral description of one node as drawn on the canvas.
type Card struct {
	ID       string            `json:"id"`
	Kind     schema.NodeKind   `json:"kind"`
	Title    string            `json:"title"`
	Subtitle string            `json:"subtitle"`
	Icon     icons.Glyph       `json:"icon"`
	Selected bool              `json:"selected"`
	Status   status.Projection `json:"status"`
	Events   int               `json:"events"`
	Menu     []MenuItem        `json:"menu"`
	Handles  []graph.Handle    `json:"handles"`

	// Trigger is set for trigger cards only.
	Trigger *TriggerSection `json:"trigger,omitempty"`

	// Degraded carries the failure message of a card that could not be
	// rendered in full. Such a card keeps only its identity.
	Degraded string `json:"degraded,omitempty"`
}

// TriggerSection holds what only a trigger card shows.
type TriggerSection struct {
	Webhook    WebhookBadge      `json:"webhook"`
	Schedules  schedules.Table   `json:"schedules"`
	Configured status.Projection `json:"configured"`
}

// WebhookBadge is the webhook row of a trigger card.
type WebhookBadge struct {
	Status status.Projection `json:"status"`
	Method string            `json:"method,omitempty"`
	URL    string            `json:"url,omitempty"`
}

// MenuItem is an entry of a card's dropdown menu.
type MenuItem struct {
	Intent   string      `json:"intent"`
	Label    string      `json:"label"`
	Icon     icons.Glyph `json:"icon"`
	Disabled bool        `json:"disabled"`
}

// Edge represents a connection between two cards.
type Edge struct {
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// WorkflowContext is the workflow-level state a card is rendered against.
// Loaded is false while the workflow aggregate (webhook, schedules) has not
// arrived yet. Action event counts belong to the nodes and render as held,
// 0 until a count arrives.
type WorkflowContext struct {
	WorkflowID string
	Workflow   *schema.Workflow
	Loaded     bool
	SelectedID string
}

// Card looks up a card by node id.
func (m *DiagramModel) Card(id string) *Card {
	for _, c := range m.Nodes {
		if c.ID == id {
			return c
		}
	}
	return nil
}
