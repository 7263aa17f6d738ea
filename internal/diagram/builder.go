package diagram

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/internal/icons"
	"github.com/rendis/flowcanvas/internal/schedules"
	"github.com/rendis/flowcanvas/internal/status"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// Menu labels shared by every card.
const (
	MenuSearchEvents = "Search events"
	MenuViewLogs     = "View logs"

	TriggerSubtitle = "Workflow triggers"
)

// Renderer turns graph nodes into cards.
type Renderer struct {
	icons     *icons.Registry
	schedules *schedules.Describer
	now       func() time.Time
	intents   bool
	logger    *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock sets the clock used to compute next schedule runs.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) { r.now = now }
}

// WithIntents enables the card menu items. Leave it off when no intent
// dispatcher is wired; the items then render disabled.
func WithIntents(enabled bool) Option {
	return func(r *Renderer) { r.intents = enabled }
}

// WithLogger sets the logger used to report degraded cards.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// NewRenderer creates a Renderer resolving icons through reg.
func NewRenderer(reg *icons.Registry, opts ...Option) *Renderer {
	r := &Renderer{
		icons:     reg,
		schedules: schedules.NewDescriber(),
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RenderNode builds the card of a single node. It returns nil when there is
// no workflow context to render against.
func (r *Renderer) RenderNode(n *graph.Node, wf *WorkflowContext) *Card {
	if wf == nil || n == nil {
		return nil
	}

	card := &Card{
		ID:       n.ID,
		Kind:     n.Kind,
		Title:    n.Title,
		Subtitle: n.Type,
		Icon:     r.icons.Resolve(n.Type),
		Selected: wf.SelectedID != "" && wf.SelectedID == n.ID,
		Status:   status.Project(n),
		Menu:     r.menu(),
		Handles:  n.Handles(),
	}

	switch n.Kind {
	case schema.NodeKindAction:
		card.Events = n.Action.NumberOfEvents
	case schema.NodeKindTrigger:
		card.Subtitle = TriggerSubtitle
		card.Trigger = r.triggerSection(n, wf)
	}
	return card
}

func (r *Renderer) menu() []MenuItem {
	return []MenuItem{
		{Intent: schema.EventIntentSearchEvents, Label: MenuSearchEvents, Icon: icons.GlyphSearch, Disabled: !r.intents},
		{Intent: schema.EventIntentViewLogs, Label: MenuViewLogs, Icon: icons.GlyphEye, Disabled: !r.intents},
	}
}

func (r *Renderer) triggerSection(n *graph.Node, wf *WorkflowContext) *TriggerSection {
	var webhook schema.Webhook
	var scheds []schema.Schedule
	if wf.Loaded && wf.Workflow != nil {
		webhook, scheds = wf.Workflow.Webhook, wf.Workflow.Schedules
	}

	return &TriggerSection{
		Webhook: WebhookBadge{
			Status: status.ProjectWebhook(webhook),
			Method: webhook.Method,
			URL:    webhook.URL,
		},
		Schedules:  r.schedules.Describe(scheds, r.now()),
		Configured: status.ProjectConfigured(n.Trigger.IsConfigured),
	}
}

// Build renders every node of g into a DiagramModel. Nodes are rendered
// independently: a node that fails to render becomes a degraded card and its
// siblings are unaffected. A nil context yields a model without cards.
func (r *Renderer) Build(title string, g *graph.Graph, wf *WorkflowContext) *DiagramModel {
	model := &DiagramModel{Title: title, Nodes: []*Card{}, Edges: []Edge{}, Levels: [][]string{}}
	if g == nil || wf == nil {
		return model
	}

	for _, n := range g.Nodes() {
		model.Nodes = append(model.Nodes, r.safeRender(n, wf))
	}
	for _, e := range g.Edges() {
		model.Edges = append(model.Edges, Edge{ID: e.ID, From: e.Source, To: e.Target})
	}
	model.Levels = g.Levels()
	return model
}

func (r *Renderer) safeRender(n *graph.Node, wf *WorkflowContext) (card *Card) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("node render failed",
				slog.String("workflow_id", wf.WorkflowID),
				slog.String("node_id", n.ID),
				slog.Any("panic", rec),
			)
			card = &Card{
				ID:       n.ID,
				Kind:     n.Kind,
				Title:    n.Title,
				Icon:     r.icons.Fallback(),
				Menu:     []MenuItem{},
				Handles:  []graph.Handle{},
				Degraded: fmt.Sprint(rec),
			}
		}
	}()
	return r.RenderNode(n, wf)
}
