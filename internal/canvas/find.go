package canvas

import (
	"context"

	"github.com/rendis/flowcanvas/internal/expressions"
	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// NodeEnv is the data a node search query is evaluated against. The node's
// fields are available both at top level (for expr) and under "node" (for
// CEL); workflow-level values sit under "workflow".
func NodeEnv(n *graph.Node, snap *Snapshot) map[string]any {
	node := map[string]any{
		"id":         n.ID,
		"title":      n.Title,
		"type":       n.Type,
		"kind":       string(n.Kind),
		"status":     string(n.Status()),
		"events":     n.EventCount(),
		"configured": n.Kind == schema.NodeKindTrigger && n.Trigger.IsConfigured,
		"selected":   snap.Selection == n.ID,
		"incoming":   len(snap.Graph.Incoming(n.ID)),
		"outgoing":   len(snap.Graph.Outgoing(n.ID)),
	}

	schedules := 0
	webhook := ""
	if snap.Workflow != nil {
		schedules = len(snap.Workflow.Schedules)
		webhook = string(snap.Workflow.Webhook.Status)
	}
	workflow := map[string]any{
		"id":        snap.WorkflowID,
		"title":     snap.Title,
		"nodes":     snap.Graph.Len(),
		"edges":     len(snap.Graph.Edges()),
		"schedules": schedules,
		"webhook":   webhook,
	}

	env := make(map[string]any, len(node)+2)
	for k, v := range node {
		env[k] = v
	}
	env["node"] = node
	env["workflow"] = workflow
	return env
}

// Find returns the nodes of the current graph, in order, for which query
// evaluates to true on engine.
func (s *Store) Find(ctx context.Context, engine expressions.Engine, query string) ([]*graph.Node, error) {
	snap := s.current.Load()
	if err := requireLoaded(snap); err != nil {
		return nil, err
	}

	out := []*graph.Node{}
	for _, n := range snap.Graph.Nodes() {
		ok, err := expressions.EvaluateBool(ctx, engine, query, NodeEnv(n, snap))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, n)
		}
	}
	return out, nil
}
