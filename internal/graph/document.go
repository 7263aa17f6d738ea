package graph

import (
	"fmt"
	"slices"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// FromDocument builds a graph from its wire form. Workflow-level webhook and
// schedules, when present, are copied onto the trigger node. Every edge goes
// through connection validation.
func FromDocument(doc *schema.GraphDocument) (*Graph, error) {
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "graph document is nil")
	}

	g := Empty()
	for i, nd := range doc.Nodes {
		n, err := nodeFromDocument(nd, doc.Workflow)
		if err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
		if g, err = g.WithNode(n); err != nil {
			return nil, fmt.Errorf("nodes[%d]: %w", i, err)
		}
	}

	for i, ed := range doc.Edges {
		var err error
		g, _, err = g.Connect(Connection{
			ID:           ed.ID,
			Source:       ed.Source,
			SourceHandle: ed.SourceHandle,
			Target:       ed.Target,
			TargetHandle: ed.TargetHandle,
		})
		if err != nil {
			return nil, fmt.Errorf("edges[%d]: %w", i, err)
		}
	}
	return g, nil
}

// Document returns the wire form of the nodes and edges. ID, title and
// workflow aggregates are left for the caller to fill in.
func (g *Graph) Document() schema.GraphDocument {
	doc := schema.GraphDocument{
		Nodes: make([]schema.NodeDocument, 0, len(g.nodes)),
	}
	for _, n := range g.nodes {
		doc.Nodes = append(doc.Nodes, n.Document())
	}
	for _, e := range g.edges {
		doc.Edges = append(doc.Edges, schema.EdgeDocument{
			ID:           e.ID,
			Source:       e.Source,
			SourceHandle: e.SourceHandle,
			Target:       e.Target,
			TargetHandle: e.TargetHandle,
		})
	}
	return doc
}

// NodeFromDocument builds a single node from its wire form.
func NodeFromDocument(nd schema.NodeDocument) (*Node, error) {
	return nodeFromDocument(nd, nil)
}

func nodeFromDocument(nd schema.NodeDocument, wf *schema.Workflow) (*Node, error) {
	switch nd.Kind {
	case schema.NodeKindTrigger:
		data := TriggerData{
			Status:       nd.Status,
			IsConfigured: nd.IsConfigured,
			EntrypointID: nd.EntrypointID,
		}
		if wf != nil {
			data.Webhook = wf.Webhook
			data.Schedules = slices.Clone(wf.Schedules)
		}
		return NewTrigger(nd.ID, nd.Type, nd.Title, data)
	case schema.NodeKindAction:
		return NewAction(nd.ID, nd.Type, nd.Title, ActionData{
			Status:         nd.Status,
			NumberOfEvents: nd.NumberOfEvents,
		})
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown node kind %q", nd.Kind).WithNode(nd.ID)
	}
}
