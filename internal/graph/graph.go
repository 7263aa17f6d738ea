package graph

import (
	"maps"
	"slices"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// Edge is a directed connection from a source handle to a target handle on
// two distinct nodes.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"source_handle"`
	Target       string `json:"target"`
	TargetHandle string `json:"target_handle"`
}

// Graph is an immutable workflow graph: an ordered set of nodes and a set of
// edges whose endpoints always reference nodes in the graph. Every mutation
// returns a new Graph and leaves the receiver untouched.
type Graph struct {
	nodes []*Node
	index map[string]int
	edges []Edge
}

// New builds a graph from nodes in order.
func New(nodes ...*Node) (*Graph, error) {
	g := Empty()
	for _, n := range nodes {
		next, err := g.WithNode(n)
		if err != nil {
			return nil, err
		}
		g = next
	}
	return g, nil
}

// Empty returns a graph with no nodes.
func Empty() *Graph {
	return &Graph{index: map[string]int{}}
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	return slices.Clone(g.nodes)
}

// Node looks up a node by id.
func (g *Graph) Node(id string) (*Node, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	return g.nodes[i], true
}

// Trigger returns the graph's trigger node, if any.
func (g *Graph) Trigger() (*Node, bool) {
	for _, n := range g.nodes {
		if n.Kind == schema.NodeKindTrigger {
			return n, true
		}
	}
	return nil, false
}

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// Edge looks up an edge by id.
func (g *Graph) Edge(id string) (Edge, bool) {
	for _, e := range g.edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

// Outgoing returns the edges leaving a node.
func (g *Graph) Outgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Incoming returns the edges entering a node.
func (g *Graph) Incoming(nodeID string) []Edge {
	var in []Edge
	for _, e := range g.edges {
		if e.Target == nodeID {
			in = append(in, e)
		}
	}
	return in
}

// WithNode returns a graph with n appended. Duplicate ids and a second
// trigger are rejected.
func (g *Graph) WithNode(n *Node) (*Graph, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	if _, exists := g.index[n.ID]; exists {
		return nil, schema.NewErrorf(schema.ErrCodeConflict, "duplicate node id %q", n.ID).WithNode(n.ID)
	}
	if n.Kind == schema.NodeKindTrigger {
		if t, ok := g.Trigger(); ok {
			return nil, schema.NewErrorf(schema.ErrCodeConflict, "graph already has trigger %q", t.ID).WithNode(n.ID)
		}
	}

	next := g.clone()
	next.index[n.ID] = len(next.nodes)
	next.nodes = append(next.nodes, n)
	return next, nil
}

// ReplaceNode returns a graph where the node with n.ID is replaced by n.
// The kind may not change since the node's handles, and so its edges,
// depend on it.
func (g *Graph) ReplaceNode(n *Node) (*Graph, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	i, ok := g.index[n.ID]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "node %q not found", n.ID).WithNode(n.ID)
	}
	if g.nodes[i].Kind != n.Kind {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"cannot change node kind from %s to %s", g.nodes[i].Kind, n.Kind).WithNode(n.ID)
	}

	next := g.clone()
	next.nodes[i] = n
	return next, nil
}

// CheckEntrypoint verifies that the trigger's entrypoint, when set, names an
// action node of g.
func (g *Graph) CheckEntrypoint() error {
	t, ok := g.Trigger()
	if !ok || t.Trigger.EntrypointID == "" {
		return nil
	}
	ep, ok := g.Node(t.Trigger.EntrypointID)
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound,
			"entrypoint references non-existent node %q", t.Trigger.EntrypointID).WithNode(t.ID)
	}
	if ep.Kind != schema.NodeKindAction {
		return schema.NewErrorf(schema.ErrCodeValidation,
			"entrypoint %q is not an action node", ep.ID).WithNode(t.ID)
	}
	return nil
}

// WithoutNode returns a graph without the node and without every edge
// touching it. A trigger whose entrypoint was the node loses its entrypoint.
func (g *Graph) WithoutNode(id string) (*Graph, error) {
	if _, ok := g.index[id]; !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "node %q not found", id).WithNode(id)
	}

	next := &Graph{
		nodes: make([]*Node, 0, len(g.nodes)-1),
		index: make(map[string]int, len(g.nodes)-1),
	}
	for _, n := range g.nodes {
		if n.ID == id {
			continue
		}
		if n.Kind == schema.NodeKindTrigger && n.Trigger.EntrypointID == id {
			n = n.Clone()
			n.Trigger.EntrypointID = ""
		}
		next.index[n.ID] = len(next.nodes)
		next.nodes = append(next.nodes, n)
	}
	for _, e := range g.edges {
		if e.Source != id && e.Target != id {
			next.edges = append(next.edges, e)
		}
	}
	return next, nil
}

// WithoutEdge returns a graph without the edge.
func (g *Graph) WithoutEdge(id string) (*Graph, error) {
	i := slices.IndexFunc(g.edges, func(e Edge) bool { return e.ID == id })
	if i < 0 {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "edge %q not found", id)
	}
	next := g.clone()
	next.edges = slices.Delete(next.edges, i, i+1)
	return next, nil
}

func (g *Graph) withEdge(e Edge) *Graph {
	next := g.clone()
	next.edges = append(next.edges, e)
	return next
}

func (g *Graph) clone() *Graph {
	return &Graph{
		nodes: slices.Clone(g.nodes),
		index: maps.Clone(g.index),
		edges: slices.Clone(g.edges),
	}
}
