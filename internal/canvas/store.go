package canvas

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/internal/logging"
	"github.com/rendis/flowcanvas/internal/streaming"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// Coordinator is the read and subscription side of a canvas. Cards and other
// consumers receive it explicitly instead of reaching for shared state.
type Coordinator interface {
	Snapshot() *Snapshot
	NodeByID(id string) (*graph.Node, bool)
	Selection() (*graph.Node, bool)
	RegisterWorkflow(ctx context.Context, wf *schema.Workflow) (*Snapshot, error)
	Subscribe(ctx context.Context, eventTypes ...string) (<-chan streaming.CanvasEvent, func(), error)
}

// Store holds the canvas of one workflow. Readers load the current snapshot
// without locking. Writers serialize on mu, derive the next snapshot from the
// current one, swap it in and publish it, so every subscriber observes the
// same generation.
type Store struct {
	workflowID string
	hub        streaming.EventHub
	logger     *slog.Logger

	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	nextGen uint64
}

// NewStore creates an empty store for workflowID. hub may be nil, in which
// case nothing is published and Subscribe fails.
func NewStore(workflowID string, hub streaming.EventHub, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		workflowID: workflowID,
		hub:        hub,
		logger:     logger.With(slog.String("component", "canvas")),
	}
	s.current.Store(&Snapshot{WorkflowID: workflowID})
	return s
}

// WorkflowID returns the id of the workflow this store holds.
func (s *Store) WorkflowID() string { return s.workflowID }

// Snapshot returns the current snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.current.Load()
}

// NodeByID returns a node of the current graph.
func (s *Store) NodeByID(id string) (*graph.Node, bool) {
	snap := s.current.Load()
	if !snap.Loaded() {
		return nil, false
	}
	return snap.Graph.Node(id)
}

// Selection returns the selected node, if any.
func (s *Store) Selection() (*graph.Node, bool) {
	snap := s.current.Load()
	if !snap.Loaded() || snap.Selection == "" {
		return nil, false
	}
	return snap.Graph.Node(snap.Selection)
}

// Subscribe streams the events of this workflow. An empty eventTypes
// subscribes to everything. Each event's payload is the *Snapshot it
// announces.
func (s *Store) Subscribe(ctx context.Context, eventTypes ...string) (<-chan streaming.CanvasEvent, func(), error) {
	if s.hub == nil {
		return nil, nil, schema.NewError(schema.ErrCodeExecution, "canvas has no event hub")
	}
	return s.hub.Subscribe(ctx, streaming.EventFilter{WorkflowID: s.workflowID, EventTypes: eventTypes})
}

// Load replaces the canvas with the graph of doc. A document naming another
// workflow is rejected.
func (s *Store) Load(ctx context.Context, doc *schema.GraphDocument) (*Snapshot, error) {
	if doc == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "graph document is nil")
	}
	if doc.ID != "" && doc.ID != s.workflowID {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"document %q loaded into canvas of workflow %q", doc.ID, s.workflowID)
	}
	g, err := graph.FromDocument(doc)
	if err != nil {
		return nil, err
	}

	return s.mutate(ctx, schema.EventGraphLoaded, "", func(cur *Snapshot) (*Snapshot, error) {
		next := cur.next()
		next.Title = doc.Title
		next.Graph = g
		next.Workflow = cloneWorkflow(doc.Workflow)
		next.Selection = ""
		next.generations = make(map[string]uint64, g.Len())
		for _, n := range g.Nodes() {
			next.generations[n.ID] = s.generation()
		}
		return next, nil
	})
}

// Unload drops the graph. Unloading an empty canvas is a no-op.
func (s *Store) Unload(ctx context.Context) (*Snapshot, error) {
	return s.mutate(ctx, schema.EventGraphUnloaded, "", func(cur *Snapshot) (*Snapshot, error) {
		if !cur.Loaded() {
			return nil, nil
		}
		next := cur.next()
		next.Title = ""
		next.Graph = nil
		next.Workflow = nil
		next.Selection = ""
		next.generations = nil
		return next, nil
	})
}

// AddNode inserts a node. A trigger's entrypoint must already be an action
// of the graph.
func (s *Store) AddNode(ctx context.Context, n *graph.Node) (*Snapshot, error) {
	if n == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "node is nil")
	}
	return s.mutate(ctx, schema.EventNodeAdded, n.ID, func(cur *Snapshot) (*Snapshot, error) {
		if err := requireLoaded(cur); err != nil {
			return nil, err
		}
		g, err := cur.Graph.WithNode(n)
		if err != nil {
			return nil, err
		}
		if n.Kind == schema.NodeKindTrigger {
			if err := g.CheckEntrypoint(); err != nil {
				return nil, err
			}
		}
		next := cur.next()
		next.Graph = g
		next.generations = cur.withGeneration(n.ID, s.generation())
		return next, nil
	})
}

// UpdateNode applies fn to a copy of the node and swaps the copy in. fn may
// not change the node's id or kind.
func (s *Store) UpdateNode(ctx context.Context, id string, fn func(n *graph.Node) error) (*Snapshot, error) {
	return s.mutate(ctx, schema.EventNodeUpdated, id, func(cur *Snapshot) (*Snapshot, error) {
		if err := requireLoaded(cur); err != nil {
			return nil, err
		}
		n, ok := cur.Graph.Node(id)
		if !ok {
			return nil, nodeNotFound(id)
		}
		c := n.Clone()
		if err := fn(c); err != nil {
			return nil, err
		}
		if c.ID != id {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "node id cannot change from %q to %q", id, c.ID).WithNode(id)
		}
		g, err := cur.Graph.ReplaceNode(c)
		if err != nil {
			return nil, err
		}
		if c.Kind == schema.NodeKindTrigger {
			if err := g.CheckEntrypoint(); err != nil {
				return nil, err
			}
		}
		next := cur.next()
		next.Graph = g
		return next, nil
	})
}

// RemoveNode deletes a node and its edges. Removing the selected node
// clears the selection, and removing the entrypoint clears the trigger's
// entrypoint.
func (s *Store) RemoveNode(ctx context.Context, id string) (*Snapshot, error) {
	return s.mutate(ctx, schema.EventNodeRemoved, id, func(cur *Snapshot) (*Snapshot, error) {
		if err := requireLoaded(cur); err != nil {
			return nil, err
		}
		g, err := cur.Graph.WithoutNode(id)
		if err != nil {
			return nil, err
		}
		next := cur.next()
		next.Graph = g
		next.generations = cur.withoutGeneration(id)
		if next.Selection == id {
			next.Selection = ""
		}
		return next, nil
	})
}

// Connect validates and adds an edge. A rejected connection leaves the
// canvas unchanged.
func (s *Store) Connect(ctx context.Context, c graph.Connection) (*Snapshot, graph.Edge, error) {
	var edge graph.Edge
	snap, err := s.mutate(ctx, schema.EventEdgeAdded, "", func(cur *Snapshot) (*Snapshot, error) {
		if err := requireLoaded(cur); err != nil {
			return nil, err
		}
		g, e, err := cur.Graph.Connect(c)
		if err != nil {
			return nil, err
		}
		edge = e
		next := cur.next()
		next.Graph = g
		return next, nil
	})
	if err != nil {
		return nil, graph.Edge{}, err
	}
	return snap, edge, nil
}

// RemoveEdge deletes an edge.
func (s *Store) RemoveEdge(ctx context.Context, id string) (*Snapshot, error) {
	return s.mutate(ctx, schema.EventEdgeRemoved, "", func(cur *Snapshot) (*Snapshot, error) {
		if err := requireLoaded(cur); err != nil {
			return nil, err
		}
		g, err := cur.Graph.WithoutEdge(id)
		if err != nil {
			return nil, err
		}
		next := cur.next()
		next.Graph = g
		return next, nil
	})
}

// Select marks a node as selected. Re-selecting the selected node is a no-op.
func (s *Store) Select(ctx context.Context, id string) (*Snapshot, error) {
	return s.mutate(ctx, schema.EventSelectionChanged, id, func(cur *Snapshot) (*Snapshot, error) {
		if err := requireLoaded(cur); err != nil {
			return nil, err
		}
		if _, ok := cur.Graph.Node(id); !ok {
			return nil, nodeNotFound(id)
		}
		if cur.Selection == id {
			return nil, nil
		}
		next := cur.next()
		next.Selection = id
		return next, nil
	})
}

// ClearSelection deselects whatever is selected.
func (s *Store) ClearSelection(ctx context.Context) (*Snapshot, error) {
	return s.mutate(ctx, schema.EventSelectionChanged, "", func(cur *Snapshot) (*Snapshot, error) {
		if cur.Selection == "" {
			return nil, nil
		}
		next := cur.next()
		next.Selection = ""
		return next, nil
	})
}

// RegisterWorkflow installs the workflow aggregates (webhook, schedules) the
// trigger card displays. The trigger node's own copy is updated too so the
// snapshot's document stays consistent.
func (s *Store) RegisterWorkflow(ctx context.Context, wf *schema.Workflow) (*Snapshot, error) {
	if wf == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "workflow is nil")
	}
	wf = cloneWorkflow(wf)
	return s.mutate(ctx, schema.EventWorkflowUpdated, "", func(cur *Snapshot) (*Snapshot, error) {
		if err := requireLoaded(cur); err != nil {
			return nil, err
		}
		g := cur.Graph
		if t, ok := g.Trigger(); ok {
			c := t.Clone()
			c.Trigger.Webhook = wf.Webhook
			c.Trigger.Schedules = slices.Clone(wf.Schedules)
			var err error
			if g, err = g.ReplaceNode(c); err != nil {
				return nil, err
			}
		}
		next := cur.next()
		next.Graph = g
		next.Workflow = wf
		return next, nil
	})
}

// mutate runs fn against the current snapshot under the writer lock and
// commits its result. fn returning a nil snapshot and nil error means
// nothing changed; the current snapshot is returned and nothing published.
func (s *Store) mutate(ctx context.Context, eventType, nodeID string, fn func(cur *Snapshot) (*Snapshot, error)) (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.current.Load()
	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return cur, nil
	}
	s.commit(ctx, next, eventType, nodeID)
	return next, nil
}

// commit swaps next in and publishes it. Callers hold mu. Once the swap has
// happened the event must go out, so a cancelled caller context does not stop
// the publish.
func (s *Store) commit(ctx context.Context, next *Snapshot, eventType, nodeID string) {
	s.current.Store(next)
	if s.hub == nil {
		return
	}
	err := s.hub.Publish(context.WithoutCancel(ctx), streaming.CanvasEvent{
		WorkflowID: s.workflowID,
		NodeID:     nodeID,
		EventType:  eventType,
		Version:    next.Version,
		Payload:    next,
	})
	if err != nil {
		s.logger.WarnContext(logging.WithWorkflowID(ctx, s.workflowID), "publish canvas event failed",
			slog.String("event_type", eventType),
			slog.Uint64("version", next.Version),
			slog.String("error", err.Error()),
		)
	}
}

// generation hands out node generations. Callers hold mu.
func (s *Store) generation() uint64 {
	s.nextGen++
	return s.nextGen
}

func requireLoaded(s *Snapshot) error {
	if !s.Loaded() {
		return schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q is not loaded", s.WorkflowID)
	}
	return nil
}

func nodeNotFound(id string) *schema.CanvasError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "node %q not found", id).WithNode(id)
}

func cloneWorkflow(wf *schema.Workflow) *schema.Workflow {
	if wf == nil {
		return nil
	}
	c := *wf
	c.Schedules = slices.Clone(wf.Schedules)
	return &c
}

var _ Coordinator = (*Store)(nil)
