package canvas

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/internal/logging"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// FetchTicket binds an in-flight event count fetch to the node generation it
// was started for. A result whose node was removed, or removed and re-added,
// in the meantime is discarded.
type FetchTicket struct {
	WorkflowID string
	NodeID     string
	Generation uint64
}

// EventCounter counts the events recorded for an action.
type EventCounter interface {
	CountEvents(ctx context.Context, params schema.EventSearchParams) (int, error)
}

// EventCounterFunc adapts a function to EventCounter.
type EventCounterFunc func(ctx context.Context, params schema.EventSearchParams) (int, error)

// CountEvents calls f.
func (f EventCounterFunc) CountEvents(ctx context.Context, params schema.EventSearchParams) (int, error) {
	return f(ctx, params)
}

// BeginFetch issues a ticket for refreshing an action's event count.
func (s *Store) BeginFetch(nodeID string) (FetchTicket, error) {
	snap := s.current.Load()
	if err := requireLoaded(snap); err != nil {
		return FetchTicket{}, err
	}
	n, ok := snap.Graph.Node(nodeID)
	if !ok {
		return FetchTicket{}, nodeNotFound(nodeID)
	}
	if n.Kind != schema.NodeKindAction {
		return FetchTicket{}, schema.NewErrorf(schema.ErrCodeValidation, "node %q has no event count", nodeID).WithNode(nodeID)
	}
	return FetchTicket{
		WorkflowID: s.workflowID,
		NodeID:     nodeID,
		Generation: snap.Generation(nodeID),
	}, nil
}

// ApplyEventCount applies the result of a fetch. It reports false, without
// error, when the ticket is stale.
func (s *Store) ApplyEventCount(ctx context.Context, t FetchTicket, count int) (bool, error) {
	if count < 0 {
		return false, schema.NewErrorf(schema.ErrCodeValidation, "negative event count %d", count).WithNode(t.NodeID)
	}

	applied := false
	_, err := s.mutate(ctx, schema.EventNodeUpdated, t.NodeID, func(cur *Snapshot) (*Snapshot, error) {
		if t.WorkflowID != s.workflowID || !cur.Loaded() || cur.Generation(t.NodeID) != t.Generation {
			s.logger.DebugContext(logging.WithNodeID(logging.WithWorkflowID(ctx, s.workflowID), t.NodeID),
				"discarding stale event count",
				slog.Uint64("ticket_generation", t.Generation),
				slog.Int("count", count),
			)
			return nil, nil
		}
		n, ok := cur.Graph.Node(t.NodeID)
		if !ok {
			return nil, nil
		}
		if n.Kind != schema.NodeKindAction {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "node %q has no event count", t.NodeID).WithNode(t.NodeID)
		}
		applied = true
		if n.EventCount() == count {
			return nil, nil
		}

		c := n.Clone()
		c.Action.NumberOfEvents = count
		g, err := cur.Graph.ReplaceNode(c)
		if err != nil {
			return nil, err
		}
		next := cur.next()
		next.Graph = g
		return next, nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// RefreshEventCount fetches an action's event count through counter and
// applies it unless the node changed generation meanwhile.
func (s *Store) RefreshEventCount(ctx context.Context, nodeID string, counter EventCounter) (bool, error) {
	t, err := s.BeginFetch(nodeID)
	if err != nil {
		return false, err
	}
	count, err := counter.CountEvents(ctx, schema.DefaultEventSearchParams(s.workflowID, nodeID))
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeProvider, "count events of %q", nodeID).WithNode(nodeID).WithCause(err)
	}
	return s.ApplyEventCount(ctx, t, count)
}

// RefreshAll refreshes the event count of every action node, a few nodes at
// a time. Failures are logged and skipped; the number of applied counts is
// returned.
func (s *Store) RefreshAll(ctx context.Context, counter EventCounter) int {
	pool := NewPool(refreshConcurrency)
	defer pool.Shutdown()

	var applied atomic.Int64
	for _, n := range actionNodes(s.current.Load()) {
		id := n.ID
		err := pool.Submit(ctx, func(ctx context.Context) error {
			ok, err := s.RefreshEventCount(ctx, id, counter)
			if err != nil {
				s.logger.WarnContext(logging.WithNodeID(logging.WithWorkflowID(ctx, s.workflowID), id),
					"refresh event count failed", slog.String("error", err.Error()))
				return err
			}
			if ok {
				applied.Add(1)
			}
			return nil
		})
		if err != nil {
			break
		}
	}
	pool.Wait()
	return int(applied.Load())
}

func actionNodes(snap *Snapshot) []*graph.Node {
	if !snap.Loaded() {
		return nil
	}
	var out []*graph.Node
	for _, n := range snap.Graph.Nodes() {
		if n.Kind == schema.NodeKindAction {
			out = append(out, n)
		}
	}
	return out
}
