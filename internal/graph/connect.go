package graph

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// Reasons reported in the "reason" detail of an invalid connection.
const (
	ReasonUnknownNode   = "unknown_node"
	ReasonUnknownHandle = "unknown_handle"
	ReasonHandleKind    = "handle_kind"
	ReasonSelfLoop      = "self_loop"
	ReasonDuplicate     = "duplicate"
)

// Connection is a request to join two handles. Empty handle ids select the
// node's default handle of the required kind. An empty ID gets a generated one.
type Connection struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	SourceHandle string `json:"source_handle,omitempty"`
	Target       string `json:"target"`
	TargetHandle string `json:"target_handle,omitempty"`
}

// ValidateConnection checks that c may be admitted into g and returns the
// edge it would create, with handle ids resolved. Failures are
// INVALID_CONNECTION errors.
func ValidateConnection(g *Graph, c Connection) (Edge, error) {
	src, ok := g.Node(c.Source)
	if !ok {
		return Edge{}, invalidConnection(c, ReasonUnknownNode, "source node not found")
	}
	dst, ok := g.Node(c.Target)
	if !ok {
		return Edge{}, invalidConnection(c, ReasonUnknownNode, "target node not found")
	}
	if src.ID == dst.ID {
		return Edge{}, invalidConnection(c, ReasonSelfLoop, "a node cannot connect to itself")
	}

	from, err := resolveHandle(src, c.SourceHandle, HandleSource, c)
	if err != nil {
		return Edge{}, err
	}
	to, err := resolveHandle(dst, c.TargetHandle, HandleTarget, c)
	if err != nil {
		return Edge{}, err
	}

	for _, e := range g.edges {
		if e.SourceHandle == from.ID && e.TargetHandle == to.ID {
			return Edge{}, invalidConnection(c, ReasonDuplicate, "edge already exists as "+e.ID)
		}
	}

	return Edge{
		ID:           c.ID,
		Source:       src.ID,
		SourceHandle: from.ID,
		Target:       dst.ID,
		TargetHandle: to.ID,
	}, nil
}

// Connect validates c and returns a graph containing the new edge.
func (g *Graph) Connect(c Connection) (*Graph, Edge, error) {
	e, err := ValidateConnection(g, c)
	if err != nil {
		return nil, Edge{}, err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	} else if _, exists := g.Edge(e.ID); exists {
		return nil, Edge{}, schema.NewErrorf(schema.ErrCodeConflict, "duplicate edge id %q", e.ID)
	}
	return g.withEdge(e), e, nil
}

// IsInvalidConnection reports whether err rejected a connection attempt.
func IsInvalidConnection(err error) bool {
	return schema.HasCode(err, schema.ErrCodeInvalidConnection)
}

// ConnectionReason returns the reason detail of an invalid connection error.
func ConnectionReason(err error) string {
	var ce *schema.CanvasError
	if !errors.As(err, &ce) || ce.Code != schema.ErrCodeInvalidConnection {
		return ""
	}
	reason, _ := ce.Details["reason"].(string)
	return reason
}

func resolveHandle(n *Node, handleID string, want HandleKind, c Connection) (Handle, error) {
	if handleID == "" {
		h, ok := n.DefaultHandle(want)
		if !ok {
			return Handle{}, invalidConnection(c, ReasonHandleKind,
				string(n.Kind)+" node "+n.ID+" has no "+string(want)+" handle")
		}
		return h, nil
	}
	h, ok := n.HandleByID(handleID)
	if !ok {
		return Handle{}, invalidConnection(c, ReasonUnknownHandle, "handle "+handleID+" does not belong to node "+n.ID)
	}
	if h.Kind != want {
		return Handle{}, invalidConnection(c, ReasonHandleKind,
			"handle "+h.ID+" is a "+string(h.Kind)+" handle, expected "+string(want))
	}
	return h, nil
}

func invalidConnection(c Connection, reason, msg string) *schema.CanvasError {
	return schema.NewError(schema.ErrCodeInvalidConnection, msg).WithDetails(map[string]any{
		"reason":        reason,
		"source":        c.Source,
		"source_handle": c.SourceHandle,
		"target":        c.Target,
		"target_handle": c.TargetHandle,
	})
}
