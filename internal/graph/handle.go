package graph

import "github.com/rendis/flowcanvas/pkg/schema"

// HandleKind tells whether an edge may start (source) or end (target) at a handle.
type HandleKind string

const (
	HandleSource HandleKind = "source"
	HandleTarget HandleKind = "target"
)

// Position is the side of the node card a handle is drawn on.
type Position string

const (
	PositionTop    Position = "top"
	PositionBottom Position = "bottom"
	PositionLeft   Position = "left"
	PositionRight  Position = "right"
)

// Handle is a typed attachment point owned by one node.
type Handle struct {
	ID       string     `json:"id"`
	NodeID   string     `json:"node_id"`
	Kind     HandleKind `json:"kind"`
	Position Position   `json:"position"`
}

// HandleID returns the id of a node's handle of the given kind.
func HandleID(nodeID string, kind HandleKind) string {
	return nodeID + ":" + string(kind)
}

// Handles returns the handles the node exposes. A trigger starts flow and
// never receives it, so it only has a bottom source handle. An action has a
// top target handle and a bottom source handle.
func (n *Node) Handles() []Handle {
	switch n.Kind {
	case schema.NodeKindTrigger:
		return []Handle{n.handle(HandleSource, PositionBottom)}
	case schema.NodeKindAction:
		return []Handle{
			n.handle(HandleTarget, PositionTop),
			n.handle(HandleSource, PositionBottom),
		}
	default:
		return nil
	}
}

// HandleByID looks up one of the node's handles.
func (n *Node) HandleByID(id string) (Handle, bool) {
	for _, h := range n.Handles() {
		if h.ID == id {
			return h, true
		}
	}
	return Handle{}, false
}

// DefaultHandle returns the node's handle of the given kind, if it has one.
func (n *Node) DefaultHandle(kind HandleKind) (Handle, bool) {
	for _, h := range n.Handles() {
		if h.Kind == kind {
			return h, true
		}
	}
	return Handle{}, false
}

func (n *Node) handle(kind HandleKind, pos Position) Handle {
	return Handle{ID: HandleID(n.ID, kind), NodeID: n.ID, Kind: kind, Position: pos}
}
