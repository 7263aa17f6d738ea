package graph

import (
	"slices"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// TriggerType is the type key given to trigger nodes that declare none.
const TriggerType = "trigger"

// TriggerData is the payload of a trigger node.
type TriggerData struct {
	Status       schema.NodeStatus
	IsConfigured bool
	EntrypointID string
	Webhook      schema.Webhook
	Schedules    []schema.Schedule
}

// ActionData is the payload of an action node.
type ActionData struct {
	Status         schema.NodeStatus
	NumberOfEvents int
}

// Node is a graph vertex. Kind selects which payload is set: Trigger for
// NodeKindTrigger, Action for NodeKindAction. Nodes reachable from a Graph
// are shared between snapshots and must not be modified; use Clone.
type Node struct {
	ID    string
	Title string
	Type  string
	Kind  schema.NodeKind

	Trigger *TriggerData
	Action  *ActionData
}

// NewTrigger creates a trigger node. An empty status defaults to offline and
// an empty type to TriggerType.
func NewTrigger(id, nodeType, title string, data TriggerData) (*Node, error) {
	if nodeType == "" {
		nodeType = TriggerType
	}
	if data.Status == "" {
		data.Status = schema.NodeStatusOffline
	}
	data.Schedules = slices.Clone(data.Schedules)
	n := &Node{ID: id, Title: title, Type: nodeType, Kind: schema.NodeKindTrigger, Trigger: &data}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// NewAction creates an action node. An empty status defaults to offline,
// which is how an action looks before its live status has arrived.
func NewAction(id, nodeType, title string, data ActionData) (*Node, error) {
	if data.Status == "" {
		data.Status = schema.NodeStatusOffline
	}
	n := &Node{ID: id, Title: title, Type: nodeType, Kind: schema.NodeKindAction, Action: &data}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

// Validate checks identity, that exactly the payload matching Kind is set,
// and that the payload values are in range.
func (n *Node) Validate() error {
	if n == nil {
		return schema.NewError(schema.ErrCodeValidation, "node is nil")
	}
	if n.ID == "" {
		return schema.NewError(schema.ErrCodeValidation, "node id is empty")
	}

	switch n.Kind {
	case schema.NodeKindTrigger:
		if n.Trigger == nil || n.Action != nil {
			return schema.NewError(schema.ErrCodeValidation, "trigger node must carry only a trigger payload").WithNode(n.ID)
		}
		if !n.Trigger.Status.ValidFor(n.Kind) {
			return schema.NewErrorf(schema.ErrCodeValidation, "invalid trigger status %q", n.Trigger.Status).WithNode(n.ID)
		}
		if n.Trigger.EntrypointID == n.ID {
			return schema.NewError(schema.ErrCodeValidation, "trigger cannot be its own entrypoint").WithNode(n.ID)
		}
	case schema.NodeKindAction:
		if n.Action == nil || n.Trigger != nil {
			return schema.NewError(schema.ErrCodeValidation, "action node must carry only an action payload").WithNode(n.ID)
		}
		if !n.Action.Status.ValidFor(n.Kind) {
			return schema.NewErrorf(schema.ErrCodeValidation, "invalid action status %q", n.Action.Status).WithNode(n.ID)
		}
		if n.Action.NumberOfEvents < 0 {
			return schema.NewErrorf(schema.ErrCodeValidation, "negative event count %d", n.Action.NumberOfEvents).WithNode(n.ID)
		}
	default:
		return schema.NewErrorf(schema.ErrCodeValidation, "unknown node kind %q", n.Kind).WithNode(n.ID)
	}
	return nil
}

// Status returns the raw status of whichever variant the node is.
func (n *Node) Status() schema.NodeStatus {
	switch n.Kind {
	case schema.NodeKindTrigger:
		return n.Trigger.Status
	case schema.NodeKindAction:
		return n.Action.Status
	default:
		return ""
	}
}

// EventCount returns the number of events recorded for an action node.
// Triggers have no counter of their own and always report 0.
func (n *Node) EventCount() int {
	if n.Kind == schema.NodeKindAction && n.Action != nil {
		return n.Action.NumberOfEvents
	}
	return 0
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	c := *n
	if n.Trigger != nil {
		t := *n.Trigger
		t.Schedules = slices.Clone(n.Trigger.Schedules)
		c.Trigger = &t
	}
	if n.Action != nil {
		a := *n.Action
		c.Action = &a
	}
	return &c
}

// Document returns the wire form of the node.
func (n *Node) Document() schema.NodeDocument {
	doc := schema.NodeDocument{
		ID:     n.ID,
		Kind:   n.Kind,
		Type:   n.Type,
		Title:  n.Title,
		Status: n.Status(),
	}
	switch n.Kind {
	case schema.NodeKindTrigger:
		doc.IsConfigured = n.Trigger.IsConfigured
		doc.EntrypointID = n.Trigger.EntrypointID
	case schema.NodeKindAction:
		doc.NumberOfEvents = n.Action.NumberOfEvents
	}
	return doc
}
