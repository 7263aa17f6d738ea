package livefeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/internal/logging"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// TopicPrefix is the root of every status topic:
// flowcanvas/workflows/<workflow>/nodes/<node>/status.
const TopicPrefix = "flowcanvas/workflows"

// TopicFilter matches the status topics of every node of every workflow.
const TopicFilter = TopicPrefix + "/+/nodes/+/status"

// StatusTopic returns the topic carrying a node's status.
func StatusTopic(workflowID, nodeID string) string {
	return TopicPrefix + "/" + workflowID + "/nodes/" + nodeID + "/status"
}

// StatusUpdate is a parsed status message. A nil NumberOfEvents leaves the
// count untouched.
type StatusUpdate struct {
	WorkflowID     string            `json:"-"`
	NodeID         string            `json:"-"`
	Status         schema.NodeStatus `json:"status"`
	NumberOfEvents *int              `json:"number_of_events,omitempty"`
}

// ParseStatusMessage parses a status topic and its JSON payload.
func ParseStatusMessage(topic string, payload []byte) (StatusUpdate, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 6 || parts[0]+"/"+parts[1] != TopicPrefix || parts[3] != "nodes" || parts[5] != "status" ||
		parts[2] == "" || parts[4] == "" {
		return StatusUpdate{}, schema.NewErrorf(schema.ErrCodeDecode, "unexpected status topic %q", topic)
	}

	var u StatusUpdate
	if err := json.Unmarshal(payload, &u); err != nil {
		return StatusUpdate{}, schema.NewErrorf(schema.ErrCodeDecode, "status payload on %q", topic).WithCause(err)
	}
	if u.NumberOfEvents != nil && *u.NumberOfEvents < 0 {
		return StatusUpdate{}, schema.NewErrorf(schema.ErrCodeDecode, "negative event count on %q", topic)
	}
	u.WorkflowID = parts[2]
	u.NodeID = parts[4]
	return u, nil
}

// Apply writes u into the node it names. A status outside the node kind's
// domain is rejected by the store.
func Apply(ctx context.Context, s *canvas.Store, u StatusUpdate) (*canvas.Snapshot, error) {
	return s.UpdateNode(ctx, u.NodeID, func(n *graph.Node) error {
		switch n.Kind {
		case schema.NodeKindTrigger:
			if u.Status != "" {
				n.Trigger.Status = u.Status
			}
			if u.NumberOfEvents != nil {
				return schema.NewError(schema.ErrCodeValidation, "trigger nodes carry no event count").WithNode(n.ID)
			}
		case schema.NodeKindAction:
			if u.Status != "" {
				n.Action.Status = u.Status
			}
			if u.NumberOfEvents != nil {
				n.Action.NumberOfEvents = *u.NumberOfEvents
			}
		}
		return nil
	})
}

// Stores resolves an open canvas by workflow id.
type Stores interface {
	Get(workflowID string) (*canvas.Store, bool)
}

// Feed routes status messages to open canvases.
type Feed struct {
	stores Stores
	logger *slog.Logger
}

// NewFeed creates a feed updating stores.
func NewFeed(stores Stores, logger *slog.Logger) *Feed {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feed{stores: stores, logger: logger}
}

// Start subscribes the feed to every status topic.
func (f *Feed) Start(ctx context.Context, sub Subscriber) error {
	if err := sub.Subscribe(TopicFilter, f.Handler(ctx)); err != nil {
		return err
	}
	f.logger.InfoContext(ctx, "live status feed subscribed", slog.String("topic", TopicFilter))
	return nil
}

// Handler returns the paho handler applying messages under ctx.
func (f *Feed) Handler(ctx context.Context) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		_ = f.HandleMessage(ctx, msg.Topic(), msg.Payload())
	}
}

// HandleMessage applies one message. Messages for workflows that are not open
// are ignored.
func (f *Feed) HandleMessage(ctx context.Context, topic string, payload []byte) error {
	u, err := ParseStatusMessage(topic, payload)
	if err != nil {
		f.logger.WarnContext(ctx, "dropping status message", slog.String("topic", topic), slog.String("error", err.Error()))
		return err
	}
	ctx = logging.WithNodeID(logging.WithWorkflowID(ctx, u.WorkflowID), u.NodeID)

	s, ok := f.stores.Get(u.WorkflowID)
	if !ok {
		f.logger.DebugContext(ctx, "status for a workflow that is not open")
		return nil
	}
	if _, err := Apply(ctx, s, u); err != nil {
		f.logger.WarnContext(ctx, "status update rejected", slog.String("error", err.Error()))
		return err
	}
	return nil
}
