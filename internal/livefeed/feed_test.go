package livefeed

import (
	"context"
	"sync"
	"testing"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rendis/flowcanvas/internal/aggregate"
	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubscriber struct {
	mu       sync.Mutex
	handlers map[string]paho.MessageHandler
}

func (f *fakeSubscriber) Subscribe(topic string, handler paho.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = map[string]paho.MessageHandler{}
	}
	f.handlers[topic] = handler
	return nil
}

type message struct {
	topic   string
	payload []byte
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return 1 }
func (m *message) Retained() bool    { return false }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 0 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              {}

func openWorkspace(t *testing.T) *canvas.Workspace {
	t.Helper()
	doc := &schema.GraphDocument{
		ID: "wf-1",
		Nodes: []schema.NodeDocument{
			{ID: "trigger", Kind: schema.NodeKindTrigger, Status: schema.NodeStatusOffline, EntrypointID: "send"},
			{ID: "send", Kind: schema.NodeKindAction, Type: "Send Email", Title: "Send"},
		},
		Edges: []schema.EdgeDocument{{ID: "e1", Source: "trigger", Target: "send"}},
	}
	w := canvas.NewWorkspace(aggregate.NewStaticProvider(doc), nil)
	_, err := w.Open(context.Background(), "wf-1")
	require.NoError(t, err)
	return w
}

func intp(v int) *int { return &v }

func TestParseStatusMessage(t *testing.T) {
	u, err := ParseStatusMessage(StatusTopic("wf-1", "send"), []byte(`{"status":"online","number_of_events":4}`))
	require.NoError(t, err)
	assert.Equal(t, "wf-1", u.WorkflowID)
	assert.Equal(t, "send", u.NodeID)
	assert.Equal(t, schema.NodeStatusOnline, u.Status)
	assert.Equal(t, intp(4), u.NumberOfEvents)

	u, err = ParseStatusMessage(StatusTopic("wf-1", "send"), []byte(`{"status":"error"}`))
	require.NoError(t, err)
	assert.Nil(t, u.NumberOfEvents)

	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"short topic", "flowcanvas/workflows/wf-1/status", `{}`},
		{"foreign prefix", "other/workflows/wf-1/nodes/n/status", `{}`},
		{"empty node", "flowcanvas/workflows/wf-1/nodes//status", `{}`},
		{"bad json", StatusTopic("wf-1", "send"), `{status`},
		{"negative count", StatusTopic("wf-1", "send"), `{"number_of_events":-2}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStatusMessage(tt.topic, []byte(tt.payload))
			assert.True(t, schema.HasCode(err, schema.ErrCodeDecode))
		})
	}
}

func TestFeedAppliesMessages(t *testing.T) {
	w := openWorkspace(t)
	sub := &fakeSubscriber{}
	f := NewFeed(w, nil)
	require.NoError(t, f.Start(context.Background(), sub))

	handler, ok := sub.handlers[TopicFilter]
	require.True(t, ok)

	handler(nil, &message{topic: StatusTopic("wf-1", "send"), payload: []byte(`{"status":"online","number_of_events":9}`)})
	handler(nil, &message{topic: StatusTopic("wf-1", "trigger"), payload: []byte(`{"status":"online"}`)})

	s, _ := w.Get("wf-1")
	send, _ := s.NodeByID("send")
	assert.Equal(t, schema.NodeStatusOnline, send.Status())
	assert.Equal(t, 9, send.EventCount())
	trig, _ := s.NodeByID("trigger")
	assert.Equal(t, schema.NodeStatusOnline, trig.Status())
}

func TestFeedRejectsAndIgnores(t *testing.T) {
	w := openWorkspace(t)
	f := NewFeed(w, nil)
	ctx := context.Background()
	s, _ := w.Get("wf-1")
	version := s.Snapshot().Version

	err := f.HandleMessage(ctx, StatusTopic("wf-1", "trigger"), []byte(`{"status":"error"}`))
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation), "triggers are online or offline only")

	err = f.HandleMessage(ctx, StatusTopic("wf-1", "trigger"), []byte(`{"number_of_events":1}`))
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	err = f.HandleMessage(ctx, StatusTopic("wf-1", "ghost"), []byte(`{"status":"online"}`))
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))

	assert.NoError(t, f.HandleMessage(ctx, StatusTopic("wf-closed", "send"), []byte(`{"status":"online"}`)))
	assert.Equal(t, version, s.Snapshot().Version)
}
