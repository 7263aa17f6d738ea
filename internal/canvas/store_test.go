package canvas

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rendis/flowcanvas/internal/diagram"
	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/internal/icons"
	"github.com/rendis/flowcanvas/internal/schedules"
	"github.com/rendis/flowcanvas/internal/streaming"
	"github.com/rendis/flowcanvas/internal/validation"
	"github.com/rendis/flowcanvas/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test fixtures ---

func triageDoc() *schema.GraphDocument {
	return &schema.GraphDocument{
		ID:    "wf-1",
		Title: "Phishing triage",
		Nodes: []schema.NodeDocument{
			{ID: "trigger", Kind: schema.NodeKindTrigger, Title: "Trigger", Status: schema.NodeStatusOnline, IsConfigured: true, EntrypointID: "receive"},
			{ID: "receive", Kind: schema.NodeKindAction, Type: "Webhook", Title: "Receive", Status: schema.NodeStatusOnline, NumberOfEvents: 3},
			{ID: "enrich", Kind: schema.NodeKindAction, Type: "HTTP Request", Title: "Enrich", Status: schema.NodeStatusError},
		},
		Edges: []schema.EdgeDocument{
			{ID: "e1", Source: "trigger", Target: "receive"},
			{ID: "e2", Source: "receive", Target: "enrich"},
		},
	}
}

func loadedStore(t *testing.T) (*Store, *streaming.MemoryHub) {
	t.Helper()
	hub := streaming.NewMemoryHub()
	s := NewStore("wf-1", hub, nil)
	_, err := s.Load(context.Background(), triageDoc())
	require.NoError(t, err)
	return s, hub
}

func newAction(t *testing.T, id string) *graph.Node {
	t.Helper()
	n, err := graph.NewAction(id, "Send Email", id, graph.ActionData{})
	require.NoError(t, err)
	return n
}

// --- Tests ---

func TestNewStoreIsEmpty(t *testing.T) {
	s := NewStore("wf-1", nil, nil)
	snap := s.Snapshot()

	assert.False(t, snap.Loaded())
	assert.Equal(t, uint64(0), snap.Version)
	assert.Nil(t, snap.Context())
	assert.Nil(t, snap.Document())
	_, ok := s.NodeByID("x")
	assert.False(t, ok)
	_, ok = s.Selection()
	assert.False(t, ok)
}

func TestLoad(t *testing.T) {
	s, _ := loadedStore(t)
	snap := s.Snapshot()

	assert.True(t, snap.Loaded())
	assert.Equal(t, uint64(1), snap.Version)
	assert.Equal(t, "Phishing triage", snap.Title)
	assert.Equal(t, 3, snap.Graph.Len())
	assert.NotZero(t, snap.Generation("receive"))
	assert.NotEqual(t, snap.Generation("receive"), snap.Generation("enrich"))

	n, ok := s.NodeByID("enrich")
	require.True(t, ok)
	assert.Equal(t, schema.NodeStatusError, n.Status())

	wf := snap.Context()
	require.NotNil(t, wf)
	assert.False(t, wf.Loaded, "no aggregates in the document")

	doc := snap.Document()
	assert.Equal(t, "wf-1", doc.ID)
	assert.Len(t, doc.Edges, 2)
}

func TestLoadRejectsForeignDocument(t *testing.T) {
	s := NewStore("wf-2", nil, nil)
	_, err := s.Load(context.Background(), triageDoc())
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = s.Load(context.Background(), nil)
	assert.Error(t, err)
	assert.False(t, s.Snapshot().Loaded())
}

func TestOperationsRequireLoadedGraph(t *testing.T) {
	s := NewStore("wf-1", nil, nil)
	ctx := context.Background()

	_, err := s.AddNode(ctx, newAction(t, "a"))
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
	_, _, err = s.Connect(ctx, graph.Connection{Source: "a", Target: "b"})
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
	_, err = s.Select(ctx, "a")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
	_, err = s.RegisterWorkflow(ctx, &schema.Workflow{})
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))

	snap, err := s.Unload(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Version, "unloading an empty canvas is a no-op")
}

func TestAddUpdateRemoveNode(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()

	snap, err := s.AddNode(ctx, newAction(t, "notify"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Version)

	_, err = s.AddNode(ctx, newAction(t, "notify"))
	assert.True(t, schema.HasCode(err, schema.ErrCodeConflict))
	assert.Equal(t, uint64(2), s.Snapshot().Version, "failed writes do not bump the version")

	snap, err = s.UpdateNode(ctx, "notify", func(n *graph.Node) error {
		n.Title = "Notify SOC"
		n.Action.Status = schema.NodeStatusOnline
		return nil
	})
	require.NoError(t, err)
	n, _ := snap.Graph.Node("notify")
	assert.Equal(t, "Notify SOC", n.Title)
	assert.Equal(t, schema.NodeStatusOnline, n.Status())

	_, err = s.UpdateNode(ctx, "notify", func(n *graph.Node) error {
		n.ID = "renamed"
		return nil
	})
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = s.UpdateNode(ctx, "notify", func(n *graph.Node) error {
		n.Action.Status = "sleeping"
		return nil
	})
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = s.UpdateNode(ctx, "ghost", func(*graph.Node) error { return nil })
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))

	snap, err = s.RemoveNode(ctx, "receive")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Graph.Len())
	assert.Empty(t, snap.Graph.Edges(), "incident edges are removed with the node")
	assert.Zero(t, snap.Generation("receive"))
}

func TestRemoveEntrypointKeepsDocumentValid(t *testing.T) {
	s, _ := loadedStore(t)

	snap, err := s.RemoveNode(context.Background(), "receive")
	require.NoError(t, err)

	trig, ok := snap.Graph.Trigger()
	require.True(t, ok)
	assert.Empty(t, trig.Trigger.EntrypointID)

	v, err := validation.NewDocumentValidator(icons.DefaultRegistry())
	require.NoError(t, err)
	assert.NoError(t, v.ValidateDocument(snap.Document()))
}

func TestTriggerEntrypointMustBeAnAction(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()
	version := s.Snapshot().Version

	_, err := s.UpdateNode(ctx, "trigger", func(n *graph.Node) error {
		n.Trigger.EntrypointID = "ghost"
		return nil
	})
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))

	_, err = s.UpdateNode(ctx, "trigger", func(n *graph.Node) error {
		n.Trigger.EntrypointID = "enrich"
		return nil
	})
	require.NoError(t, err)

	_, err = s.RemoveNode(ctx, "trigger")
	require.NoError(t, err)
	trig, err := graph.NewTrigger("trigger-2", "", "Trigger", graph.TriggerData{EntrypointID: "missing"})
	require.NoError(t, err)
	_, err = s.AddNode(ctx, trig)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
	assert.Equal(t, version+2, s.Snapshot().Version, "rejected writes do not bump the version")
}

func TestUpdateDoesNotLeakIntoOldSnapshots(t *testing.T) {
	s, _ := loadedStore(t)
	before := s.Snapshot()

	_, err := s.UpdateNode(context.Background(), "enrich", func(n *graph.Node) error {
		n.Action.NumberOfEvents = 99
		return nil
	})
	require.NoError(t, err)

	old, _ := before.Graph.Node("enrich")
	assert.Equal(t, 0, old.EventCount())
	cur, _ := s.NodeByID("enrich")
	assert.Equal(t, 99, cur.EventCount())
}

func TestConnectAndRemoveEdge(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()
	_, err := s.AddNode(ctx, newAction(t, "notify"))
	require.NoError(t, err)
	version := s.Snapshot().Version

	snap, edge, err := s.Connect(ctx, graph.Connection{Source: "enrich", Target: "notify"})
	require.NoError(t, err)
	assert.NotEmpty(t, edge.ID)
	assert.Len(t, snap.Graph.Edges(), 3)

	_, _, err = s.Connect(ctx, graph.Connection{Source: "notify", Target: "trigger"})
	assert.True(t, graph.IsInvalidConnection(err))
	_, _, err = s.Connect(ctx, graph.Connection{Source: "notify", Target: "notify"})
	assert.True(t, graph.IsInvalidConnection(err))
	assert.Equal(t, version+1, s.Snapshot().Version, "rejected connections leave the canvas unchanged")

	snap, err = s.RemoveEdge(ctx, edge.ID)
	require.NoError(t, err)
	assert.Len(t, snap.Graph.Edges(), 2)

	_, err = s.RemoveEdge(ctx, edge.ID)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestSelection(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()

	snap, err := s.Select(ctx, "enrich")
	require.NoError(t, err)
	assert.Equal(t, "enrich", snap.Selection)
	assert.Equal(t, "enrich", snap.Context().SelectedID)

	again, err := s.Select(ctx, "enrich")
	require.NoError(t, err)
	assert.Equal(t, snap.Version, again.Version)

	_, err = s.Select(ctx, "ghost")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))

	n, ok := s.Selection()
	require.True(t, ok)
	assert.Equal(t, "enrich", n.ID)

	snap, err = s.RemoveNode(ctx, "enrich")
	require.NoError(t, err)
	assert.Empty(t, snap.Selection, "removing the selected node clears the selection")

	_, err = s.Select(ctx, "receive")
	require.NoError(t, err)
	snap, err = s.ClearSelection(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Selection)
	_, ok = s.Selection()
	assert.False(t, ok)
}

func TestRegisterWorkflow(t *testing.T) {
	s, _ := loadedStore(t)
	wf := &schema.Workflow{
		Webhook:   schema.Webhook{Status: schema.NodeStatusOnline, Method: "POST"},
		Schedules: []schema.Schedule{{ID: "s1", Cron: "@hourly"}},
	}

	snap, err := s.RegisterWorkflow(context.Background(), wf)
	require.NoError(t, err)
	wf.Schedules[0].Cron = "mutated"

	ctx := snap.Context()
	assert.True(t, ctx.Loaded)
	assert.Equal(t, "@hourly", ctx.Workflow.Schedules[0].Cron, "the store keeps its own copy")

	trig, ok := snap.Graph.Trigger()
	require.True(t, ok)
	assert.Equal(t, schema.NodeStatusOnline, trig.Trigger.Webhook.Status)
	assert.Len(t, trig.Trigger.Schedules, 1)

	_, err = s.RegisterWorkflow(context.Background(), nil)
	assert.Error(t, err)
}

func TestUnload(t *testing.T) {
	s, _ := loadedStore(t)
	_, err := s.Select(context.Background(), "receive")
	require.NoError(t, err)

	snap, err := s.Unload(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Loaded())
	assert.Empty(t, snap.Selection)
	assert.Nil(t, snap.Context())
}

func TestEventsCarryTheirSnapshot(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()

	ch, cancel, err := s.Subscribe(ctx)
	require.NoError(t, err)
	defer cancel()

	_, err = s.AddNode(ctx, newAction(t, "notify"))
	require.NoError(t, err)
	_, err = s.Select(ctx, "notify")
	require.NoError(t, err)

	ev := <-ch
	assert.Equal(t, schema.EventNodeAdded, ev.EventType)
	assert.Equal(t, "notify", ev.NodeID)
	snap, ok := ev.Payload.(*Snapshot)
	require.True(t, ok)
	assert.Equal(t, ev.Version, snap.Version)
	_, has := snap.Graph.Node("notify")
	assert.True(t, has)
	assert.Empty(t, snap.Selection, "each event shows its own generation")

	ev = <-ch
	assert.Equal(t, schema.EventSelectionChanged, ev.EventType)
	assert.Equal(t, "notify", ev.Payload.(*Snapshot).Selection)
	assert.Equal(t, s.Snapshot(), ev.Payload)
}

func TestCancelledCallerStillPublishes(t *testing.T) {
	s, _ := loadedStore(t)

	ch, unsub, err := s.Subscribe(context.Background())
	require.NoError(t, err)
	defer unsub()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	snap, err := s.AddNode(ctx, newAction(t, "notify"))
	require.NoError(t, err)

	select {
	case ev := <-ch:
		assert.Equal(t, schema.EventNodeAdded, ev.EventType)
		assert.Equal(t, snap.Version, ev.Version)
		assert.Same(t, snap, ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("committed snapshot was never published")
	}
}

func TestCountsRenderWithoutWorkflowAggregate(t *testing.T) {
	s, _ := loadedStore(t)
	ticket, err := s.BeginFetch("enrich")
	require.NoError(t, err)
	_, err = s.ApplyEventCount(context.Background(), ticket, 9)
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Nil(t, snap.Workflow)
	model := diagram.NewRenderer(icons.DefaultRegistry()).Build(snap.Title, snap.Graph, snap.Context())

	assert.Equal(t, 3, model.Card("receive").Events)
	assert.Equal(t, 9, model.Card("enrich").Events)
	assert.Equal(t, schedules.Placeholder, model.Card("trigger").Trigger.Schedules.Placeholder)
}

func TestSubscribeFiltersEventTypes(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()

	ch, cancel, err := s.Subscribe(ctx, schema.EventSelectionChanged)
	require.NoError(t, err)
	defer cancel()

	_, err = s.AddNode(ctx, newAction(t, "notify"))
	require.NoError(t, err)
	_, err = s.Select(ctx, "notify")
	require.NoError(t, err)

	ev := <-ch
	assert.Equal(t, schema.EventSelectionChanged, ev.EventType)
}

func TestSubscribeWithoutHub(t *testing.T) {
	_, _, err := NewStore("wf", nil, nil).Subscribe(context.Background())
	assert.Error(t, err)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = s.UpdateNode(ctx, "enrich", func(n *graph.Node) error {
					n.Action.NumberOfEvents++
					return nil
				})
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				snap := s.Snapshot()
				n, ok := snap.Graph.Node("enrich")
				if assert.True(t, ok) {
					assert.GreaterOrEqual(t, n.EventCount(), 0)
				}
			}
		}()
	}
	wg.Wait()

	n, _ := s.NodeByID("enrich")
	assert.Equal(t, 400, n.EventCount())
	assert.Equal(t, uint64(401), s.Snapshot().Version)
}
