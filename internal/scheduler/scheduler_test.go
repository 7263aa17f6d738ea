package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowcanvas/internal/aggregate"
	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/internal/streaming"
	"github.com/rendis/flowcanvas/pkg/schema"
)

func testDoc(id string) *schema.GraphDocument {
	return &schema.GraphDocument{
		ID: id,
		Nodes: []schema.NodeDocument{
			{ID: "trigger", Kind: schema.NodeKindTrigger, Type: "trigger", Title: "Trigger", Status: schema.NodeStatusOnline},
			{ID: "fetch", Kind: schema.NodeKindAction, Type: "HTTP Request", Title: "Fetch", Status: schema.NodeStatusOnline},
			{ID: "notify", Kind: schema.NodeKindAction, Type: "Send Email", Title: "Notify", Status: schema.NodeStatusOffline},
		},
		Edges: []schema.EdgeDocument{{Source: "trigger", Target: "fetch"}, {Source: "fetch", Target: "notify"}},
	}
}

func openWorkspace(t *testing.T, ids ...string) *canvas.Workspace {
	t.Helper()
	docs := make([]*schema.GraphDocument, 0, len(ids))
	for _, id := range ids {
		docs = append(docs, testDoc(id))
	}
	ws := canvas.NewWorkspace(aggregate.NewStaticProvider(docs...), streaming.NewMemoryHub())
	for _, id := range ids {
		_, err := ws.Open(context.Background(), id)
		require.NoError(t, err)
	}
	return ws
}

func TestParseSchedule(t *testing.T) {
	from := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		spec    string
		want    time.Time
		wantErr bool
	}{
		{spec: "30s", want: from.Add(30 * time.Second)},
		{spec: "*/5 * * * *", want: from.Add(5 * time.Minute)},
		{spec: "@hourly", want: from.Add(time.Hour)},
		{spec: "0s", wantErr: true},
		{spec: "-1m", wantErr: true},
		{spec: "whenever", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			sched, err := ParseSchedule(tt.spec)
			if tt.wantErr {
				assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sched.Next(from))
		})
	}
}

func TestTickRefreshesEveryOpenWorkflow(t *testing.T) {
	ws := openWorkspace(t, "wf-a", "wf-b")
	counter := canvas.EventCounterFunc(func(_ context.Context, p schema.EventSearchParams) (int, error) {
		if p.ActionID == "fetch" {
			return 4, nil
		}
		return 0, nil
	})
	sched, err := ParseSchedule("1h")
	require.NoError(t, err)
	s := NewScheduler(ws, counter, sched, slog.Default())

	applied := s.Tick(context.Background())
	assert.Equal(t, 4, applied, "two actions in each of two workflows")

	for _, id := range []string{"wf-a", "wf-b"} {
		st, ok := ws.Get(id)
		require.True(t, ok)
		n, _ := st.NodeByID("fetch")
		assert.Equal(t, 4, n.EventCount())
	}
}

func TestTickSkipsInflightWorkflow(t *testing.T) {
	ws := openWorkspace(t, "wf-a")
	s := NewScheduler(ws, canvas.EventCounterFunc(func(context.Context, schema.EventSearchParams) (int, error) {
		return 1, nil
	}), nil, slog.Default())

	require.True(t, s.tryAcquire("wf-a"))
	assert.Equal(t, 0, s.Tick(context.Background()))
	s.release("wf-a")
	assert.Equal(t, 2, s.Tick(context.Background()))
}

func TestStartStop(t *testing.T) {
	ws := openWorkspace(t, "wf-a")
	var calls atomic.Int32
	counter := canvas.EventCounterFunc(func(context.Context, schema.EventSearchParams) (int, error) {
		calls.Add(1)
		return 2, nil
	})
	sched, err := ParseSchedule("10ms")
	require.NoError(t, err)
	s := NewScheduler(ws, counter, sched, slog.Default())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()), "second start rejected")

	assert.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	st, _ := ws.Get("wf-a")
	n, _ := st.NodeByID("notify")
	assert.Equal(t, 2, n.EventCount())
}
