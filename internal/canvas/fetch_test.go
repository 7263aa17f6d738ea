package canvas

import (
	"context"
	"errors"
	"testing"

	"github.com/rendis/flowcanvas/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEventCount(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()

	ticket, err := s.BeginFetch("enrich")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", ticket.WorkflowID)

	applied, err := s.ApplyEventCount(ctx, ticket, 12)
	require.NoError(t, err)
	assert.True(t, applied)
	n, _ := s.NodeByID("enrich")
	assert.Equal(t, 12, n.EventCount())

	version := s.Snapshot().Version
	applied, err = s.ApplyEventCount(ctx, ticket, 12)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, version, s.Snapshot().Version, "an unchanged count publishes nothing")

	_, err = s.ApplyEventCount(ctx, ticket, -1)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestStaleFetchDiscardedAfterRemoval(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()

	ticket, err := s.BeginFetch("enrich")
	require.NoError(t, err)

	_, err = s.RemoveNode(ctx, "enrich")
	require.NoError(t, err)
	version := s.Snapshot().Version

	applied, err := s.ApplyEventCount(ctx, ticket, 5)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, version, s.Snapshot().Version)
	_, ok := s.NodeByID("enrich")
	assert.False(t, ok, "a stale result never resurrects a removed node")
}

func TestStaleFetchDiscardedAfterReAdd(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()

	ticket, err := s.BeginFetch("enrich")
	require.NoError(t, err)

	_, err = s.RemoveNode(ctx, "enrich")
	require.NoError(t, err)
	_, err = s.AddNode(ctx, newAction(t, "enrich"))
	require.NoError(t, err)

	applied, err := s.ApplyEventCount(ctx, ticket, 5)
	require.NoError(t, err)
	assert.False(t, applied)
	n, _ := s.NodeByID("enrich")
	assert.Equal(t, 0, n.EventCount())
}

func TestStaleFetchDiscardedAfterUnloadAndForeignTicket(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()

	ticket, err := s.BeginFetch("receive")
	require.NoError(t, err)

	foreign := ticket
	foreign.WorkflowID = "wf-other"
	applied, err := s.ApplyEventCount(ctx, foreign, 1)
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = s.Unload(ctx)
	require.NoError(t, err)
	applied, err = s.ApplyEventCount(ctx, ticket, 1)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestBeginFetchErrors(t *testing.T) {
	s, _ := loadedStore(t)

	_, err := s.BeginFetch("trigger")
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation), "triggers have no event count")

	_, err = s.BeginFetch("ghost")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))

	_, err = NewStore("wf", nil, nil).BeginFetch("x")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestApplyEventCountRejectsTriggerTicket(t *testing.T) {
	s, _ := loadedStore(t)
	before := s.Snapshot()
	ticket := FetchTicket{WorkflowID: "wf-1", NodeID: "trigger", Generation: before.Generation("trigger")}

	var applied bool
	var err error
	require.NotPanics(t, func() {
		applied, err = s.ApplyEventCount(context.Background(), ticket, 5)
	})
	assert.False(t, applied)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
	assert.Equal(t, before, s.Snapshot())
}

func TestRefreshEventCount(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()

	var got schema.EventSearchParams
	counter := EventCounterFunc(func(_ context.Context, p schema.EventSearchParams) (int, error) {
		got = p
		return 42, nil
	})

	applied, err := s.RefreshEventCount(ctx, "receive", counter)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, "wf-1", got.WorkflowID)
	assert.Equal(t, "receive", got.ActionID)
	assert.Equal(t, 1000, got.Limit)

	n, _ := s.NodeByID("receive")
	assert.Equal(t, 42, n.EventCount())
}

func TestRefreshEventCountRemovedDuringFetch(t *testing.T) {
	s, _ := loadedStore(t)
	ctx := context.Background()

	counter := EventCounterFunc(func(ctx context.Context, _ schema.EventSearchParams) (int, error) {
		_, err := s.RemoveNode(ctx, "enrich")
		require.NoError(t, err)
		return 9, nil
	})

	applied, err := s.RefreshEventCount(ctx, "enrich", counter)
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestRefreshEventCountCounterError(t *testing.T) {
	s, _ := loadedStore(t)
	failing := EventCounterFunc(func(context.Context, schema.EventSearchParams) (int, error) {
		return 0, errors.New("search backend down")
	})

	_, err := s.RefreshEventCount(context.Background(), "enrich", failing)
	assert.True(t, schema.HasCode(err, schema.ErrCodeProvider))
}

func TestRefreshAll(t *testing.T) {
	s, _ := loadedStore(t)
	counts := map[string]int{"receive": 7}
	counter := EventCounterFunc(func(_ context.Context, p schema.EventSearchParams) (int, error) {
		c, ok := counts[p.ActionID]
		if !ok {
			return 0, errors.New("unknown action")
		}
		return c, nil
	})

	applied := s.RefreshAll(context.Background(), counter)
	assert.Equal(t, 1, applied)
	n, _ := s.NodeByID("receive")
	assert.Equal(t, 7, n.EventCount())
}
