package canvas

import (
	"context"
	"testing"

	"github.com/rendis/flowcanvas/internal/aggregate"
	"github.com/rendis/flowcanvas/internal/icons"
	"github.com/rendis/flowcanvas/internal/streaming"
	"github.com/rendis/flowcanvas/internal/validation"
	"github.com/rendis/flowcanvas/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceOpenGetClose(t *testing.T) {
	provider := aggregate.NewStaticProvider(triageDoc())
	w := NewWorkspace(provider, streaming.NewMemoryHub())
	ctx := context.Background()

	s, err := w.Open(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "wf-1", s.WorkflowID())
	assert.True(t, s.Snapshot().Loaded())

	again, err := w.Open(ctx, "wf-1")
	require.NoError(t, err)
	assert.Same(t, s, again)

	got, ok := w.Get("wf-1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, []string{"wf-1"}, w.IDs())

	available, err := w.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"wf-1"}, available)

	require.NoError(t, w.Close(ctx, "wf-1"))
	assert.False(t, s.Snapshot().Loaded())
	assert.Empty(t, w.IDs())

	err = w.Close(ctx, "wf-1")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestWorkspaceOpenMissing(t *testing.T) {
	w := NewWorkspace(aggregate.NewStaticProvider(), nil)
	_, err := w.Open(context.Background(), "nope")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
	assert.Empty(t, w.IDs())
}

func TestWorkspaceValidatesDocuments(t *testing.T) {
	bad := triageDoc()
	bad.Nodes[0].EntrypointID = "ghost"

	v, err := validation.NewDocumentValidator(icons.DefaultRegistry())
	require.NoError(t, err)
	w := NewWorkspace(aggregate.NewStaticProvider(bad), nil, WithValidator(v))

	_, err = w.Open(context.Background(), "wf-1")
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
	_, ok := w.Get("wf-1")
	assert.False(t, ok)
}

func TestWorkspaceOpensExampleWorkflows(t *testing.T) {
	v, err := validation.NewDocumentValidator(icons.DefaultRegistry())
	require.NoError(t, err)
	w := NewWorkspace(aggregate.NewFileProvider("../../examples/workflows"), streaming.NewMemoryHub(), WithValidator(v))
	ctx := context.Background()

	available, err := w.Available(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"phishing-triage", "support-inbox"}, available)

	for _, id := range available {
		s, err := w.Open(ctx, id)
		require.NoError(t, err, id)
		assert.True(t, s.Snapshot().Loaded())
		assert.NotNil(t, s.Snapshot().Context())
	}

	s, _ := w.Get("support-inbox")
	n, ok := s.NodeByID("open-case")
	require.True(t, ok)
	assert.Equal(t, 9, n.EventCount())
}
