package expressions

import (
	"context"
	"testing"

	"github.com/rendis/flowcanvas/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nodeData() map[string]any {
	node := map[string]any{
		"id":         "a1",
		"kind":       "action",
		"type":       "http_request",
		"status":     "error",
		"events":     12,
		"configured": false,
	}
	data := map[string]any{
		"node":     node,
		"workflow": map[string]any{"id": "wf-1", "schedules": 2},
	}
	for k, v := range node {
		data[k] = v
	}
	return data
}

func TestExprEngine_Predicate(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	ok, err := EvaluateBool(ctx, e, `kind == "action" && status == "error"`, nodeData())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateBool(ctx, e, `events > 20`, nodeData())
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = EvaluateBool(ctx, e, `node.type == "http_request"`, nodeData())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExprEngine_CachesProgram(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), `events + 1`, nodeData())
	require.NoError(t, err)
	_, err = e.Evaluate(context.Background(), `events + 1`, nodeData())
	require.NoError(t, err)
	assert.Equal(t, 1, e.programs.len())
}

func TestExprEngine_Errors(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	_, err := e.Evaluate(ctx, "", nil)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	_, err = e.Evaluate(ctx, `kind ==`, nodeData())
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestEvaluateBool_NonBool(t *testing.T) {
	_, err := EvaluateBool(context.Background(), NewExprEngine(), `events * 2`, nodeData())
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
	assert.Contains(t, err.Error(), "expected bool")
}

func TestCELEngine_Predicate(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := EvaluateBool(ctx, e, `node.kind == "action" && node.events > 10`, nodeData())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateBool(ctx, e, `workflow.id == "wf-2"`, nodeData())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCELEngine_MissingVariablesDefaultToEmpty(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	ok, err := EvaluateBool(context.Background(), e, `size(workflow) == 0`, map[string]any{
		"node": map[string]any{"id": "x"},
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCELEngine_CompileError(t *testing.T) {
	e, err := NewCELEngine()
	require.NoError(t, err)

	_, err = e.Evaluate(context.Background(), `steps.a == 1`, nodeData())
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))
}

func TestGoJQEngine_Extract(t *testing.T) {
	e := NewGoJQEngine()
	data := map[string]any{
		"object": map[string]any{
			"nodes": []any{
				map[string]any{"id": "t", "type": "trigger"},
				map[string]any{"id": "a", "type": "udf"},
			},
		},
	}

	out, err := e.Evaluate(context.Background(), `[.object.nodes[].id]`, data)
	require.NoError(t, err)
	assert.Equal(t, []any{"t", "a"}, out)

	out, err = e.Evaluate(context.Background(), `.object.nodes[].id`, data)
	require.NoError(t, err)
	assert.Equal(t, []any{"t", "a"}, out)

	out, err = e.Evaluate(context.Background(), `.missing`, data)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestGoJQEngine_Normalized(t *testing.T) {
	e := NewGoJQEngine()
	out, err := e.EvaluateNormalized(context.Background(), `.count + 1`, map[string]any{"count": 41})
	require.NoError(t, err)
	assert.Equal(t, float64(42), out)
}

func TestGoJQEngine_EnvironmentBlocked(t *testing.T) {
	t.Setenv("FLOWCANVAS_SECRET", "x")
	out, err := NewGoJQEngine().Evaluate(context.Background(), `$ENV.FLOWCANVAS_SECRET`, map[string]any{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestByName(t *testing.T) {
	cel, err := NewCELEngine()
	require.NoError(t, err)
	ex := NewExprEngine()

	got, err := ByName("", ex, cel)
	require.NoError(t, err)
	assert.Equal(t, "expr", got.Name())

	got, err = ByName("cel", ex, cel)
	require.NoError(t, err)
	assert.Same(t, cel, got)

	_, err = ByName("lua", ex, cel)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}
