package schema

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
}

func TestValidationResult_AddErrorAndWarning(t *testing.T) {
	r := &ValidationResult{}
	r.AddWarning("nodes[a1].type", ErrCodeValidation, "unknown node type")
	assert.True(t, r.Valid(), "warnings alone should not make result invalid")

	r.AddError("edges[0]", ErrCodeInvalidConnection, "self loop")
	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, SeverityError, r.Errors[0].Severity)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
}

func TestValidationResult_MergeNil(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("/", ErrCodeValidation, "err")
	r.Merge(nil)
	assert.Len(t, r.Errors, 1)
}

func TestValidationResult_ToError_SingleErrorKeepsCode(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("edges[0]", ErrCodeInvalidConnection, "node a1 cannot connect to itself")

	err := r.ToError()
	require.Error(t, err)

	var ce *CanvasError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeInvalidConnection, ce.Code)
	assert.Equal(t, "node a1 cannot connect to itself", ce.Message)
	assert.Equal(t, 1, ce.Details["error_count"])
	assert.True(t, HasCode(err, ErrCodeInvalidConnection))
}

func TestValidationResult_ToError_MultipleErrors(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("/", ErrCodeNotFound, "err1")
	r.AddError("/", ErrCodeConflict, "err2")
	r.AddWarning("/", ErrCodeValidation, "warn1")

	err := r.ToError()
	require.Error(t, err)

	var ce *CanvasError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrCodeValidation, ce.Code)
	assert.Contains(t, ce.Message, "2 errors")
	assert.Equal(t, 1, ce.Details["warning_count"])
}

func TestValidationResult_ToError_SharedCodeSurvives(t *testing.T) {
	r := &ValidationResult{}
	r.AddError("edges[0]", ErrCodeInvalidConnection, "self loop")
	r.AddError("edges[3]", ErrCodeInvalidConnection, "duplicate edge")

	err := r.ToError()
	assert.True(t, HasCode(err, ErrCodeInvalidConnection))
	assert.Contains(t, err.Error(), "first at edges[0]")
}

func TestCanvasError_Format(t *testing.T) {
	err := NewError(ErrCodeNotFound, "node not found").WithNode("a1")
	assert.Equal(t, "[NOT_FOUND] node a1: node not found", err.Error())

	cause := fmt.Errorf("boom")
	wrapped := fmt.Errorf("load: %w", NewError(ErrCodeProvider, "fetch failed").WithCause(cause))
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, HasCode(wrapped, ErrCodeProvider))
	assert.False(t, HasCode(cause, ErrCodeProvider))
}

func TestNodeStatus_ValidFor(t *testing.T) {
	assert.True(t, NodeStatusOnline.ValidFor(NodeKindTrigger))
	assert.True(t, NodeStatusOffline.ValidFor(NodeKindTrigger))
	assert.False(t, NodeStatusError.ValidFor(NodeKindTrigger))

	assert.True(t, NodeStatusError.ValidFor(NodeKindAction))
	assert.False(t, NodeStatus("paused").ValidFor(NodeKindAction))
	assert.False(t, NodeStatusOnline.ValidFor(NodeKind("loop")))
}
