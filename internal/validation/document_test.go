package validation

import (
	"testing"

	"github.com/rendis/flowcanvas/internal/icons"
	"github.com/rendis/flowcanvas/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test document builders ---

func validDoc() *schema.GraphDocument {
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
		Workflow: &schema.Workflow{
			Webhook:   schema.Webhook{ID: "wh", Status: schema.NodeStatusOnline, Method: "POST"},
			Schedules: []schema.Schedule{{ID: "s1", Cron: "0 * * * *"}},
		},
	}
}

func newValidator(t *testing.T) *DocumentValidator {
	t.Helper()
	v, err := NewDocumentValidator(icons.DefaultRegistry())
	require.NoError(t, err)
	return v
}

func codes(issues []schema.ValidationIssue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Code)
	}
	return out
}

// --- Tests ---

func TestValidDocument(t *testing.T) {
	result := newValidator(t).Validate(validDoc())
	assert.True(t, result.Valid(), "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
	assert.NoError(t, newValidator(t).ValidateDocument(validDoc()))
}

func TestNilDocument(t *testing.T) {
	result := newValidator(t).Validate(nil)
	require.False(t, result.Valid())
	assert.Equal(t, "graph document is nil", result.Errors[0].Message)
}

func TestStructuralErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *schema.GraphDocument)
	}{
		{"missing id", func(d *schema.GraphDocument) { d.ID = "" }},
		{"unknown kind", func(d *schema.GraphDocument) { d.Nodes[1].Kind = "robot" }},
		{"negative events", func(d *schema.GraphDocument) { d.Nodes[1].NumberOfEvents = -1 }},
		{"unknown status", func(d *schema.GraphDocument) { d.Nodes[2].Status = "sleeping" }},
		{"empty edge source", func(d *schema.GraphDocument) { d.Edges[0].Source = "" }},
		{"empty cron", func(d *schema.GraphDocument) { d.Workflow.Schedules[0].Cron = "" }},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			tt.mutate(doc)
			result := v.Validate(doc)
			require.False(t, result.Valid())
			assert.Equal(t, schema.ErrCodeValidation, result.Errors[0].Code)
			assert.Empty(t, result.Warnings, "semantic stage must be skipped")
		})
	}
}

func TestValidateJSON(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.ValidateJSON([]byte(`{"id":"wf","nodes":[]}`)))

	err := v.ValidateJSON([]byte(`{"id":"wf","nodes":[],"extra":true}`))
	assert.True(t, schema.HasCode(err, schema.ErrCodeValidation))

	err = v.ValidateJSON([]byte(`{"id":`))
	assert.True(t, schema.HasCode(err, schema.ErrCodeDecode))
}

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(d *schema.GraphDocument)
		code   string
	}{
		{"duplicate id", func(d *schema.GraphDocument) { d.Nodes[2].ID = "receive" }, schema.ErrCodeConflict},
		{"second trigger", func(d *schema.GraphDocument) {
			d.Nodes = append(d.Nodes, schema.NodeDocument{ID: "t2", Kind: schema.NodeKindTrigger})
		}, schema.ErrCodeConflict},
		{"trigger with error status", func(d *schema.GraphDocument) { d.Nodes[0].Status = schema.NodeStatusError }, schema.ErrCodeValidation},
		{"trigger with events", func(d *schema.GraphDocument) { d.Nodes[0].NumberOfEvents = 2 }, schema.ErrCodeValidation},
		{"action with trigger config", func(d *schema.GraphDocument) { d.Nodes[1].IsConfigured = true }, schema.ErrCodeValidation},
		{"entrypoint missing", func(d *schema.GraphDocument) { d.Nodes[0].EntrypointID = "ghost" }, schema.ErrCodeNotFound},
		{"entrypoint is trigger", func(d *schema.GraphDocument) { d.Nodes[0].EntrypointID = "trigger" }, schema.ErrCodeValidation},
		{"webhook error status", func(d *schema.GraphDocument) { d.Workflow.Webhook.Status = schema.NodeStatusError }, schema.ErrCodeValidation},
		{"self loop", func(d *schema.GraphDocument) {
			d.Edges = append(d.Edges, schema.EdgeDocument{Source: "enrich", Target: "enrich"})
		}, schema.ErrCodeInvalidConnection},
		{"edge into trigger", func(d *schema.GraphDocument) {
			d.Edges = append(d.Edges, schema.EdgeDocument{Source: "enrich", Target: "trigger"})
		}, schema.ErrCodeInvalidConnection},
		{"unknown edge endpoint", func(d *schema.GraphDocument) {
			d.Edges = append(d.Edges, schema.EdgeDocument{Source: "enrich", Target: "ghost"})
		}, schema.ErrCodeInvalidConnection},
		{"duplicate edge", func(d *schema.GraphDocument) {
			d.Edges = append(d.Edges, schema.EdgeDocument{Source: "receive", Target: "enrich"})
		}, schema.ErrCodeInvalidConnection},
		{"duplicate edge id", func(d *schema.GraphDocument) {
			d.Edges = append(d.Edges, schema.EdgeDocument{ID: "e1", Source: "trigger", Target: "enrich"})
		}, schema.ErrCodeConflict},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validDoc()
			tt.mutate(doc)
			result := v.Validate(doc)
			require.False(t, result.Valid())
			assert.Contains(t, codes(result.Errors), tt.code)
		})
	}
}

func TestWarnings(t *testing.T) {
	v := newValidator(t)

	t.Run("unknown type", func(t *testing.T) {
		doc := validDoc()
		doc.Nodes[2].Type = "Quantum Action"
		result := v.Validate(doc)
		assert.True(t, result.Valid())
		assert.Contains(t, codes(result.Warnings), WarnUnknownType)
	})

	t.Run("invalid cron", func(t *testing.T) {
		doc := validDoc()
		doc.Workflow.Schedules[0].Cron = "every tuesday"
		result := v.Validate(doc)
		assert.True(t, result.Valid())
		assert.Contains(t, codes(result.Warnings), WarnInvalidCron)
	})

	t.Run("unreachable and cycle", func(t *testing.T) {
		doc := validDoc()
		doc.Nodes = append(doc.Nodes,
			schema.NodeDocument{ID: "x", Kind: schema.NodeKindAction, Type: "Webhook"},
			schema.NodeDocument{ID: "y", Kind: schema.NodeKindAction, Type: "Webhook"},
		)
		doc.Edges = append(doc.Edges,
			schema.EdgeDocument{Source: "x", Target: "y"},
			schema.EdgeDocument{Source: "y", Target: "x"},
		)
		result := v.Validate(doc)
		assert.True(t, result.Valid(), "cycles are warnings: %v", result.Errors)
		ws := codes(result.Warnings)
		assert.Contains(t, ws, schema.ErrCodeCycleDetected)
		assert.Contains(t, ws, WarnUnreachable)
	})

	t.Run("no trigger", func(t *testing.T) {
		doc := validDoc()
		doc.Nodes = doc.Nodes[1:]
		doc.Edges = doc.Edges[1:]
		result := v.Validate(doc)
		assert.True(t, result.Valid())
		assert.Contains(t, codes(result.Warnings), WarnNoTrigger)
	})

	t.Run("entrypoint not wired", func(t *testing.T) {
		doc := validDoc()
		doc.Nodes[0].EntrypointID = "enrich"
		result := v.Validate(doc)
		assert.True(t, result.Valid())
		assert.Contains(t, codes(result.Warnings), WarnUnwiredEntry)
	})
}

func TestValidateDocumentKeepsSingleErrorCode(t *testing.T) {
	doc := validDoc()
	doc.Nodes[0].EntrypointID = "ghost"

	err := newValidator(t).ValidateDocument(doc)
	require.Error(t, err)
	assert.True(t, schema.HasCode(err, schema.ErrCodeNotFound))
}

func TestEmptyGraphIsValid(t *testing.T) {
	result := newValidator(t).Validate(&schema.GraphDocument{ID: "wf"})
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}
