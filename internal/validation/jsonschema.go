package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/flowcanvas/pkg/schema"
)

const graphSchemaURL = "https://flowcanvas.dev/schemas/graph.json"

// graphSchemaJSON is the JSON Schema for GraphDocument validation.
const graphSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://flowcanvas.dev/schemas/graph.json",
  "type": "object",
  "required": ["id", "nodes"],
  "properties": {
    "id": { "type": "string", "minLength": 1 },
    "title": { "type": "string" },
    "nodes": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/node" }
    },
    "edges": {
      "type": ["array", "null"],
      "items": { "$ref": "#/$defs/edge" }
    },
    "workflow": {
      "oneOf": [
        { "type": "null" },
        { "$ref": "#/$defs/workflow" }
      ]
    }
  },
  "additionalProperties": false,
  "$defs": {
    "node": {
      "type": "object",
      "required": ["id", "kind"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "kind": { "type": "string", "enum": ["trigger", "action"] },
        "type": { "type": "string" },
        "title": { "type": "string" },
        "status": { "type": "string", "enum": ["", "online", "offline", "error"] },
        "is_configured": { "type": "boolean" },
        "entrypoint_id": { "type": "string" },
        "number_of_events": { "type": "integer", "minimum": 0 }
      },
      "additionalProperties": false
    },
    "edge": {
      "type": "object",
      "required": ["source", "target"],
      "properties": {
        "id": { "type": "string" },
        "source": { "type": "string", "minLength": 1 },
        "source_handle": { "type": "string" },
        "target": { "type": "string", "minLength": 1 },
        "target_handle": { "type": "string" }
      },
      "additionalProperties": false
    },
    "workflow": {
      "type": "object",
      "properties": {
        "webhook": { "$ref": "#/$defs/webhook" },
        "schedules": {
          "type": ["array", "null"],
          "items": { "$ref": "#/$defs/schedule" }
        }
      },
      "additionalProperties": false
    },
    "webhook": {
      "type": "object",
      "properties": {
        "id": { "type": "string" },
        "status": { "type": "string", "enum": ["", "online", "offline"] },
        "method": { "type": "string" },
        "url": { "type": "string" },
        "entrypoint_ref": { "type": "string" }
      },
      "additionalProperties": false
    },
    "schedule": {
      "type": "object",
      "required": ["id", "cron"],
      "properties": {
        "id": { "type": "string" },
        "cron": { "type": "string", "minLength": 1 },
        "entrypoint_ref": { "type": "string" }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator implements the Validator interface using JSON Schema
// Draft 2020-12. It is safe for concurrent use.
type JSONSchemaValidator struct {
	graphSchema *jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the graph schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(graphSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal graph schema: %w", err)
	}
	if err := c.AddResource(graphSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add graph schema resource: %w", err)
	}

	compiled, err := c.Compile(graphSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile graph schema: %w", err)
	}

	return &JSONSchemaValidator{graphSchema: compiled}, nil
}

// ValidateDocument validates a GraphDocument against the graph JSON Schema.
func (v *JSONSchemaValidator) ValidateDocument(doc *schema.GraphDocument) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "graph document is nil")
	}

	b, err := json.Marshal(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize graph document").WithCause(err)
	}
	return v.ValidateJSON(b)
}

// ValidateJSON validates raw JSON bytes against the graph JSON Schema. It
// catches fields a typed decode would silently drop.
func (v *JSONSchemaValidator) ValidateJSON(raw []byte) error {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return schema.NewError(schema.ErrCodeDecode, "graph document is not valid JSON").WithCause(err)
	}
	if err := v.graphSchema.Validate(doc); err != nil {
		return toCanvasError(err)
	}
	return nil
}

// toCanvasError converts a jsonschema.ValidationError into a CanvasError
// listing every leaf violation.
func toCanvasError(err error) *schema.CanvasError {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
