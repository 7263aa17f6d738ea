package validation

import (
	"errors"

	"github.com/rendis/flowcanvas/internal/icons"
	"github.com/rendis/flowcanvas/internal/schedules"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// DocumentValidator orchestrates the three-stage validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (ids, variants, entrypoint, connections, schedules)
// 3. DAG (cycles, reachability from the trigger)
type DocumentValidator struct {
	jsonSchema *JSONSchemaValidator
	icons      *icons.Registry
	schedules  *schedules.Describer
}

// NewDocumentValidator creates a DocumentValidator. reg may be nil to skip
// the unknown type warnings.
func NewDocumentValidator(reg *icons.Registry) (*DocumentValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &DocumentValidator{
		jsonSchema: jsv,
		icons:      reg,
		schedules:  schedules.NewDescriber(),
	}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit: semantic and DAG stages are skipped.
func (dv *DocumentValidator) Validate(doc *schema.GraphDocument) *schema.ValidationResult {
	if doc == nil {
		r := &schema.ValidationResult{}
		r.AddError("/", schema.ErrCodeValidation, "graph document is nil")
		return r
	}

	result := validateStructural(dv.jsonSchema, doc)
	if !result.Valid() {
		return result
	}

	semantic, g := validateSemantic(doc, dv.icons, dv.schedules)
	result.Merge(semantic)

	if result.Valid() && g != nil {
		result.Merge(validateDAG(g))
	}

	return result
}

// ValidateDocument satisfies the Validator interface.
func (dv *DocumentValidator) ValidateDocument(doc *schema.GraphDocument) error {
	return dv.Validate(doc).ToError()
}

// ValidateJSON delegates raw document checks to the JSON Schema stage.
func (dv *DocumentValidator) ValidateJSON(raw []byte) error {
	return dv.jsonSchema.ValidateJSON(raw)
}

// validateStructural converts the JSON Schema stage's error into a
// ValidationResult with one issue per violation.
func validateStructural(v *JSONSchemaValidator, doc *schema.GraphDocument) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidateDocument(doc)
	if err == nil {
		return result
	}

	var cerr *schema.CanvasError
	if !errors.As(err, &cerr) {
		result.AddError("/", schema.ErrCodeValidation, err.Error())
		return result
	}

	if violations, ok := cerr.Details["violations"].([]string); ok {
		for _, msg := range violations {
			result.AddError("/", schema.ErrCodeValidation, msg)
		}
		return result
	}
	result.AddError("/", cerr.Code, cerr.Message)
	return result
}
