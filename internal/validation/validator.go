// Package validation checks graph documents before they are loaded onto a
// canvas. Validation runs in three stages: structural (JSON Schema), semantic
// (references, variant domains, connections) and DAG analysis.
package validation

import "github.com/rendis/flowcanvas/pkg/schema"

// Validator checks graph documents for correctness before they are loaded.
type Validator interface {
	ValidateDocument(doc *schema.GraphDocument) error
}
