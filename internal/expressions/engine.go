package expressions

import (
	"context"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// Engine evaluates expressions against a data map.
// Three implementations: Expr and CEL (node search predicates), GoJQ
// (extraction from workflow API payloads).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// EvaluateBool evaluates a predicate and requires a boolean result.
func EvaluateBool(ctx context.Context, e Engine, expression string, data map[string]any) (bool, error) {
	out, err := e.Evaluate(ctx, expression, data)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeValidation,
			"%s expression %q returned %T, expected bool", e.Name(), expression, out).
			WithDetails(map[string]any{"expression": expression})
	}
	return b, nil
}

// ByName returns the predicate engine registered under name. An empty name
// selects expr.
func ByName(name string, engines ...Engine) (Engine, error) {
	if name == "" {
		name = "expr"
	}
	for _, e := range engines {
		if e.Name() == name {
			return e, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "unknown expression engine %q", name)
}
