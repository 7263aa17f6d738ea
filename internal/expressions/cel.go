package expressions

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
)

// celVariables are the top-level variables a CEL search expression sees:
// node holds the fields of the node under test, workflow the workflow-level
// aggregates.
var celVariables = []string{"node", "workflow"}

// CELEngine evaluates node search queries written in CEL, for example
// `node.kind == "action" && node.events > 10`.
type CELEngine struct {
	env      *cel.Env
	programs *programCache[cel.Program]
}

// NewCELEngine declares node and workflow as map(string, dyn) variables.
func NewCELEngine() (*CELEngine, error) {
	opts := make([]cel.EnvOption, 0, len(celVariables))
	for _, v := range celVariables {
		opts = append(opts, cel.Variable(v, cel.MapType(cel.StringType, cel.DynType)))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	e := &CELEngine{env: env}
	e.programs = newProgramCache(e.compile)
	return e, nil
}

func (e *CELEngine) compile(expression string) (cel.Program, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, compileError("cel", expression, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, compileError("cel", expression, err)
	}
	return prg, nil
}

func (e *CELEngine) Name() string { return "cel" }

// Evaluate runs expression against the node and workflow entries of data.
// A missing entry is bound to an empty map so that queries over a workflow
// whose aggregates have not loaded still evaluate.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	if expression == "" {
		return nil, emptyError("cel")
	}
	prg, err := e.programs.get(expression)
	if err != nil {
		return nil, err
	}

	activation := make(map[string]any, len(celVariables))
	for _, key := range celVariables {
		v, ok := data[key]
		if !ok || v == nil {
			v = map[string]any{}
		}
		activation[key] = v
	}

	out, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return nil, evalError("cel", expression, err)
	}
	return out.Value(), nil
}

var _ Engine = (*CELEngine)(nil)
