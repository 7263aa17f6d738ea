package expressions

import (
	"sync"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// programCache memoizes compiled programs by source text. Safe for
// concurrent use; a program is compiled at most once per cache.
type programCache[P any] struct {
	mu      sync.RWMutex
	progs   map[string]P
	compile func(expression string) (P, error)
}

func newProgramCache[P any](compile func(string) (P, error)) *programCache[P] {
	return &programCache[P]{progs: make(map[string]P), compile: compile}
}

func (c *programCache[P]) get(expression string) (P, error) {
	c.mu.RLock()
	p, ok := c.progs[expression]
	c.mu.RUnlock()
	if ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.progs[expression]; ok {
		return p, nil
	}
	p, err := c.compile(expression)
	if err != nil {
		return p, err
	}
	c.progs[expression] = p
	return p, nil
}

func (c *programCache[P]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.progs)
}

// compileError reports a query that does not parse. It is the caller's
// mistake, so it carries the VALIDATION code.
func compileError(engine, expression string, err error) *schema.CanvasError {
	return schema.NewErrorf(schema.ErrCodeValidation, "%s: cannot compile %q: %s", engine, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"engine": engine, "expression": expression})
}

func evalError(engine, expression string, err error) *schema.CanvasError {
	return schema.NewErrorf(schema.ErrCodeExecution, "%s: evaluating %q: %s", engine, expression, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"engine": engine, "expression": expression})
}

func emptyError(engine string) *schema.CanvasError {
	return schema.NewErrorf(schema.ErrCodeValidation, "%s: empty expression", engine)
}
