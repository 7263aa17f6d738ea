// Package aggregate loads workflow graph documents together with their
// workflow-level aggregates (webhook, schedules) from external sources.
package aggregate

import (
	"context"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// Provider loads the graph document of one workflow.
type Provider interface {
	Load(ctx context.Context, workflowID string) (*schema.GraphDocument, error)
}

// Lister is implemented by providers that can enumerate their workflows.
type Lister interface {
	List(ctx context.Context) ([]string, error)
}

func notFound(workflowID string) *schema.CanvasError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q not found", workflowID).
		WithDetails(map[string]any{"workflow_id": workflowID})
}
