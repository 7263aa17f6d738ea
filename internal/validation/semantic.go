package validation

import (
	"fmt"

	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/internal/icons"
	"github.com/rendis/flowcanvas/internal/schedules"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// Warning codes. Warnings never block a load.
const (
	WarnUnknownType  = "UNKNOWN_TYPE"
	WarnInvalidCron  = "INVALID_CRON"
	WarnUnreachable  = "UNREACHABLE"
	WarnNoTrigger    = "NO_TRIGGER"
	WarnUnwiredEntry = "ENTRYPOINT_NOT_CONNECTED"
)

// validateSemantic checks what JSON Schema cannot express: unique ids, the
// single trigger rule, status domains per variant, entrypoint references,
// connection rules for every edge and schedule expressions.
// It returns the graph built from the document when nodes are valid so the
// DAG stage can reuse it.
func validateSemantic(doc *schema.GraphDocument, reg *icons.Registry, describer *schedules.Describer) (*schema.ValidationResult, *graph.Graph) {
	result := &schema.ValidationResult{}

	kinds := make(map[string]schema.NodeKind, len(doc.Nodes))
	triggerSeen := ""
	for i, nd := range doc.Nodes {
		path := fmt.Sprintf("nodes[%d]", i)

		if _, dup := kinds[nd.ID]; dup {
			result.AddError(path+".id", schema.ErrCodeConflict, fmt.Sprintf("duplicate node id %q", nd.ID))
			continue
		}
		kinds[nd.ID] = nd.Kind

		if nd.Status != "" && !nd.Status.ValidFor(nd.Kind) {
			result.AddError(path+".status", schema.ErrCodeValidation,
				fmt.Sprintf("status %q is not valid for a %s node", nd.Status, nd.Kind))
		}

		switch nd.Kind {
		case schema.NodeKindTrigger:
			if triggerSeen != "" {
				result.AddError(path+".kind", schema.ErrCodeConflict,
					fmt.Sprintf("graph already has trigger %q", triggerSeen))
			} else {
				triggerSeen = nd.ID
			}
			if nd.NumberOfEvents != 0 {
				result.AddError(path+".number_of_events", schema.ErrCodeValidation, "trigger nodes carry no event count")
			}
		case schema.NodeKindAction:
			if nd.IsConfigured || nd.EntrypointID != "" {
				result.AddError(path, schema.ErrCodeValidation, "action nodes carry no trigger configuration")
			}
			if reg != nil {
				if _, ok := reg.Lookup(nd.Type); !ok {
					result.AddWarning(path+".type", WarnUnknownType,
						fmt.Sprintf("unknown node type %q renders with the fallback icon", nd.Type))
				}
			}
		}
	}

	for i, nd := range doc.Nodes {
		if nd.Kind != schema.NodeKindTrigger || nd.EntrypointID == "" {
			continue
		}
		kind, ok := kinds[nd.EntrypointID]
		switch {
		case !ok:
			result.AddError(fmt.Sprintf("nodes[%d].entrypoint_id", i), schema.ErrCodeNotFound,
				fmt.Sprintf("entrypoint references non-existent node %q", nd.EntrypointID))
		case kind != schema.NodeKindAction:
			result.AddError(fmt.Sprintf("nodes[%d].entrypoint_id", i), schema.ErrCodeValidation,
				fmt.Sprintf("entrypoint %q is not an action node", nd.EntrypointID))
		}
	}

	if doc.Workflow != nil {
		if s := doc.Workflow.Webhook.Status; s != "" && !s.ValidFor(schema.NodeKindTrigger) {
			result.AddError("workflow.webhook.status", schema.ErrCodeValidation,
				fmt.Sprintf("webhook status %q must be online or offline", s))
		}
		if describer != nil {
			for i, s := range doc.Workflow.Schedules {
				if err := describer.Validate(s.Cron); err != nil {
					result.AddWarning(fmt.Sprintf("workflow.schedules[%d].cron", i), WarnInvalidCron, err.Error())
				}
			}
		}
	}

	if !result.Valid() {
		return result, nil
	}

	g, err := nodesOnly(doc)
	if err != nil {
		result.AddError("nodes", schema.ErrCodeValidation, err.Error())
		return result, nil
	}
	g = validateEdges(doc, g, result)
	return result, g
}

// nodesOnly builds the node set of doc without its edges.
func nodesOnly(doc *schema.GraphDocument) (*graph.Graph, error) {
	stripped := *doc
	stripped.Edges = nil
	return graph.FromDocument(&stripped)
}

// validateEdges admits every edge through the connection rules and reports
// the ones rejected. It returns the graph with the admitted edges.
func validateEdges(doc *schema.GraphDocument, g *graph.Graph, result *schema.ValidationResult) *graph.Graph {
	for i, ed := range doc.Edges {
		next, _, err := g.Connect(graph.Connection{
			ID:           ed.ID,
			Source:       ed.Source,
			SourceHandle: ed.SourceHandle,
			Target:       ed.Target,
			TargetHandle: ed.TargetHandle,
		})
		if err != nil {
			code := schema.ErrCodeInvalidConnection
			if !graph.IsInvalidConnection(err) {
				code = schema.ErrCodeConflict
			}
			result.AddError(fmt.Sprintf("edges[%d]", i), code, err.Error())
			continue
		}
		g = next
	}
	return g
}
