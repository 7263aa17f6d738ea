package validation

import (
	"fmt"

	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// validateDAG analyses the connected graph: cycles, nodes the trigger cannot
// reach, and a trigger whose entrypoint is not wired to it. Everything here
// is a warning since the canvas can display any of these states.
func validateDAG(g *graph.Graph) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	if g.HasCycle() {
		result.AddWarning("edges", schema.ErrCodeCycleDetected, "graph contains a cycle")
	}

	trigger, ok := g.Trigger()
	if !ok {
		if g.Len() > 0 {
			result.AddWarning("nodes", WarnNoTrigger, "graph has no trigger node")
		}
		return result
	}

	reachable := g.Reachable(trigger.ID)
	for _, n := range g.Nodes() {
		if !reachable[n.ID] {
			result.AddWarning(fmt.Sprintf("nodes[%s]", n.ID), WarnUnreachable,
				fmt.Sprintf("node %q is unreachable from trigger %q", n.ID, trigger.ID))
		}
	}

	if ep := trigger.Trigger.EntrypointID; ep != "" {
		wired := false
		for _, e := range g.Outgoing(trigger.ID) {
			if e.Target == ep {
				wired = true
				break
			}
		}
		if !wired {
			result.AddWarning(fmt.Sprintf("nodes[%s].entrypoint_id", trigger.ID), WarnUnwiredEntry,
				fmt.Sprintf("entrypoint %q has no edge from the trigger", ep))
		}
	}

	return result
}
