// Package canvas coordinates the state of workflow canvases. Each Store holds
// a versioned, immutable Snapshot that readers load without locking; writers
// serialize, build the next snapshot and publish it to subscribers.
package canvas

import (
	"github.com/rendis/flowcanvas/internal/diagram"
	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// Snapshot is one generation of a canvas. Snapshots are never modified after
// they are published.
type Snapshot struct {
	Version    uint64
	WorkflowID string
	Title      string

	// Graph is nil while no workflow is loaded.
	Graph *graph.Graph

	// Workflow is nil while the workflow aggregates have not arrived.
	Workflow *schema.Workflow

	// Selection is the id of the selected node, or "".
	Selection string

	// generations maps node ids to the generation they were inserted with.
	generations map[string]uint64
}

// Loaded reports whether a graph is loaded.
func (s *Snapshot) Loaded() bool {
	return s != nil && s.Graph != nil
}

// Context returns the workflow context cards are rendered against, or nil
// when no graph is loaded.
func (s *Snapshot) Context() *diagram.WorkflowContext {
	if !s.Loaded() {
		return nil
	}
	return &diagram.WorkflowContext{
		WorkflowID: s.WorkflowID,
		Workflow:   s.Workflow,
		Loaded:     s.Workflow != nil,
		SelectedID: s.Selection,
	}
}

// Document returns the wire form of the snapshot's graph, or nil when no
// graph is loaded.
func (s *Snapshot) Document() *schema.GraphDocument {
	if !s.Loaded() {
		return nil
	}
	doc := s.Graph.Document()
	doc.ID = s.WorkflowID
	doc.Title = s.Title
	doc.Workflow = s.Workflow
	return &doc
}

// Generation returns the generation of a node, 0 if absent.
func (s *Snapshot) Generation(nodeID string) uint64 {
	return s.generations[nodeID]
}

// next returns a shallow copy of s with the version bumped.
func (s *Snapshot) next() *Snapshot {
	c := *s
	c.Version++
	return &c
}

func (s *Snapshot) withGeneration(nodeID string, gen uint64) map[string]uint64 {
	m := make(map[string]uint64, len(s.generations)+1)
	for k, v := range s.generations {
		m[k] = v
	}
	m[nodeID] = gen
	return m
}

func (s *Snapshot) withoutGeneration(nodeID string) map[string]uint64 {
	m := make(map[string]uint64, len(s.generations))
	for k, v := range s.generations {
		if k != nodeID {
			m[k] = v
		}
	}
	return m
}

// View is the wire form of a snapshot.
type View struct {
	Version    uint64                `json:"version"`
	WorkflowID string                `json:"workflow_id"`
	Selection  string                `json:"selection,omitempty"`
	Document   *schema.GraphDocument `json:"document,omitempty"`
}

// View returns the wire form of s.
func (s *Snapshot) View() View {
	return View{
		Version:    s.Version,
		WorkflowID: s.WorkflowID,
		Selection:  s.Selection,
		Document:   s.Document(),
	}
}
