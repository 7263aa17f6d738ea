package aggregate

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// StaticProvider serves documents held in memory. It is used by tests and by
// the sample generator.
type StaticProvider struct {
	mu   sync.RWMutex
	docs map[string]*schema.GraphDocument
}

// NewStaticProvider creates a provider serving docs, keyed by their ids.
func NewStaticProvider(docs ...*schema.GraphDocument) *StaticProvider {
	p := &StaticProvider{docs: make(map[string]*schema.GraphDocument, len(docs))}
	for _, d := range docs {
		p.Put(d)
	}
	return p
}

// Put adds or replaces a document.
func (p *StaticProvider) Put(doc *schema.GraphDocument) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[doc.ID] = doc
}

// Load returns a copy of the stored document.
func (p *StaticProvider) Load(ctx context.Context, workflowID string) (*schema.GraphDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.RLock()
	doc, ok := p.docs[workflowID]
	p.mu.RUnlock()
	if !ok {
		return nil, notFound(workflowID)
	}
	return cloneDocument(doc), nil
}

// List returns the ids of all stored documents, sorted.
func (p *StaticProvider) List(context.Context) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.docs))
	for id := range p.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func cloneDocument(doc *schema.GraphDocument) *schema.GraphDocument {
	c := *doc
	c.Nodes = slices.Clone(doc.Nodes)
	c.Edges = slices.Clone(doc.Edges)
	if doc.Workflow != nil {
		wf := *doc.Workflow
		wf.Schedules = slices.Clone(doc.Workflow.Schedules)
		c.Workflow = &wf
	}
	return &c
}

var (
	_ Provider = (*StaticProvider)(nil)
	_ Lister   = (*StaticProvider)(nil)
)
