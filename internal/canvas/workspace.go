package canvas

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/rendis/flowcanvas/internal/aggregate"
	"github.com/rendis/flowcanvas/internal/streaming"
	"github.com/rendis/flowcanvas/internal/validation"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// Workspace holds the open canvases, one Store per workflow, loading them
// through a provider on first use.
type Workspace struct {
	provider  aggregate.Provider
	validator validation.Validator
	hub       streaming.EventHub
	logger    *slog.Logger

	mu     sync.RWMutex
	stores map[string]*Store
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithValidator checks every document before it is loaded.
func WithValidator(v validation.Validator) WorkspaceOption {
	return func(w *Workspace) { w.validator = v }
}

// WithLogger sets the logger handed to stores.
func WithLogger(l *slog.Logger) WorkspaceOption {
	return func(w *Workspace) { w.logger = l }
}

// NewWorkspace creates a workspace loading from provider and publishing on hub.
func NewWorkspace(provider aggregate.Provider, hub streaming.EventHub, opts ...WorkspaceOption) *Workspace {
	w := &Workspace{
		provider: provider,
		hub:      hub,
		logger:   slog.Default(),
		stores:   make(map[string]*Store),
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Open returns the store of workflowID, loading it if it is not open yet.
func (w *Workspace) Open(ctx context.Context, workflowID string) (*Store, error) {
	if s, ok := w.Get(workflowID); ok {
		return s, nil
	}

	doc, err := w.provider.Load(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if doc.ID == "" {
		doc.ID = workflowID
	}
	if w.validator != nil {
		if err := w.validator.ValidateDocument(doc); err != nil {
			return nil, err
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.stores[workflowID]; ok {
		return s, nil
	}
	s := NewStore(workflowID, w.hub, w.logger)
	if _, err := s.Load(ctx, doc); err != nil {
		return nil, err
	}
	w.stores[workflowID] = s
	w.logger.InfoContext(ctx, "workflow opened",
		slog.String("workflow_id", workflowID),
		slog.Int("nodes", s.Snapshot().Graph.Len()),
	)
	return s, nil
}

// Get returns an open store.
func (w *Workspace) Get(workflowID string) (*Store, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s, ok := w.stores[workflowID]
	return s, ok
}

// Close unloads and forgets a store.
func (w *Workspace) Close(ctx context.Context, workflowID string) error {
	w.mu.Lock()
	s, ok := w.stores[workflowID]
	delete(w.stores, workflowID)
	w.mu.Unlock()

	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q is not open", workflowID)
	}
	_, err := s.Unload(ctx)
	return err
}

// IDs returns the ids of the open workflows, sorted.
func (w *Workspace) IDs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	ids := make([]string, 0, len(w.stores))
	for id := range w.stores {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Available lists the workflows the provider can open, when it can list them.
func (w *Workspace) Available(ctx context.Context) ([]string, error) {
	l, ok := w.provider.(aggregate.Lister)
	if !ok {
		return w.IDs(), nil
	}
	return l.List(ctx)
}
