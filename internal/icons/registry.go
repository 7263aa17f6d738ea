package icons

import (
	"sort"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// Glyph names a visual icon in the design-system icon set.
type Glyph string

// Semantic glyphs used by node cards regardless of node type.
const (
	GlyphStatusDot     Glyph = "circle"
	GlyphBell          Glyph = "bell-dot"
	GlyphChevron       Glyph = "chevron-down"
	GlyphSearch        Glyph = "scan-search"
	GlyphEye           Glyph = "eye"
	GlyphWebhook       Glyph = "webhook"
	GlyphCalendar      Glyph = "calendar-check"
	GlyphConfigured    Glyph = "circle-check-big"
	GlyphNotConfigured Glyph = "layout-list"

	// GlyphFallback is rendered for node types with no mapping.
	GlyphFallback Glyph = "box"
)

// Registry maps node type keys to glyphs. It is immutable once constructed
// and safe for concurrent use.
type Registry struct {
	glyphs   map[string]Glyph
	fallback Glyph
}

// NewRegistry creates a Registry from a type→glyph mapping. The mapping is
// copied. Empty glyphs and an empty fallback are rejected.
func NewRegistry(mapping map[string]Glyph, fallback Glyph) (*Registry, error) {
	if fallback == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "icon registry fallback glyph is empty")
	}
	glyphs := make(map[string]Glyph, len(mapping))
	for typ, g := range mapping {
		if g == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "glyph for node type %q is empty", typ)
		}
		glyphs[typ] = g
	}
	return &Registry{glyphs: glyphs, fallback: fallback}, nil
}

// DefaultRegistry returns a new Registry holding the built-in node types.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(map[string]Glyph{
		"trigger":        "zap",
		"Webhook":        "webhook",
		"HTTP Request":   "globe",
		"Data Transform": "blend",
		"If Condition":   "split",
		"Open Case":      "shield-alert",
		"Receive Email":  "mail",
		"Send Email":     "send",
		"AI Copilot":     "sparkles",
	}, GlyphFallback)
	return r
}

// Resolve returns the glyph for a node type, or the fallback glyph when the
// type is unknown.
func (r *Registry) Resolve(nodeType string) Glyph {
	if g, ok := r.glyphs[nodeType]; ok {
		return g
	}
	return r.fallback
}

// Lookup returns the glyph for a node type and whether the type is known.
func (r *Registry) Lookup(nodeType string) (Glyph, bool) {
	g, ok := r.glyphs[nodeType]
	return g, ok
}

// Fallback returns the glyph used for unknown types.
func (r *Registry) Fallback() Glyph {
	return r.fallback
}

// Types returns all known node type keys, sorted.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.glyphs))
	for t := range r.glyphs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
