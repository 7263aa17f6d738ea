// Package status derives the user-facing status of a node from its raw state.
// Projections are never stored; they are recomputed on every render.
package status

import (
	"unicode"
	"unicode/utf8"

	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/internal/icons"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// Color is the indicator color class.
type Color string

const (
	ColorGreen   Color = "green"
	ColorRed     Color = "red"
	ColorGray    Color = "gray"
	ColorEmerald Color = "emerald"
)

// Tone tells whether an indicator affirms something or is neutral.
type Tone string

const (
	ToneAffirmative Tone = "affirmative"
	ToneNeutral     Tone = "neutral"
)

// Labels for the trigger configured row.
const (
	LabelConfigured    = "Configured"
	LabelNotConfigured = "Not configured"
)

// Projection is the presentation derived from a node's raw state.
type Projection struct {
	Label string      `json:"label"`
	Color Color       `json:"color"`
	Icon  icons.Glyph `json:"icon"`
	Tone  Tone        `json:"tone"`
	Muted bool        `json:"muted,omitempty"`
}

// Project derives the status projection of a node. Actions project their run
// status; triggers project whether they are configured.
func Project(n *graph.Node) Projection {
	switch n.Kind {
	case schema.NodeKindAction:
		return ProjectAction(n.Action.Status)
	case schema.NodeKindTrigger:
		return ProjectConfigured(n.Trigger.IsConfigured)
	default:
		return Projection{Color: ColorGray, Icon: icons.GlyphStatusDot, Tone: ToneNeutral}
	}
}

// ProjectAction maps an action status to its dot color and label.
func ProjectAction(s schema.NodeStatus) Projection {
	p := Projection{
		Label: Capitalize(string(s)),
		Icon:  icons.GlyphStatusDot,
		Tone:  ToneNeutral,
	}
	switch s {
	case schema.NodeStatusOnline:
		p.Color = ColorGreen
		p.Tone = ToneAffirmative
	case schema.NodeStatusError:
		p.Color = ColorRed
	default:
		p.Color = ColorGray
	}
	return p
}

// ProjectConfigured maps the trigger configured flag to its glyph. The label
// follows the flag.
func ProjectConfigured(configured bool) Projection {
	if configured {
		return Projection{
			Label: LabelConfigured,
			Color: ColorEmerald,
			Icon:  icons.GlyphConfigured,
			Tone:  ToneAffirmative,
		}
	}
	return Projection{
		Label: LabelNotConfigured,
		Color: ColorGray,
		Icon:  icons.GlyphNotConfigured,
		Tone:  ToneNeutral,
	}
}

// ProjectWebhook maps the workflow webhook status to the trigger's webhook
// badge. Anything but online, including a webhook not loaded yet, is muted.
func ProjectWebhook(w schema.Webhook) Projection {
	if w.Status == schema.NodeStatusOnline {
		return Projection{
			Label: Capitalize(string(w.Status)),
			Color: ColorEmerald,
			Icon:  icons.GlyphWebhook,
			Tone:  ToneAffirmative,
		}
	}
	label := Capitalize(string(w.Status))
	if label == "" {
		label = Capitalize(string(schema.NodeStatusOffline))
	}
	return Projection{
		Label: label,
		Color: ColorGray,
		Icon:  icons.GlyphWebhook,
		Tone:  ToneNeutral,
		Muted: true,
	}
}

// Capitalize upper-cases only the first character of s.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return ""
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
