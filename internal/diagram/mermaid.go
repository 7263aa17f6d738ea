package diagram

import (
	"fmt"
	"strings"

	"github.com/rendis/flowcanvas/internal/status"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	for _, card := range model.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(card)))
	}

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n",
			mermaidSafeID(edge.From), label, mermaidSafeID(edge.To)))
	}

	b.WriteString("\n")
	b.WriteString("    classDef online fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef error fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")
	b.WriteString("    classDef offline fill:#6b6b6b,stroke:#4a4a4a,color:#fff\n")
	b.WriteString("    classDef configured fill:#047857,stroke:#065f46,color:#fff\n")
	b.WriteString("    classDef degraded fill:#4a4a4a,stroke:#333,color:#aaa,stroke-dasharray:5 5\n")
	b.WriteString("    classDef selected stroke:#f59e0b,stroke-width:3px\n")

	for _, card := range model.Nodes {
		if cls := mermaidStatusClass(card); cls != "" {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(card.ID), cls))
		}
		if card.Selected {
			b.WriteString(fmt.Sprintf("    class %s selected\n", mermaidSafeID(card.ID)))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition. Triggers are drawn as
// stadiums, actions as rectangles.
func mermaidNodeDef(card *Card) string {
	id := mermaidSafeID(card.ID)
	label := mermaidLabel(card)

	if card.Kind == schema.NodeKindTrigger {
		return fmt.Sprintf("%s([%q])", id, label)
	}
	return fmt.Sprintf("%s[%q]", id, label)
}

func mermaidLabel(card *Card) string {
	label := card.Title
	if label == "" {
		label = card.ID
	}
	if card.Kind == schema.NodeKindAction && card.Degraded == "" {
		label = fmt.Sprintf("%s (%d)", label, card.Events)
	}
	return strings.ReplaceAll(label, `"`, "'")
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots, dashes, colons and spaces with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_", ":", "_")
	return r.Replace(id)
}

// mermaidStatusClass maps a card's projected color to a Mermaid class name.
func mermaidStatusClass(card *Card) string {
	if card.Degraded != "" {
		return "degraded"
	}
	switch card.Status.Color {
	case status.ColorGreen:
		return "online"
	case status.ColorRed:
		return "error"
	case status.ColorEmerald:
		return "configured"
	case status.ColorGray:
		return "offline"
	default:
		return ""
	}
}
