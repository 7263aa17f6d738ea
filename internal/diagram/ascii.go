package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rendis/flowcanvas/pkg/schema"
)

// statusTag returns a short ASCII indicator for a card's status.
func statusTag(c *Card) string {
	if c.Degraded != "" {
		return "[DEGRADED]"
	}
	if c.Status.Label == "" {
		return ""
	}
	return "[" + strings.ToUpper(c.Status.Label) + "]"
}

// RenderASCII renders a DiagramModel as a text-based ASCII diagram.
// It uses a level-based layout with box-drawing characters.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", model.Title))
	}
	if len(model.Nodes) == 0 {
		b.WriteString("(empty canvas)\n")
		return b.String()
	}

	for levelIdx, level := range model.Levels {
		var boxes []asciiBox
		for _, nodeID := range level {
			card := model.Card(nodeID)
			if card == nil {
				continue
			}
			boxes = append(boxes, makeBox(card))
		}

		renderBoxRow(&b, boxes)

		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	for _, card := range model.Nodes {
		if card.Trigger != nil {
			renderTriggerSection(&b, card)
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a card.
func makeBox(card *Card) asciiBox {
	contentLines := []string{card.Title}
	if card.Title == "" {
		contentLines[0] = card.ID
	}
	if tag := statusTag(card); tag != "" {
		contentLines = append(contentLines, tag)
	}
	if card.Kind == schema.NodeKindAction && card.Degraded == "" {
		contentLines = append(contentLines, fmt.Sprintf("events: %d", card.Events))
	}

	maxLen := 0
	for _, line := range contentLines {
		if n := utf8.RuneCountInString(line); n > maxLen {
			maxLen = n
		}
	}
	width := maxLen + 4 // 2 border + 2 padding

	var lines []string
	top := "┌" + strings.Repeat("─", width-2) + "┐"
	bot := "└" + strings.Repeat("─", width-2) + "┘"
	lines = append(lines, top)
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-utf8.RuneCountInString(content))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, bot)

	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		if len(box.lines) > maxHeight {
			maxHeight = len(box.lines)
		}
	}

	for row := 0; row < maxHeight; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// renderConnector draws a vertical connector between levels.
func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}

// renderTriggerSection lists the webhook and schedules of a trigger card.
func renderTriggerSection(b *strings.Builder, card *Card) {
	t := card.Trigger
	b.WriteString(fmt.Sprintf("\n--- %s ---\n", card.ID))
	b.WriteString(fmt.Sprintf("  webhook: %s", t.Webhook.Status.Label))
	if t.Webhook.Method != "" {
		b.WriteString(" " + t.Webhook.Method)
	}
	b.WriteByte('\n')
	b.WriteString(fmt.Sprintf("  %s\n", t.Configured.Label))
	if t.Schedules.Empty() {
		b.WriteString(fmt.Sprintf("  schedules: %s\n", t.Schedules.Placeholder))
		return
	}
	b.WriteString("  schedules:\n")
	for _, row := range t.Schedules.Rows {
		b.WriteString(fmt.Sprintf("    %s\n", row.Cron))
	}
}
