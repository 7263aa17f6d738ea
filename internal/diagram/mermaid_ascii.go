package diagram

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rendis/flowcanvas/internal/status"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// RenderASCIIAuto tries to render using the mermaid-ascii CLI binary if available,
// falling back to the hand-rolled RenderASCII renderer.
func RenderASCIIAuto(ctx context.Context, model *DiagramModel, binDir string) string {
	if binDir != "" {
		binPath := filepath.Join(binDir, "mermaid-ascii")
		if _, err := os.Stat(binPath); err == nil {
			result, err := RenderASCIIViaCLI(ctx, model, binPath)
			if err == nil {
				return result
			}
		}
	}
	return RenderASCII(model)
}

// RenderASCIIViaCLI pipes simplified Mermaid syntax through the mermaid-ascii binary.
func RenderASCIIViaCLI(ctx context.Context, model *DiagramModel, binPath string) (string, error) {
	mermaid := RenderMermaidForCLI(model)

	cmd := exec.CommandContext(ctx, binPath)
	cmd.Stdin = strings.NewReader(mermaid)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("mermaid-ascii: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// RenderMermaidForCLI generates simplified Mermaid syntax compatible with the
// mermaid-ascii CLI tool. Unlike RenderMermaid, this avoids node declarations
// with ["label"] syntax (which mermaid-ascii cannot parse) and instead embeds
// status information directly in edge-referenced node IDs. Cards without
// edges are emitted on their own line so they still appear.
func RenderMermaidForCLI(model *DiagramModel) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	displayID := make(map[string]string, len(model.Nodes))
	for _, card := range model.Nodes {
		displayID[card.ID] = cliNodeID(card)
	}

	resolve := func(id string) string {
		if d, ok := displayID[id]; ok {
			return d
		}
		return mermaidSafeID(id)
	}

	connected := make(map[string]bool, len(model.Nodes))
	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n", resolve(edge.From), label, resolve(edge.To)))
		connected[edge.From] = true
		connected[edge.To] = true
	}

	for _, card := range model.Nodes {
		if !connected[card.ID] {
			b.WriteString(fmt.Sprintf("    %s\n", resolve(card.ID)))
		}
	}

	return b.String()
}

// cliNodeID builds a display ID for the mermaid-ascii CLI.
// Embeds the status tag and event count into the ID for visibility.
func cliNodeID(card *Card) string {
	id := card.Title
	if id == "" {
		id = card.ID
	}

	if tag := cliStatusTag(card); tag != "" {
		id += "-" + tag
	}
	if card.Kind == schema.NodeKindAction && card.Events > 0 {
		id += fmt.Sprintf("-%dev", card.Events)
	}

	id = strings.ReplaceAll(id, " ", "-")
	return id
}

// cliStatusTag returns a compact status indicator for node IDs.
func cliStatusTag(card *Card) string {
	if card.Degraded != "" {
		return "DEGRADED"
	}
	switch card.Status.Color {
	case status.ColorGreen:
		return "ON"
	case status.ColorRed:
		return "ERR"
	case status.ColorEmerald:
		return "CFG"
	case status.ColorGray:
		return "OFF"
	default:
		return ""
	}
}
