// gen-diagrams generates sample diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/flowcanvas/internal/diagram"
	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/internal/icons"
	"github.com/rendis/flowcanvas/pkg/schema"
)

func main() {
	// Support workflow: webhook trigger → classify → branch → open case / reply
	doc := &schema.GraphDocument{
		ID:    "support-inbox",
		Title: "Support inbox",
		Nodes: []schema.NodeDocument{
			{ID: "inbound", Kind: schema.NodeKindTrigger, Type: "Webhook", Title: "Inbound email", Status: schema.NodeStatusOnline, IsConfigured: true, EntrypointID: "ep-inbound"},
			{ID: "classify", Kind: schema.NodeKindAction, Type: "AI Copilot", Title: "Classify request", Status: schema.NodeStatusOnline, NumberOfEvents: 42},
			{ID: "urgent", Kind: schema.NodeKindAction, Type: "If Condition", Title: "Urgent?", Status: schema.NodeStatusOnline, NumberOfEvents: 42},
			{ID: "open-case", Kind: schema.NodeKindAction, Type: "Open Case", Title: "Open case", Status: schema.NodeStatusError, NumberOfEvents: 3},
			{ID: "reply", Kind: schema.NodeKindAction, Type: "Send Email", Title: "Auto reply", Status: schema.NodeStatusOffline},
		},
		Edges: []schema.EdgeDocument{
			{Source: "inbound", Target: "classify"},
			{Source: "classify", Target: "urgent"},
			{Source: "urgent", Target: "open-case"},
			{Source: "urgent", Target: "reply"},
		},
		Workflow: &schema.Workflow{
			Webhook: schema.Webhook{
				ID:            "wh-1",
				Status:        schema.NodeStatusOnline,
				Method:        "POST",
				URL:           "https://hooks.example.com/support",
				EntrypointRef: "ep-inbound",
			},
			Schedules: []schema.Schedule{{ID: "nightly", Cron: "0 2 * * *", EntrypointRef: "ep-inbound"}},
		},
	}

	g, err := graph.FromDocument(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build error: %v\n", err)
		os.Exit(1)
	}
	wf := &diagram.WorkflowContext{WorkflowID: doc.ID, Workflow: doc.Workflow, Loaded: true, SelectedID: "classify"}
	model := diagram.NewRenderer(icons.DefaultRegistry(), diagram.WithIntents(true)).Build(doc.Title, g, wf)

	outDir := filepath.Join("docs", "assets")
	os.MkdirAll(outDir, 0o755)
	ctx := context.Background()

	// ASCII (mermaid-ascii with built-in fallback)
	home, _ := os.UserHomeDir()
	binDir := filepath.Join(home, ".flowcanvas", "bin")
	ascii := diagram.RenderASCIIAuto(ctx, model, binDir)
	os.WriteFile(filepath.Join(outDir, "diagram-ascii.txt"), []byte(ascii), 0o644)
	fmt.Println("=== ASCII ===")
	fmt.Println(ascii)

	mermaid := diagram.RenderMermaid(model)
	os.WriteFile(filepath.Join(outDir, "diagram-mermaid.md"), []byte("```mermaid\n"+mermaid+"\n```\n"), 0o644)
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	png, imgErr := diagram.RenderImage(ctx, model)
	if imgErr != nil {
		fmt.Fprintf(os.Stderr, "image error: %v\n", imgErr)
		return
	}
	pngPath := filepath.Join(outDir, "diagram-sample.png")
	os.WriteFile(pngPath, png, 0o644)
	fmt.Printf("=== Image (PNG) ===\nWritten: %s (%d bytes)\n", pngPath, len(png))
}
