package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/internal/diagram"
	"github.com/rendis/flowcanvas/internal/expressions"
	"github.com/rendis/flowcanvas/internal/intents"
)

// CanvasServerDeps holds the dependencies for creating a CanvasServer.
type CanvasServerDeps struct {
	Workspace     *canvas.Workspace
	Renderer      *diagram.Renderer
	Intents       intents.Dispatcher
	Engines       []expressions.Engine
	MermaidBinDir string
	Logger        *slog.Logger
}

// CanvasServer wraps an MCP server with canvas tool handlers.
type CanvasServer struct {
	workspace     *canvas.Workspace
	renderer      *diagram.Renderer
	intents       intents.Dispatcher
	engines       []expressions.Engine
	mermaidBinDir string
	logger        *slog.Logger
	sessions      *SessionRegistry
	notifier      EventNotifier
	watches       *watchSet
	mcpServer     *server.MCPServer
}

// NewCanvasServer creates a CanvasServer with every canvas tool registered.
func NewCanvasServer(deps CanvasServerDeps) *CanvasServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &CanvasServer{
		workspace:     deps.Workspace,
		renderer:      deps.Renderer,
		intents:       deps.Intents,
		engines:       deps.Engines,
		mermaidBinDir: deps.MermaidBinDir,
		logger:        logger,
		sessions:      NewSessionRegistry(),
		watches:       newWatchSet(),
	}

	hooks := &server.Hooks{}
	hooks.AddOnUnregisterSession(func(_ context.Context, session server.ClientSession) {
		s.sessions.Remove(session.SessionID())
	})

	mcpSrv := server.NewMCPServer(
		"flowcanvas",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithHooks(hooks),
		server.WithInstructions("flowcanvas shows workflow graphs as node cards. Use canvas.open to load a workflow, canvas.diagram to draw it, canvas.node to inspect one card, canvas.connect to join two nodes, canvas.find to search nodes with an expr or CEL predicate, canvas.intent to search events or view logs of a node, and canvas.watch to be notified of changes."),
	)
	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	s.notifier = NewSessionNotifier(mcpSrv, s.sessions)
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *CanvasServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *CanvasServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *CanvasServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: openTool(), Handler: s.handleOpen},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: nodeTool(), Handler: s.handleNode},
		{Tool: connectTool(), Handler: s.handleConnect},
		{Tool: findTool(), Handler: s.handleFind},
		{Tool: intentTool(), Handler: s.handleIntent},
		{Tool: watchTool(), Handler: s.handleWatch},
	}
}

// --- Tool definitions ---

func openTool() mcp.Tool {
	return mcp.NewTool("canvas.open",
		mcp.WithDescription("Load a workflow onto the canvas"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of the workflow to open")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("canvas.diagram",
		mcp.WithDescription("Draw an open workflow as node cards. Returns text, ASCII art, Mermaid flowchart syntax, the card model as JSON, or a PNG image"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of an open workflow")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("text", "ascii", "mermaid", "json", "image"),
			mcp.Description("Output format: text (boxes), ascii (mermaid-ascii when installed), mermaid, json (card model) or image (PNG)"),
		),
	)
}

func nodeTool() mcp.Tool {
	return mcp.NewTool("canvas.node",
		mcp.WithDescription("Render the card of one node"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of an open workflow")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("ID of the node")),
	)
}

func connectTool() mcp.Tool {
	return mcp.NewTool("canvas.connect",
		mcp.WithDescription("Connect the output handle of one node to the input handle of another"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of an open workflow")),
		mcp.WithString("source", mcp.Required(), mcp.Description("Source node ID")),
		mcp.WithString("target", mcp.Required(), mcp.Description("Target node ID")),
		mcp.WithString("source_handle", mcp.Description("Source handle ID (default: the node's output handle)")),
		mcp.WithString("target_handle", mcp.Description("Target handle ID (default: the node's input handle)")),
	)
}

func findTool() mcp.Tool {
	return mcp.NewTool("canvas.find",
		mcp.WithDescription("Find the nodes matching a predicate"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of an open workflow")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Boolean predicate over id, title, type, kind, status, events, configured, selected, incoming, outgoing (expr) or node.* and workflow.* (cel)")),
		mcp.WithString("engine", mcp.Enum("expr", "cel"), mcp.Description("Expression engine (default: expr)")),
	)
}

func intentTool() mcp.Tool {
	return mcp.NewTool("canvas.intent",
		mcp.WithDescription("Search the events or view the logs of a node"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of an open workflow")),
		mcp.WithString("node_id", mcp.Required(), mcp.Description("ID of the node")),
		mcp.WithString("intent", mcp.Required(),
			mcp.Enum("intent.search_events", "intent.view_logs"),
			mcp.Description("Menu action to emit"),
		),
	)
}

func watchTool() mcp.Tool {
	return mcp.NewTool("canvas.watch",
		mcp.WithDescription("Receive a notification whenever an open workflow changes"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("ID of an open workflow")),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("ID of the watching agent")),
	)
}
