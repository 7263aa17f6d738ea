package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rendis/flowcanvas/internal/canvas"
	"github.com/rendis/flowcanvas/internal/diagram"
	"github.com/rendis/flowcanvas/internal/expressions"
	"github.com/rendis/flowcanvas/internal/graph"
	"github.com/rendis/flowcanvas/internal/intents"
	"github.com/rendis/flowcanvas/pkg/schema"
)

// handleOpen loads a workflow and returns its snapshot.
func (s *CanvasServer) handleOpen(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError("workflow_id is required"), nil
	}
	st, err := s.workspace.Open(ctx, workflowID)
	if err != nil {
		return toolError("open failed", err), nil
	}
	return marshalResult(st.Snapshot().View())
}

// handleDiagram renders an open workflow in the requested format.
func (s *CanvasServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	st, res := s.openStore(req)
	if res != nil {
		return res, nil
	}

	snap := st.Snapshot()
	model := s.renderer.Build(snap.Title, snap.Graph, snap.Context())

	switch format {
	case "text":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCIIAuto(ctx, model, s.mermaidBinDir)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	case "json":
		return marshalResult(model)
	case "image":
		png, imgErr := diagram.RenderImage(ctx, model)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultImage("diagram of "+snap.WorkflowID, base64.StdEncoding.EncodeToString(png), "image/png"), nil
	default:
		return mcp.NewToolResultError("format must be text, ascii, mermaid, json, or image"), nil
	}
}

// handleNode returns the card of one node.
func (s *CanvasServer) handleNode(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError("node_id is required"), nil
	}
	st, res := s.openStore(req)
	if res != nil {
		return res, nil
	}
	n, ok := st.NodeByID(nodeID)
	if !ok {
		return toolError("node lookup failed", schema.NewErrorf(schema.ErrCodeNotFound, "node %q not found", nodeID)), nil
	}
	return marshalResult(s.renderer.RenderNode(n, st.Snapshot().Context()))
}

// handleConnect joins two handles. A refused connection is a tool error
// carrying the INVALID_CONNECTION code and reason.
func (s *CanvasServer) handleConnect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source, err := req.RequireString("source")
	if err != nil {
		return mcp.NewToolResultError("source is required"), nil
	}
	target, err := req.RequireString("target")
	if err != nil {
		return mcp.NewToolResultError("target is required"), nil
	}
	st, res := s.openStore(req)
	if res != nil {
		return res, nil
	}

	snap, edge, err := st.Connect(ctx, graph.Connection{
		Source:       source,
		SourceHandle: req.GetString("source_handle", ""),
		Target:       target,
		TargetHandle: req.GetString("target_handle", ""),
	})
	if err != nil {
		return toolError("connect failed", err), nil
	}
	return marshalResult(map[string]any{"edge": edge, "version": snap.Version})
}

// handleFind evaluates a predicate on every node.
func (s *CanvasServer) handleFind(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	engine, err := expressions.ByName(req.GetString("engine", ""), s.engines...)
	if err != nil {
		return toolError("engine lookup failed", err), nil
	}
	st, res := s.openStore(req)
	if res != nil {
		return res, nil
	}

	nodes, err := st.Find(ctx, engine, query)
	if err != nil {
		return toolError("find failed", err), nil
	}
	docs := make([]schema.NodeDocument, 0, len(nodes))
	for _, n := range nodes {
		docs = append(docs, n.Document())
	}
	return marshalResult(map[string]any{"engine": engine.Name(), "nodes": docs})
}

// handleIntent emits a node menu intent.
func (s *CanvasServer) handleIntent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.intents == nil {
		return mcp.NewToolResultError("no intent dispatcher configured"), nil
	}
	nodeID, err := req.RequireString("node_id")
	if err != nil {
		return mcp.NewToolResultError("node_id is required"), nil
	}
	intent, err := req.RequireString("intent")
	if err != nil {
		return mcp.NewToolResultError("intent is required"), nil
	}
	st, res := s.openStore(req)
	if res != nil {
		return res, nil
	}
	if _, ok := st.NodeByID(nodeID); !ok {
		return toolError("node lookup failed", schema.NewErrorf(schema.ErrCodeNotFound, "node %q not found", nodeID)), nil
	}

	params, err := s.intents.Dispatch(ctx, intents.Request{Intent: intent, WorkflowID: st.WorkflowID(), NodeID: nodeID})
	if err != nil {
		return toolError("dispatch failed", err), nil
	}
	return marshalResult(map[string]any{"intent": intent, "params": params})
}

// --- Helpers ---

// openStore resolves the workflow_id argument to an open canvas. On failure
// it returns the tool error to send back.
func (s *CanvasServer) openStore(req mcp.CallToolRequest) (*canvas.Store, *mcp.CallToolResult) {
	workflowID, err := req.RequireString("workflow_id")
	if err != nil {
		return nil, mcp.NewToolResultError("workflow_id is required")
	}
	st, ok := s.workspace.Get(workflowID)
	if !ok {
		return nil, toolError("workflow lookup failed",
			schema.NewErrorf(schema.ErrCodeNotFound, "workflow %q is not open; call canvas.open first", workflowID))
	}
	return st, nil
}

// toolError formats err as a tool error result.
func toolError(what string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s: %v", what, err))
}

// captureSession maps the agent ID to its current MCP session for notifications.
func (s *CanvasServer) captureSession(ctx context.Context, agentID string) bool {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.sessions.Register(agentID, session.SessionID())
		return true
	}
	return false
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
