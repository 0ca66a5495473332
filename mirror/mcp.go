package mirror

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/dommirror/host"
)

// RegisterMCP registers mirror tools on an MCP server.
func (c *Controller) RegisterMCP(srv *mcp.Server) {
	c.registerWidgetsTool(srv)
	c.registerClickTool(srv)
	c.registerSessionsTool(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// registerTool adapts a JSON endpoint to an MCP tool handler. Decode and
// endpoint errors are reported as tool errors, not protocol errors.
func registerTool[Req any](srv *mcp.Server, tool *mcp.Tool, endpoint func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}
		resp, err := endpoint(ctx, &r)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// --- widgets ---

func (c *Controller) registerWidgetsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mirror_widgets",
		Description: "List the toolbar widgets mirrored from the content document.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	registerTool(srv, tool, func(_ context.Context, _ *struct{}) (any, error) {
		widgets := c.Widgets()
		if widgets == nil {
			widgets = []host.WidgetState{}
		}
		return map[string]any{"widgets": widgets}, nil
	})
}

// --- click ---

type clickReq struct {
	ID string `json:"id"`
	host.NativeEvent
}

func (c *Controller) registerClickTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mirror_click",
		Description: "Click a mirrored widget; the click is dispatched to the content element's listeners.",
		InputSchema: inputSchema(map[string]any{
			"id":        map[string]any{"type": "string", "description": "Widget id"},
			"button":    map[string]any{"type": "integer", "description": "Mouse button index"},
			"ctrl_key":  map[string]any{"type": "boolean"},
			"alt_key":   map[string]any{"type": "boolean"},
			"shift_key": map[string]any{"type": "boolean"},
			"meta_key":  map[string]any{"type": "boolean"},
		}, []string{"id"}),
	}
	registerTool(srv, tool, func(ctx context.Context, r *clickReq) (any, error) {
		if r.ID == "" {
			return nil, fmt.Errorf("id is required")
		}
		if err := c.Click(ctx, r.ID, r.NativeEvent); err != nil {
			return nil, err
		}
		return map[string]string{"status": "clicked", "id": r.ID}, nil
	})
}

// --- sessions ---

func (c *Controller) registerSessionsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "mirror_sessions",
		Description: "List live observation sessions.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	registerTool(srv, tool, func(_ context.Context, _ *struct{}) (any, error) {
		return map[string]any{"sessions": c.Sessions()}, nil
	})
}
