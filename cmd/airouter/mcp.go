package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/pulsewatch/airouter/pkg/core"
)

// runMCP serves the router as an MCP tool over stdio so chat hosts can
// call route_query directly.
func runMCP(ctx context.Context, configPath string) error {
	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	s := server.NewMCPServer("airouter", version)

	tool := mcp.NewTool("route_query",
		mcp.WithDescription("Route a monitoring question across the backend AI services and return a unified, confidence-scored answer."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to answer."),
		),
		mcp.WithBoolean("parallel",
			mcp.Description("Query all target services concurrently instead of stopping at the first answer."),
		),
	)

	s.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, _ := request.Params.Arguments.(map[string]any)
		query, _ := args["query"].(string)
		if query == "" {
			return mcp.NewToolResultError("query is required"), nil
		}
		parallel, _ := args["parallel"].(bool)

		req := core.NewRequest(query, a.targets...)
		req.FallbackChain = a.fallback
		req.Parallel = parallel

		resp := a.router.Route(ctx, req)
		raw, err := json.Marshal(resp)
		if err != nil {
			return nil, fmt.Errorf("encode response: %w", err)
		}
		return mcp.NewToolResultText(string(raw)), nil
	})

	return server.ServeStdio(s)
}
