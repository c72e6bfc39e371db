// Package clock provides an MCP server with a current-time tool.
package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewServer creates a new MCP server with the clock tool.
func NewServer() *server.MCPServer {
	s := server.NewMCPServer(
		"clock",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	// Define the now tool with optional timezone and format arguments
	nowTool := mcp.NewTool("now",
		mcp.WithDescription("Returns the current time, optionally in a given IANA timezone and Go layout"),
		mcp.WithString("timezone",
			mcp.Description("IANA timezone name, e.g. Europe/Paris. Defaults to UTC"),
		),
		mcp.WithString("format",
			mcp.Description("Go time layout, e.g. 2006-01-02 15:04. Defaults to RFC3339"),
		),
	)

	// Add the tool with its handler
	s.AddTool(nowTool, nowHandler)

	return s
}

// nowHandler handles the now tool call.
func nowHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	loc := time.UTC
	if tz, ok := args["timezone"].(string); ok && tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid timezone: %v", err)), nil
		}
		loc = parsed
	}

	layout := time.RFC3339
	if f, ok := args["format"].(string); ok && f != "" {
		layout = f
	}

	return mcp.NewToolResultText(timeNow().In(loc).Format(layout)), nil
}

// timeNow is swapped out in tests.
var timeNow = time.Now
