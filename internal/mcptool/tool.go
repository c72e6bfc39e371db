package mcptool

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/FabG/chainlit-ui/internal/runtime"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// Tool describes one remote MCP tool. Name carries the server prefix, so two
// servers exposing a "search" tool stay distinguishable.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// fromSDKTool converts an SDK tool description into the adapter's wire shape.
func fromSDKTool(t *sdkmcp.Tool) Tool {
	schema, _ := json.Marshal(t.InputSchema)
	return Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: schema,
	}
}

// BoundTool is a remote tool bound to the adapter as a step-traced callable.
// Invoking it inside a session task opens a tool step whose input is the
// argument map and whose output is the tool's text result.
type BoundTool struct {
	Tool
	Invoke func(ctx context.Context, args map[string]any) (string, error)
}

// Bind returns every connected tool as a step-traced callable. The wrapping
// is done once per tool; invocations trace under whatever session the caller's
// context carries.
func (a *Adapter) Bind() []BoundTool {
	tools := a.Tools()
	bound := make([]BoundTool, len(tools))
	for i, t := range tools {
		bound[i] = BoundTool{Tool: t, Invoke: a.Callable(t.Name)}
	}
	return bound
}

// Callable wraps one tool invocation as a traced step. The step closes with
// the call on every exit path, including cancellation mid-call.
func (a *Adapter) Callable(toolName string) func(ctx context.Context, args map[string]any) (string, error) {
	return runtime.Wrap(types.StepTypeTool, toolName, func(ctx context.Context, args map[string]any) (string, error) {
		return a.Call(ctx, toolName, args)
	})
}
