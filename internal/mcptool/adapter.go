// Package mcptool connects Model Context Protocol servers to the runtime.
// Remote tools are exposed as step-traced callables, so an MCP tool invocation
// shows up in a session's chain of thought like any other wrapped function.
package mcptool

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/FabG/chainlit-ui/internal/logging"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// Status represents an MCP server's connection status.
type Status string

const (
	StatusConnected  Status = "connected"
	StatusDisabled   Status = "disabled"
	StatusFailed     Status = "failed"
	StatusConnecting Status = "connecting"
)

// ServerStatus is a snapshot of one configured server.
type ServerStatus struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	ToolCount int     `json:"toolCount"`
	Error     *string `json:"error,omitempty"`
}

// Adapter manages MCP server connections using the official MCP SDK.
type Adapter struct {
	mu        sync.RWMutex
	servers   map[string]*mcpServer
	sdkClient *sdkmcp.Client
	log       zerolog.Logger
}

// mcpServer represents one configured MCP server.
type mcpServer struct {
	name    string
	config  types.MCPConfig
	session *sdkmcp.ClientSession
	tools   []Tool
	status  Status
	error   string
}

// New creates an adapter with no servers configured.
func New() *Adapter {
	sdkClient := sdkmcp.NewClient(&sdkmcp.Implementation{
		Name:    "chainlit-ui",
		Version: "1.0.0",
	}, nil)

	return &Adapter{
		servers:   make(map[string]*mcpServer),
		sdkClient: sdkClient,
		log:       logging.Component("mcptool"),
	}
}

// AddServer connects to an MCP server and registers its tools. A config with
// Enabled=false is recorded as disabled without connecting. Connection
// failures are recorded so Status can report them, and returned.
func (a *Adapter) AddServer(ctx context.Context, name string, config types.MCPConfig) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.servers[name]; ok {
		return fmt.Errorf("server already exists: %s", name)
	}

	if config.Enabled != nil && !*config.Enabled {
		a.servers[name] = &mcpServer{name: name, config: config, status: StatusDisabled}
		return nil
	}

	server, err := a.connectServer(ctx, name, config)
	if err != nil {
		a.servers[name] = &mcpServer{name: name, config: config, status: StatusFailed, error: err.Error()}
		return err
	}

	a.servers[name] = server
	a.log.Info().Str("server", name).Int("tools", len(server.tools)).Msg("MCP server connected")
	return nil
}

// connectServer establishes a connection over the configured transport.
func (a *Adapter) connectServer(ctx context.Context, name string, config types.MCPConfig) (*mcpServer, error) {
	timeout := time.Duration(config.Timeout) * time.Millisecond
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	server := &mcpServer{
		name:   name,
		config: config,
		status: StatusConnecting,
	}

	switch config.Type {
	case "remote", "streamable", "sse":
		httpClient := httpClientWithHeaders(nil, config.Headers)
		var transports []struct {
			name      string
			transport sdkmcp.Transport
		}
		if config.Type != "sse" {
			transports = append(transports, struct {
				name      string
				transport sdkmcp.Transport
			}{name: "streamable", transport: &sdkmcp.StreamableClientTransport{Endpoint: config.URL, HTTPClient: httpClient}})
		}
		if config.Type != "streamable" {
			transports = append(transports, struct {
				name      string
				transport sdkmcp.Transport
			}{name: "sse", transport: &sdkmcp.SSEClientTransport{Endpoint: config.URL, HTTPClient: httpClient}})
		}

		var lastErr error
		for _, candidate := range transports {
			session, err := a.connectWithTransport(context.Background(), candidate.transport, timeout, server)
			if err != nil {
				lastErr = fmt.Errorf("%s transport: %w", candidate.name, err)
				continue
			}
			server.session = session
			server.status = StatusConnected
			return server, nil
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("failed to connect: unknown error")
		}
		return nil, lastErr

	case "local", "stdio":
		if len(config.Command) == 0 {
			return nil, fmt.Errorf("empty command")
		}

		connectCtx, connectCancel := context.WithTimeout(ctx, timeout)
		defer connectCancel()

		cmd := exec.Command(config.Command[0], config.Command[1:]...)
		cmd.Env = os.Environ()
		for k, v := range config.Environment {
			cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
		}

		session, err := a.connectWithTransport(connectCtx, &sdkmcp.CommandTransport{Command: cmd}, timeout, server)
		if err != nil {
			return nil, err
		}
		server.session = session
		server.status = StatusConnected
		return server, nil

	default:
		return nil, fmt.Errorf("unknown transport type: %s", config.Type)
	}
}

func (a *Adapter) connectWithTransport(ctx context.Context, transport sdkmcp.Transport, timeout time.Duration, server *mcpServer) (*sdkmcp.ClientSession, error) {
	session, err := a.sdkClient.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	listCtx, listCancel := context.WithTimeout(context.Background(), timeout)
	defer listCancel()
	if err := server.listTools(listCtx); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	return session, nil
}

func httpClientWithHeaders(base *http.Client, headers map[string]string) *http.Client {
	if base == nil {
		base = &http.Client{}
	}

	// Copy to avoid mutating caller-provided client
	client := *base
	client.Timeout = 0 // no global timeout; rely on per-request contexts

	if len(headers) == 0 {
		return &client
	}

	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	client.Transport = &headerRoundTripper{
		headers: headers,
		next:    transport,
	}

	return &client
}

type headerRoundTripper struct {
	headers map[string]string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	for k, v := range h.headers {
		cloned.Header.Set(k, v)
	}
	return h.next.RoundTrip(cloned)
}

// listTools fetches the server's tool list over the live session.
func (s *mcpServer) listTools(ctx context.Context) error {
	if s.session == nil {
		return fmt.Errorf("not connected")
	}

	result, err := s.session.ListTools(ctx, nil)
	if err != nil {
		return err
	}

	s.tools = make([]Tool, len(result.Tools))
	for i, t := range result.Tools {
		s.tools[i] = fromSDKTool(t)
	}
	return nil
}

// Tools returns the tools of every connected server, names prefixed with the
// server name.
func (a *Adapter) Tools() []Tool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var all []Tool
	for name, server := range a.servers {
		if server.status != StatusConnected {
			continue
		}
		for _, tool := range server.tools {
			all = append(all, Tool{
				Name:        sanitizeToolName(name) + "_" + sanitizeToolName(tool.Name),
				Description: tool.Description,
				InputSchema: tool.InputSchema,
			})
		}
	}
	return all
}

// Call executes a tool by its prefixed name and returns the concatenated text
// content of the result.
func (a *Adapter) Call(ctx context.Context, toolName string, args map[string]any) (string, error) {
	a.mu.RLock()
	var target *mcpServer
	var originalName string
	for name, server := range a.servers {
		if server.status != StatusConnected {
			continue
		}
		prefix := sanitizeToolName(name) + "_"
		if strings.HasPrefix(toolName, prefix) {
			target = server
			originalName = strings.TrimPrefix(toolName, prefix)
			for _, t := range server.tools {
				if sanitizeToolName(t.Name) == originalName {
					originalName = t.Name
					break
				}
			}
			break
		}
	}
	a.mu.RUnlock()

	if target == nil {
		return "", fmt.Errorf("no server found for tool: %s", toolName)
	}
	if target.session == nil {
		return "", fmt.Errorf("server not connected: %s", target.name)
	}

	result, err := target.session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      originalName,
		Arguments: args,
	})
	if err != nil {
		return "", err
	}

	if result.IsError {
		for _, content := range result.Content {
			if textContent, ok := content.(*sdkmcp.TextContent); ok {
				return "", fmt.Errorf("tool error: %s", textContent.Text)
			}
		}
		return "", fmt.Errorf("tool execution failed")
	}

	var output strings.Builder
	for _, content := range result.Content {
		if textContent, ok := content.(*sdkmcp.TextContent); ok {
			output.WriteString(textContent.Text)
		}
	}
	return output.String(), nil
}

// Status returns the status of every configured server.
func (a *Adapter) Status() []ServerStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var status []ServerStatus
	for name, server := range a.servers {
		s := ServerStatus{
			Name:      name,
			Status:    server.status,
			ToolCount: len(server.tools),
		}
		if server.error != "" {
			s.Error = &server.error
		}
		status = append(status, s)
	}
	return status
}

// RemoveServer disconnects and forgets a server.
func (a *Adapter) RemoveServer(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	server, ok := a.servers[name]
	if !ok {
		return fmt.Errorf("server not found: %s", name)
	}
	if server.session != nil {
		server.session.Close()
	}
	delete(a.servers, name)
	return nil
}

// Close disconnects every server.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, server := range a.servers {
		if server.session != nil {
			server.session.Close()
		}
	}
	a.servers = make(map[string]*mcpServer)
	return nil
}

// ServerCount returns the number of configured servers.
func (a *Adapter) ServerCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.servers)
}

// ConnectedCount returns the number of connected servers.
func (a *Adapter) ConnectedCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	count := 0
	for _, server := range a.servers {
		if server.status == StatusConnected {
			count++
		}
	}
	return count
}

// sanitizeToolName replaces non-alphanumeric chars with underscore.
func sanitizeToolName(name string) string {
	var result strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
		} else {
			result.WriteRune('_')
		}
	}
	return result.String()
}
