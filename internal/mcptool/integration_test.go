package mcptool

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabG/chainlit-ui/internal/runtime"
	"github.com/FabG/chainlit-ui/pkg/mcpserver/clock"
	"github.com/FabG/chainlit-ui/pkg/types"
)

// startClockSSE runs the clock MCP server over SSE on a free port and returns
// its endpoint URL.
func startClockSSE(t *testing.T) string {
	t.Helper()

	listener, err := net.Listen("tcp", "localhost:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	listener.Close()

	sseServer := server.NewSSEServer(clock.NewServer(),
		server.WithBaseURL(fmt.Sprintf("http://%s", addr)),
	)
	go func() {
		if err := sseServer.Start(addr); err != nil {
			t.Logf("SSE server stopped: %v", err)
		}
	}()
	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sseServer.Shutdown(shutdownCtx)
	})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return fmt.Sprintf("http://%s/sse", addr)
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("clock SSE server did not start")
	return ""
}

// TestAdapter_ClockSSE connects the adapter to the clock server over SSE and
// executes the now tool through it.
func TestAdapter_ClockSSE(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sseURL := startClockSSE(t)

	a := New()
	defer a.Close()

	err := a.AddServer(ctx, "clock", types.MCPConfig{
		Type:    "sse",
		URL:     sseURL,
		Timeout: 10000,
	})
	require.NoError(t, err, "failed to add clock server")
	assert.Equal(t, 1, a.ConnectedCount())

	tools := a.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "clock_now", tools[0].Name)
	assert.NotEmpty(t, tools[0].InputSchema)

	out, err := a.Call(ctx, "clock_now", map[string]any{"format": "2006-01-02"})
	require.NoError(t, err)
	assert.Equal(t, time.Now().UTC().Format("2006-01-02"), out)

	// A tool error surfaces as a Go error.
	_, err = a.Call(ctx, "clock_now", map[string]any{"timezone": "Nowhere/Land"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid timezone")
}

// TestAdapter_BoundToolTracesStep verifies that invoking a bound tool inside a
// session task records a tool step in the chain of thought.
func TestAdapter_BoundToolTracesStep(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sseURL := startClockSSE(t)

	a := New()
	defer a.Close()
	require.NoError(t, a.AddServer(ctx, "clock", types.MCPConfig{
		Type:    "sse",
		URL:     sseURL,
		Timeout: 10000,
	}))

	bound := a.Bind()
	require.Len(t, bound, 1)

	reg := runtime.NewRegistry(nil, runtime.WithLogger(zerolog.Nop()))
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		reg.Shutdown(shutdownCtx)
	}()

	s, err := reg.Create(ctx, runtime.CreateOptions{})
	require.NoError(t, err)

	sessionCtx := runtime.WithSession(ctx, s)
	out, err := bound[0].Invoke(sessionCtx, map[string]any{"format": "15:04"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	steps := s.Steps()
	require.Len(t, steps, 1, "the tool call should leave exactly one step")
	assert.Equal(t, types.StepTypeTool, steps[0].Type)
	assert.Equal(t, "clock_now", steps[0].Name)
	assert.Equal(t, types.StepSucceeded, steps[0].Status)
	assert.Equal(t, out, steps[0].Output.Text())
}
