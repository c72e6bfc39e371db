package clock

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callNow(t *testing.T, args map[string]any) *mcp.CallToolResult {
	t.Helper()

	server := NewServer()
	nowTool := server.GetTool("now")
	require.NotNil(t, nowTool, "now tool should exist")

	request := mcp.CallToolRequest{}
	request.Params.Name = "now"
	request.Params.Arguments = args

	result, err := nowTool.Handler(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	textContent, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "content should be text")
	return textContent.Text
}

func TestClockServer_Now(t *testing.T) {
	fixed := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)
	orig := timeNow
	timeNow = func() time.Time { return fixed }
	defer func() { timeNow = orig }()

	tests := []struct {
		name     string
		args     map[string]any
		expected string
	}{
		{
			name:     "defaults to UTC RFC3339",
			args:     map[string]any{},
			expected: "2024-06-15T12:30:00Z",
		},
		{
			name:     "custom format",
			args:     map[string]any{"format": "2006-01-02 15:04"},
			expected: "2024-06-15 12:30",
		},
		{
			name:     "timezone offset applied",
			args:     map[string]any{"timezone": "America/New_York", "format": "15:04"},
			expected: "08:30",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callNow(t, tt.args)
			assert.False(t, result.IsError, "result should not be an error")
			assert.Equal(t, tt.expected, resultText(t, result))
		})
	}
}

func TestClockServer_Now_InvalidTimezone(t *testing.T) {
	result := callNow(t, map[string]any{"timezone": "Nowhere/Land"})
	assert.True(t, result.IsError, "invalid timezone should produce a tool error")
	assert.Contains(t, resultText(t, result), "invalid timezone")
}

func TestClockServer_HasNowTool(t *testing.T) {
	server := NewServer()

	nowTool := server.GetTool("now")
	require.NotNil(t, nowTool, "now tool should exist")
	assert.Equal(t, "now", nowTool.Tool.Name)
	assert.Contains(t, nowTool.Tool.Description, "current time")
}
