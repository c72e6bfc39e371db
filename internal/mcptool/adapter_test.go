package mcptool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FabG/chainlit-ui/pkg/types"
)

func TestNew(t *testing.T) {
	a := New()
	assert.NotNil(t, a)
	assert.Equal(t, 0, a.ServerCount())
	assert.Equal(t, 0, a.ConnectedCount())
}

func TestAdapter_Status_Empty(t *testing.T) {
	a := New()
	assert.Empty(t, a.Status())
}

func TestAdapter_Tools_Empty(t *testing.T) {
	a := New()
	assert.Empty(t, a.Tools())
	assert.Empty(t, a.Bind())
}

func TestAdapter_Close_Empty(t *testing.T) {
	a := New()
	assert.NoError(t, a.Close())
}

func TestAdapter_RemoveServer_NotFound(t *testing.T) {
	a := New()
	err := a.RemoveServer("nonexistent")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server not found")
}

func TestAdapter_Call_UnknownTool(t *testing.T) {
	a := New()
	_, err := a.Call(context.Background(), "ghost_tool", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no server found")
}

func TestAdapter_AddServer_Disabled(t *testing.T) {
	a := New()
	disabled := false

	err := a.AddServer(context.Background(), "off", types.MCPConfig{
		Type:    "stdio",
		Command: []string{"never-started"},
		Enabled: &disabled,
	})
	assert.NoError(t, err, "disabled servers should register without connecting")
	assert.Equal(t, 1, a.ServerCount())
	assert.Equal(t, 0, a.ConnectedCount())

	status := a.Status()
	assert.Len(t, status, 1)
	assert.Equal(t, StatusDisabled, status[0].Status)
}

func TestAdapter_AddServer_Duplicate(t *testing.T) {
	a := New()
	disabled := false
	cfg := types.MCPConfig{Type: "stdio", Command: []string{"x"}, Enabled: &disabled}

	assert.NoError(t, a.AddServer(context.Background(), "dup", cfg))
	err := a.AddServer(context.Background(), "dup", cfg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestAdapter_AddServer_UnknownTransport(t *testing.T) {
	a := New()
	err := a.AddServer(context.Background(), "weird", types.MCPConfig{Type: "carrier-pigeon"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown transport type")

	// The failure is recorded for Status.
	status := a.Status()
	assert.Len(t, status, 1)
	assert.Equal(t, StatusFailed, status[0].Status)
	assert.NotNil(t, status[0].Error)
}

func TestAdapter_AddServer_EmptyCommand(t *testing.T) {
	a := New()
	err := a.AddServer(context.Background(), "empty", types.MCPConfig{Type: "local"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "empty command")
}

func TestSanitizeToolName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "simple"},
		{"with-dash", "with_dash"},
		{"with_underscore", "with_underscore"},
		{"with.dot", "with_dot"},
		{"with space", "with_space"},
		{"CamelCase", "CamelCase"},
		{"with123numbers", "with123numbers"},
		{"special!@#chars", "special___chars"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeToolName(tt.input))
		})
	}
}
