package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	s := NewServer(ServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.MCPServer())
	assert.NotNil(t, s.logger)
}

func TestToolRegistration(t *testing.T) {
	s := NewServer(ServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 4)
	for _, name := range []string{"gaiaflow.run", "gaiaflow.validate", "gaiaflow.graph", "gaiaflow.actions"} {
		assert.NotNil(t, s.mcpServer.GetTool(name), "tool %s should be registered", name)
	}
	assert.Nil(t, s.mcpServer.GetTool("gaiaflow.fire"))
}

func TestToolRegistration_WithTriggers(t *testing.T) {
	s, _ := newTestServer(t)

	assert.Len(t, s.mcpServer.ListTools(), 7)
	for _, name := range []string{"gaiaflow.workflows", "gaiaflow.fire", "gaiaflow.emit"} {
		assert.NotNil(t, s.mcpServer.GetTool(name), "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		toolName    string
		description string
	}{
		{"gaiaflow.run", "Validate and execute a workflow document"},
		{"gaiaflow.validate", "Check a workflow document without running it"},
		{"gaiaflow.graph", "Render the dependency graph of a workflow document"},
		{"gaiaflow.actions", "List registered action names and namespace prefixes"},
	}

	s := NewServer(ServerDeps{})
	for _, tc := range tests {
		t.Run(tc.toolName, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
