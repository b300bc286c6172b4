package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all platform ops tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("companion", "1.0.0")
	client := NewPlatformClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolGetBooking, h.HandleGetBooking)
	s.AddTool(ToolListDisputes, h.HandleListDisputes)
	s.AddTool(ToolResolveDispute, h.HandleResolveDispute)
	s.AddTool(ToolModerateCompanion, h.HandleModerateCompanion)
	s.AddTool(ToolPlatformStats, h.HandlePlatformStats)
	s.AddTool(ToolTriggerSweep, h.HandleTriggerSweep)

	return s
}
