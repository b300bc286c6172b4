// Companion MCP Server - Exposes platform admin operations as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/zenofund/companion/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:   envOrDefault("COMPANION_API_URL", "http://localhost:8080"),
		APIToken: os.Getenv("COMPANION_API_TOKEN"),
	}

	if cfg.APIToken == "" {
		fmt.Fprintln(os.Stderr, "COMPANION_API_TOKEN is required")
		os.Exit(1)
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
