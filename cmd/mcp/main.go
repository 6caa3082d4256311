// trackrate MCP server - exposes the admin API as MCP tools for LLMs
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/trackrate/internal/mcpserver"
	"github.com/mbd888/trackrate/pkg/api"
)

func main() {
	apiURL := envOrDefault("TRACKRATE_API_URL", "http://localhost:8080")
	token := os.Getenv("TRACKRATE_API_TOKEN")

	if token == "" {
		username := os.Getenv("TRACKRATE_ADMIN_USERNAME")
		password := os.Getenv("TRACKRATE_ADMIN_PASSWORD")
		if username == "" || password == "" {
			fmt.Fprintln(os.Stderr, "either TRACKRATE_API_TOKEN or TRACKRATE_ADMIN_USERNAME and TRACKRATE_ADMIN_PASSWORD are required")
			os.Exit(1)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		pair, err := api.NewClient(apiURL).AdminLogin(ctx, username, password)
		cancel()
		if err != nil {
			fmt.Fprintf(os.Stderr, "admin login failed: %v\n", err)
			os.Exit(1)
		}
		token = pair.Access
	}

	s := mcpserver.NewMCPServer(mcpserver.Config{
		APIURL: apiURL,
		Token:  token,
	})
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
