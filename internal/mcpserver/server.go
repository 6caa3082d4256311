// Package mcpserver exposes the trackrate admin API as MCP tools so an
// LLM can run the back office: list and inspect accounts, review
// deposits and withdrawals, adjust balances, and edit platform
// settings. It talks to a running API server through pkg/api.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/mbd888/trackrate/pkg/api"
)

// Config wires the MCP server to a running trackrate API.
type Config struct {
	// APIURL is the API server base URL, e.g. "http://localhost:8080".
	APIURL string
	// Token is an admin-surface JWT access token.
	Token string
}

// NewMCPServer creates a configured MCP server with all trackrate
// admin tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("trackrate", "1.0.0")

	client := api.NewClient(cfg.APIURL)
	client.Token = cfg.Token
	h := NewHandlers(client)

	s.AddTool(ToolListUsers, h.HandleListUsers)
	s.AddTool(ToolGetUser, h.HandleGetUser)
	s.AddTool(ToolGetDashboard, h.HandleGetDashboard)
	s.AddTool(ToolUpdateBalance, h.HandleUpdateBalance)
	s.AddTool(ToolListDeposits, h.HandleListDeposits)
	s.AddTool(ToolReviewDeposit, h.HandleReviewDeposit)
	s.AddTool(ToolListWithdrawals, h.HandleListWithdrawals)
	s.AddTool(ToolReviewWithdrawal, h.HandleReviewWithdrawal)
	s.AddTool(ToolListAdminLogs, h.HandleListAdminLogs)
	s.AddTool(ToolGetSettings, h.HandleGetSettings)
	s.AddTool(ToolUpdateSettings, h.HandleUpdateSettings)
	s.AddTool(ToolMintInvitationCode, h.HandleMintInvitationCode)
	s.AddTool(ToolListInvitationCodes, h.HandleListInvitationCodes)

	return s
}
