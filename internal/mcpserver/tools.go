package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the trackrate admin MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolListUsers = mcp.NewTool("list_users",
	mcp.WithDescription(
		"List worker accounts on the trackrate platform with their wallet balances "+
			"and today's submission progress. Staff accounts are excluded. "+
			"Results are newest first and cursor-paginated."),
	mcp.WithString("search",
		mcp.Description("Match against username or email (substring, case-insensitive)")),
	mcp.WithString("active",
		mcp.Description("Filter by account state: 'true' for active accounts, 'false' for deactivated ones. Omit for both."),
		mcp.Enum("true", "false")),
	mcp.WithString("cursor",
		mcp.Description("Opaque pagination cursor from a previous list_users call")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of accounts to return (default 20, max 100)")),
)

var ToolGetUser = mcp.NewTool("get_user",
	mcp.WithDescription(
		"Get one account in full: profile, wallet (balance, on-hold, commission, salary, "+
			"credit score, assigned pack), today's played count, and lifetime submission totals."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The account id (e.g. 'usr_a1b2c3')")),
)

var ToolGetDashboard = mcp.NewTool("get_dashboard",
	mcp.WithDescription(
		"Get platform-wide statistics: total users, active products, total submissions, "+
			"accounts that logged in today, and per-month registration and submission counts."),
)

var ToolUpdateBalance = mcp.NewTool("update_balance",
	mcp.WithDescription(
		"Set a user's wallet balance to an absolute USD amount. Clears any negative "+
			"balance hold and is recorded in the audit trail with the given reason. "+
			"Requires the acting admin's transactional password."),
	mcp.WithString("user_id",
		mcp.Required(),
		mcp.Description("The account to adjust")),
	mcp.WithString("balance",
		mcp.Required(),
		mcp.Description("New absolute balance as a two-decimal USD string (e.g. '250.00')")),
	mcp.WithString("reason",
		mcp.Required(),
		mcp.Description("Why the balance is being changed; stored in the audit log")),
	mcp.WithString("admin_password",
		mcp.Required(),
		mcp.Description("The acting admin's transactional password")),
)

var ToolListDeposits = mcp.NewTool("list_deposits",
	mcp.WithDescription(
		"List deposit (top-up) requests across all users, newest first, cursor-paginated. "+
			"Pending deposits are waiting for review."),
	mcp.WithString("status",
		mcp.Description("Filter by review state"),
		mcp.Enum("Pending", "Confirmed", "Rejected")),
	mcp.WithString("cursor",
		mcp.Description("Opaque pagination cursor from a previous list_deposits call")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of deposits to return (default 20, max 100)")),
)

var ToolReviewDeposit = mcp.NewTool("review_deposit",
	mcp.WithDescription(
		"Confirm or reject a pending deposit. Confirming credits the user's wallet; "+
			"both outcomes notify the user. A deposit can only be reviewed once. "+
			"Requires the acting admin's transactional password."),
	mcp.WithString("deposit_id",
		mcp.Required(),
		mcp.Description("The deposit to review (e.g. 'dep_a1b2c3')")),
	mcp.WithString("status",
		mcp.Required(),
		mcp.Description("The review outcome"),
		mcp.Enum("Confirmed", "Rejected")),
	mcp.WithString("admin_password",
		mcp.Required(),
		mcp.Description("The acting admin's transactional password")),
)

var ToolListWithdrawals = mcp.NewTool("list_withdrawals",
	mcp.WithDescription(
		"List withdrawal (cash-out) requests across all users, newest first, "+
			"cursor-paginated. Pending withdrawals are waiting for review."),
	mcp.WithString("status",
		mcp.Description("Filter by review state"),
		mcp.Enum("Pending", "Processed", "Rejected")),
	mcp.WithString("cursor",
		mcp.Description("Opaque pagination cursor from a previous list_withdrawals call")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of withdrawals to return (default 20, max 100)")),
)

var ToolReviewWithdrawal = mcp.NewTool("review_withdrawal",
	mcp.WithDescription(
		"Process or reject a pending withdrawal. Processing debits the user's balance "+
			"and, when an on-chain payout sender is configured, sends USDT to the "+
			"withdrawal address. A withdrawal can only be reviewed once. "+
			"Requires the acting admin's transactional password."),
	mcp.WithString("withdrawal_id",
		mcp.Required(),
		mcp.Description("The withdrawal to review (e.g. 'wd_a1b2c3')")),
	mcp.WithString("status",
		mcp.Required(),
		mcp.Description("The review outcome"),
		mcp.Enum("Processed", "Rejected")),
	mcp.WithString("admin_password",
		mcp.Required(),
		mcp.Description("The acting admin's transactional password")),
)

var ToolListAdminLogs = mcp.NewTool("list_admin_logs",
	mcp.WithDescription(
		"Read the admin audit trail: every balance change, review decision, settings "+
			"edit, and account action, newest first, cursor-paginated."),
	mcp.WithString("cursor",
		mcp.Description("Opaque pagination cursor from a previous list_admin_logs call")),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return (default 50, max 200)")),
)

var ToolGetSettings = mcp.NewTool("get_settings",
	mcp.WithDescription(
		"Get the platform settings: sponsor percentage, registration bonus, minimum "+
			"balance for submissions, service hours, timezone, contact channels, and "+
			"deposit addresses."),
)

var ToolUpdateSettings = mcp.NewTool("update_settings",
	mcp.WithDescription(
		"Change platform settings. Send only the keys to change; everything else "+
			"keeps its current value. Money values are two-decimal USD strings. "+
			"The edit is recorded in the audit trail."),
	mcp.WithObject("settings",
		mcp.Required(),
		mcp.Description("Partial settings patch, e.g. {\"bonusWhenRegistering\": \"0.75\", \"timezone\": \"America/New_York\"}")),
)

var ToolMintInvitationCode = mcp.NewTool("mint_invitation_code",
	mcp.WithDescription(
		"Generate a fresh single-use invitation code for signing up a user who has "+
			"no referrer."),
)

var ToolListInvitationCodes = mcp.NewTool("list_invitation_codes",
	mcp.WithDescription(
		"List all minted invitation codes and whether each has been used."),
)
