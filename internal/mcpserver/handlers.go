package mcpserver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mbd888/trackrate/pkg/api"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *api.Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *api.Client) *Handlers {
	return &Handlers{client: client}
}

// HandleListUsers lists worker accounts.
func (h *Handlers) HandleListUsers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := api.ListUsersOptions{
		Search: req.GetString("search", ""),
		Cursor: req.GetString("cursor", ""),
		Limit:  req.GetInt("limit", 0),
	}
	if raw := req.GetString("active", ""); raw != "" {
		active := raw == "true"
		opts.Active = &active
	}

	page, err := h.client.ListUsers(ctx, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list users: %v", err)), nil
	}
	return mcp.NewToolResultText(formatUserList(page)), nil
}

// HandleGetUser fetches one account in full.
func (h *Handlers) HandleGetUser(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}

	sum, err := h.client.GetUser(ctx, userID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get user: %v", err)), nil
	}
	return mcp.NewToolResultText(formatUserDetail(sum)), nil
}

// HandleGetDashboard returns platform-wide stats.
func (h *Handlers) HandleGetDashboard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	d, err := h.client.Dashboard(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get dashboard: %v", err)), nil
	}
	return mcp.NewToolResultText(formatDashboard(d)), nil
}

// HandleUpdateBalance sets a user's balance to an absolute value.
func (h *Handlers) HandleUpdateBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	params := api.UpdateBalanceParams{
		UserID:        req.GetString("user_id", ""),
		Balance:       req.GetString("balance", ""),
		Reason:        req.GetString("reason", ""),
		AdminPassword: req.GetString("admin_password", ""),
	}
	if params.UserID == "" {
		return mcp.NewToolResultError("user_id is required"), nil
	}
	if params.Balance == "" {
		return mcp.NewToolResultError("balance is required"), nil
	}
	if params.Reason == "" {
		return mcp.NewToolResultError("reason is required"), nil
	}
	if params.AdminPassword == "" {
		return mcp.NewToolResultError("admin_password is required"), nil
	}

	sum, err := h.client.UpdateBalance(ctx, params)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update balance: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Balance updated for %s (%s).\n\n", sum.Username, sum.ID)
	if sum.Wallet != nil {
		fmt.Fprintf(&sb, "New balance: %s USD\n", sum.Wallet.Balance)
		fmt.Fprintf(&sb, "On hold: %s USD\n", sum.Wallet.OnHold)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleListDeposits lists deposit requests.
func (h *Handlers) HandleListDeposits(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := h.client.ListDeposits(ctx, api.ListOptions{
		Status: req.GetString("status", ""),
		Cursor: req.GetString("cursor", ""),
		Limit:  req.GetInt("limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list deposits: %v", err)), nil
	}
	return mcp.NewToolResultText(formatDeposits(page)), nil
}

// HandleReviewDeposit confirms or rejects a pending deposit.
func (h *Handlers) HandleReviewDeposit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	depositID := req.GetString("deposit_id", "")
	if depositID == "" {
		return mcp.NewToolResultError("deposit_id is required"), nil
	}
	status := req.GetString("status", "")
	if status == "" {
		return mcp.NewToolResultError("status is required"), nil
	}
	adminPassword := req.GetString("admin_password", "")
	if adminPassword == "" {
		return mcp.NewToolResultError("admin_password is required"), nil
	}

	d, err := h.client.ReviewDeposit(ctx, depositID, status, adminPassword)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to review deposit: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Deposit %s is now %s.\nUser: %s\nAmount: %s USD via %s",
		d.ID, d.Status, d.UserID, d.Amount, d.Method)), nil
}

// HandleListWithdrawals lists withdrawal requests.
func (h *Handlers) HandleListWithdrawals(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := h.client.ListWithdrawals(ctx, api.ListOptions{
		Status: req.GetString("status", ""),
		Cursor: req.GetString("cursor", ""),
		Limit:  req.GetInt("limit", 0),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list withdrawals: %v", err)), nil
	}
	return mcp.NewToolResultText(formatWithdrawals(page)), nil
}

// HandleReviewWithdrawal processes or rejects a pending withdrawal.
func (h *Handlers) HandleReviewWithdrawal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	withdrawalID := req.GetString("withdrawal_id", "")
	if withdrawalID == "" {
		return mcp.NewToolResultError("withdrawal_id is required"), nil
	}
	status := req.GetString("status", "")
	if status == "" {
		return mcp.NewToolResultError("status is required"), nil
	}
	adminPassword := req.GetString("admin_password", "")
	if adminPassword == "" {
		return mcp.NewToolResultError("admin_password is required"), nil
	}

	wd, err := h.client.ReviewWithdrawal(ctx, withdrawalID, status, adminPassword)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to review withdrawal: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Withdrawal %s is now %s.\n", wd.ID, wd.Status)
	fmt.Fprintf(&sb, "User: %s\n", wd.UserID)
	fmt.Fprintf(&sb, "Amount: %s USD to %s", wd.Amount, wd.Address)
	if wd.TxHash != "" {
		fmt.Fprintf(&sb, "\nPayout tx: %s", wd.TxHash)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// HandleListAdminLogs reads the audit trail.
func (h *Handlers) HandleListAdminLogs(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page, err := h.client.ListLogs(ctx, req.GetString("cursor", ""), req.GetInt("limit", 0))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list admin logs: %v", err)), nil
	}
	return mcp.NewToolResultText(formatLogs(page)), nil
}

// HandleGetSettings returns the platform settings.
func (h *Handlers) HandleGetSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, err := h.client.Settings(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get settings: %v", err)), nil
	}
	return mcp.NewToolResultText(formatSettings(s)), nil
}

// HandleUpdateSettings applies a partial settings patch.
func (h *Handlers) HandleUpdateSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	patch, _ := req.GetArguments()["settings"].(map[string]any)
	if len(patch) == 0 {
		return mcp.NewToolResultError("settings must be a non-empty object of keys to change"), nil
	}

	s, err := h.client.UpdateSettings(ctx, patch)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to update settings: %v", err)), nil
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return mcp.NewToolResultText(fmt.Sprintf(
		"Settings updated (%s).\n\n%s", strings.Join(keys, ", "), formatSettings(s))), nil
}

// HandleMintInvitationCode generates a single-use signup code.
func (h *Handlers) HandleMintInvitationCode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	code, err := h.client.MintInvitationCode(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to mint invitation code: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Invitation code minted: %s\nGive this code to one new user; it stops working after signup.", code.Code)), nil
}

// HandleListInvitationCodes lists minted invitation codes.
func (h *Handlers) HandleListInvitationCodes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	codes, err := h.client.ListInvitationCodes(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list invitation codes: %v", err)), nil
	}
	if len(codes) == 0 {
		return mcp.NewToolResultText("No invitation codes have been minted yet."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d invitation code(s):\n\n", len(codes))
	for _, c := range codes {
		state := "unused"
		if c.Used {
			state = "used"
		}
		fmt.Fprintf(&sb, "- %s (%s, minted %s)\n", c.Code, state, c.CreatedAt.Format("2006-01-02"))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// --- Formatting helpers ---

func formatUserList(page *api.UsersPage) string {
	if len(page.Users) == 0 {
		return "No users found matching your criteria."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d user(s):\n\n", len(page.Users)))
	for i, u := range page.Users {
		sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, u.Username, u.ID))
		sb.WriteString(fmt.Sprintf("   Email: %s | Active: %t\n", u.Email, u.Active))
		if u.Wallet != nil {
			sb.WriteString(fmt.Sprintf("   Balance: %s USD | On hold: %s USD\n", u.Wallet.Balance, u.Wallet.OnHold))
		}
		sb.WriteString(fmt.Sprintf("   Played today: %d/%d\n", u.TotalPlay, u.TotalAvailablePlay))
		if i < len(page.Users)-1 {
			sb.WriteString("\n")
		}
	}
	if page.HasMore {
		sb.WriteString(fmt.Sprintf("\nMore results available; pass cursor '%s' to continue.", page.NextCursor))
	}
	return sb.String()
}

func formatUserDetail(u *api.UserSummary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s (%s)\n", u.Username, u.ID))
	sb.WriteString(fmt.Sprintf("  Email: %s\n", u.Email))
	if u.Phone != "" {
		sb.WriteString(fmt.Sprintf("  Phone: %s\n", u.Phone))
	}
	sb.WriteString(fmt.Sprintf("  Active: %t | Staff: %t\n", u.Active, u.IsStaff))
	sb.WriteString(fmt.Sprintf("  Referral code: %s\n", u.ReferralCode))
	sb.WriteString(fmt.Sprintf("  Joined: %s\n", u.CreatedAt.Format("2006-01-02")))

	if u.Wallet != nil {
		sb.WriteString("\nWallet:\n")
		sb.WriteString(fmt.Sprintf("  Balance: %s USD\n", u.Wallet.Balance))
		sb.WriteString(fmt.Sprintf("  On hold: %s USD\n", u.Wallet.OnHold))
		sb.WriteString(fmt.Sprintf("  Commission: %s USD | Salary: %s USD\n", u.Wallet.Commission, u.Wallet.Salary))
		sb.WriteString(fmt.Sprintf("  Credit score: %.1f\n", u.Wallet.CreditScore))
		if u.Wallet.PackID != "" {
			sb.WriteString(fmt.Sprintf("  Pack: %s\n", u.Wallet.PackID))
		}
	}

	sb.WriteString("\nActivity:\n")
	sb.WriteString(fmt.Sprintf("  Played today: %d/%d\n", u.TotalPlay, u.TotalAvailablePlay))
	sb.WriteString(fmt.Sprintf("  Lifetime submissions: %d (%d special)\n", u.TotalProductSubmitted, u.TotalNegativeSubmitted))
	return sb.String()
}

func formatDashboard(d *api.Dashboard) string {
	var sb strings.Builder
	sb.WriteString("Platform dashboard:\n")
	sb.WriteString(fmt.Sprintf("  Total users: %d\n", d.TotalUsers))
	sb.WriteString(fmt.Sprintf("  Active products: %d\n", d.ActiveProducts))
	sb.WriteString(fmt.Sprintf("  Total submissions: %d\n", d.TotalSubmissions))
	sb.WriteString(fmt.Sprintf("  Logins today: %d\n", d.LoginsToday.Count))

	if len(d.RegistrationsByMonth) > 0 {
		sb.WriteString("\nRegistrations by month:\n")
		sb.WriteString(formatMonthCounts(d.RegistrationsByMonth))
	}
	if len(d.SubmissionsByMonth) > 0 {
		sb.WriteString("\nSubmissions by month:\n")
		sb.WriteString(formatMonthCounts(d.SubmissionsByMonth))
	}
	return sb.String()
}

func formatMonthCounts(counts map[int]int) string {
	months := make([]int, 0, len(counts))
	for m := range counts {
		months = append(months, m)
	}
	sort.Ints(months)

	var sb strings.Builder
	for _, m := range months {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", monthName(m), counts[m]))
	}
	return sb.String()
}

func monthName(m int) string {
	names := []string{"January", "February", "March", "April", "May", "June",
		"July", "August", "September", "October", "November", "December"}
	if m < 1 || m > 12 {
		return fmt.Sprintf("month %d", m)
	}
	return names[m-1]
}

func formatDeposits(page *api.DepositsPage) string {
	if len(page.Deposits) == 0 {
		return "No deposits found matching your criteria."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d deposit(s):\n\n", len(page.Deposits)))
	for i, d := range page.Deposits {
		sb.WriteString(fmt.Sprintf("%d. %s | %s USD via %s\n", i+1, d.ID, d.Amount, d.Method))
		sb.WriteString(fmt.Sprintf("   User: %s | Status: %s | Requested: %s\n",
			d.UserID, d.Status, d.CreatedAt.Format("2006-01-02 15:04")))
		if d.Reference != "" {
			sb.WriteString(fmt.Sprintf("   Reference: %s\n", d.Reference))
		}
		if i < len(page.Deposits)-1 {
			sb.WriteString("\n")
		}
	}
	if page.HasMore {
		sb.WriteString(fmt.Sprintf("\nMore results available; pass cursor '%s' to continue.", page.NextCursor))
	}
	return sb.String()
}

func formatWithdrawals(page *api.WithdrawalsPage) string {
	if len(page.Withdrawals) == 0 {
		return "No withdrawals found matching your criteria."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d withdrawal(s):\n\n", len(page.Withdrawals)))
	for i, wd := range page.Withdrawals {
		sb.WriteString(fmt.Sprintf("%d. %s | %s USD to %s\n", i+1, wd.ID, wd.Amount, wd.Address))
		sb.WriteString(fmt.Sprintf("   User: %s | Status: %s | Requested: %s\n",
			wd.UserID, wd.Status, wd.CreatedAt.Format("2006-01-02 15:04")))
		if wd.TxHash != "" {
			sb.WriteString(fmt.Sprintf("   Payout tx: %s\n", wd.TxHash))
		}
		if i < len(page.Withdrawals)-1 {
			sb.WriteString("\n")
		}
	}
	if page.HasMore {
		sb.WriteString(fmt.Sprintf("\nMore results available; pass cursor '%s' to continue.", page.NextCursor))
	}
	return sb.String()
}

func formatLogs(page *api.LogsPage) string {
	if len(page.Logs) == 0 {
		return "The audit trail is empty."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Showing %d audit entry(ies):\n\n", len(page.Logs)))
	for _, l := range page.Logs {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", l.CreatedAt.Format("2006-01-02 15:04"), l.Description))
		if l.Reason != "" {
			sb.WriteString(fmt.Sprintf("  Reason: %s\n", l.Reason))
		}
	}
	if page.HasMore {
		sb.WriteString(fmt.Sprintf("\nMore entries available; pass cursor '%s' to continue.", page.NextCursor))
	}
	return sb.String()
}

func formatSettings(s *api.Settings) string {
	var sb strings.Builder
	sb.WriteString("Platform settings:\n")
	sb.WriteString(fmt.Sprintf("  Sponsor percentage: %.2f%%\n", s.PercentageOfSponsors))
	sb.WriteString(fmt.Sprintf("  Registration bonus: %s USD\n", s.BonusWhenRegistering))
	sb.WriteString(fmt.Sprintf("  Minimum balance for submissions: %s USD\n", s.MinimumBalanceForSubmissions))
	sb.WriteString(fmt.Sprintf("  Token validity: %d hours\n", s.TokenValidityPeriodHours))
	sb.WriteString(fmt.Sprintf("  Service hours: %s-%s (%s)\n",
		s.ServiceAvailabilityStartTime, s.ServiceAvailabilityEndTime, s.Timezone))
	if s.WhatsappContact != "" {
		sb.WriteString(fmt.Sprintf("  WhatsApp: %s\n", s.WhatsappContact))
	}
	if s.TelegramContact != "" {
		sb.WriteString(fmt.Sprintf("  Telegram: %s\n", s.TelegramContact))
	}
	if s.ERCAddress != "" {
		sb.WriteString(fmt.Sprintf("  ERC20 deposit address: %s\n", s.ERCAddress))
	}
	if s.TRCAddress != "" {
		sb.WriteString(fmt.Sprintf("  TRC20 deposit address: %s\n", s.TRCAddress))
	}
	return sb.String()
}
