package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client calls the trackrate HTTP API. Token is a JWT access token;
// admin endpoints need one minted for the admin surface.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a client for the given base URL, e.g.
// "http://localhost:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do issues one API request. Responses with status >= 400 are decoded
// into *Error; anything else is unmarshalled into out when non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Code = ""
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// AdminLogin authenticates a staff account against the admin surface
// and stores the access token on the client for subsequent calls.
func (c *Client) AdminLogin(ctx context.Context, usernameOrEmail, password string) (*TokenPair, error) {
	body := map[string]string{
		"usernameOrEmail": usernameOrEmail,
		"password":        password,
	}
	var pair TokenPair
	if err := c.do(ctx, http.MethodPost, "/v1/admin/auth/login", nil, body, &pair); err != nil {
		return nil, err
	}
	c.Token = pair.Access
	return &pair, nil
}

// ListUsersOptions narrow the admin user listing. Active is a
// tri-state: nil means both active and inactive accounts.
type ListUsersOptions struct {
	Search string
	Active *bool
	Cursor string
	Limit  int
}

// ListUsers fetches one page of worker accounts.
func (c *Client) ListUsers(ctx context.Context, opts ListUsersOptions) (*UsersPage, error) {
	query := url.Values{}
	if opts.Search != "" {
		query.Set("search", opts.Search)
	}
	if opts.Active != nil {
		query.Set("active", strconv.FormatBool(*opts.Active))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	var page UsersPage
	if err := c.do(ctx, http.MethodGet, "/v1/admin/users", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetUser fetches one account with its wallet and aggregates.
func (c *Client) GetUser(ctx context.Context, id string) (*UserSummary, error) {
	var envelope struct {
		User *UserSummary `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admin/users/"+url.PathEscape(id), nil, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.User, nil
}

// Dashboard fetches the admin landing stats.
func (c *Client) Dashboard(ctx context.Context) (*Dashboard, error) {
	var envelope struct {
		Dashboard *Dashboard `json:"dashboard"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admin/dashboard", nil, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Dashboard, nil
}

// UpdateBalanceParams set a user's balance to an absolute value.
// AdminPassword is the acting admin's transactional password.
type UpdateBalanceParams struct {
	UserID        string `json:"userId"`
	Balance       string `json:"balance"`
	Reason        string `json:"reason"`
	AdminPassword string `json:"adminPassword"`
}

// UpdateBalance sets a user's wallet balance and returns the updated
// summary.
func (c *Client) UpdateBalance(ctx context.Context, params UpdateBalanceParams) (*UserSummary, error) {
	var envelope struct {
		User *UserSummary `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/users/update-balance", nil, params, &envelope); err != nil {
		return nil, err
	}
	return envelope.User, nil
}

// ListOptions narrow the deposit and withdrawal listings.
type ListOptions struct {
	Status string
	Cursor string
	Limit  int
}

func (o ListOptions) query() url.Values {
	query := url.Values{}
	if o.Status != "" {
		query.Set("status", o.Status)
	}
	if o.Cursor != "" {
		query.Set("cursor", o.Cursor)
	}
	if o.Limit > 0 {
		query.Set("limit", strconv.Itoa(o.Limit))
	}
	return query
}

// ListDeposits fetches one page of deposit requests.
func (c *Client) ListDeposits(ctx context.Context, opts ListOptions) (*DepositsPage, error) {
	var page DepositsPage
	if err := c.do(ctx, http.MethodGet, "/v1/admin/deposits", opts.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ReviewDeposit approves or rejects a pending deposit.
func (c *Client) ReviewDeposit(ctx context.Context, id, status, adminPassword string) (*Deposit, error) {
	body := map[string]string{"status": status, "adminPassword": adminPassword}
	var envelope struct {
		Deposit *Deposit `json:"deposit"`
	}
	path := "/v1/admin/deposits/" + url.PathEscape(id) + "/status"
	if err := c.do(ctx, http.MethodPut, path, nil, body, &envelope); err != nil {
		return nil, err
	}
	return envelope.Deposit, nil
}

// ListWithdrawals fetches one page of withdrawal requests.
func (c *Client) ListWithdrawals(ctx context.Context, opts ListOptions) (*WithdrawalsPage, error) {
	var page WithdrawalsPage
	if err := c.do(ctx, http.MethodGet, "/v1/admin/withdrawals", opts.query(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ReviewWithdrawal marks a pending withdrawal Processed or Rejected.
func (c *Client) ReviewWithdrawal(ctx context.Context, id, status, adminPassword string) (*Withdrawal, error) {
	body := map[string]string{"status": status, "adminPassword": adminPassword}
	var envelope struct {
		Withdrawal *Withdrawal `json:"withdrawal"`
	}
	path := "/v1/admin/withdrawals/" + url.PathEscape(id) + "/status"
	if err := c.do(ctx, http.MethodPut, path, nil, body, &envelope); err != nil {
		return nil, err
	}
	return envelope.Withdrawal, nil
}

// ListLogs fetches one page of the admin audit trail.
func (c *Client) ListLogs(ctx context.Context, cursor string, limit int) (*LogsPage, error) {
	query := url.Values{}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var page LogsPage
	if err := c.do(ctx, http.MethodGet, "/v1/admin/logs", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Settings fetches the platform configuration.
func (c *Client) Settings(ctx context.Context) (*Settings, error) {
	var envelope struct {
		Settings *Settings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admin/settings", nil, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Settings, nil
}

// UpdateSettings applies a partial settings patch; only the keys
// present in the patch change. Returns the full updated record.
func (c *Client) UpdateSettings(ctx context.Context, patch map[string]any) (*Settings, error) {
	var envelope struct {
		Settings *Settings `json:"settings"`
	}
	if err := c.do(ctx, http.MethodPut, "/v1/admin/settings", nil, patch, &envelope); err != nil {
		return nil, err
	}
	return envelope.Settings, nil
}

// MintInvitationCode creates a fresh single-use signup code.
func (c *Client) MintInvitationCode(ctx context.Context) (*InvitationCode, error) {
	var envelope struct {
		Code *InvitationCode `json:"invitationCode"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/admin/invitation-codes", nil, struct{}{}, &envelope); err != nil {
		return nil, err
	}
	return envelope.Code, nil
}

// ListInvitationCodes fetches all minted invitation codes.
func (c *Client) ListInvitationCodes(ctx context.Context) ([]*InvitationCode, error) {
	var envelope struct {
		Codes []*InvitationCode `json:"invitationCodes"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admin/invitation-codes", nil, nil, &envelope); err != nil {
		return nil, err
	}
	return envelope.Codes, nil
}
