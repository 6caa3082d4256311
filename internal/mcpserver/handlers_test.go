package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbd888/trackrate/pkg/api"
)

// --- Test helpers ---

func newTestSetup(handler http.Handler) (*Handlers, func()) {
	ts := httptest.NewServer(handler)
	client := api.NewClient(ts.URL)
	client.Token = "tok_test"
	h := NewHandlers(client)
	return h, ts.Close
}

func makeRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	if args == nil {
		args = map[string]any{}
	}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content block")
	tc, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

// ============================================================
// Handler: list_users
// ============================================================

func TestHandleListUsers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok_test", r.Header.Get("Authorization"))
		assert.Equal(t, "ali", r.URL.Query().Get("search"))
		assert.Equal(t, "true", r.URL.Query().Get("active"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"users": []map[string]any{
				{
					"id": "usr_1", "username": "alice", "email": "alice@example.com",
					"active": true,
					"wallet": map[string]any{"userId": "usr_1", "balance": "120.50", "onHold": "0.00"},
					"totalPlay": 7, "totalAvailablePlay": 30,
				},
				{
					"id": "usr_2", "username": "alina", "email": "alina@example.com",
					"active": true,
					"wallet": map[string]any{"userId": "usr_2", "balance": "15.00", "onHold": "4.20"},
					"totalPlay": 0, "totalAvailablePlay": 0,
				},
			},
			"nextCursor": "cur_next",
			"hasMore":    true,
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListUsers(context.Background(), makeRequest(map[string]any{
		"search": "ali",
		"active": "true",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 2 user(s)")
	assert.Contains(t, text, "alice")
	assert.Contains(t, text, "120.50 USD")
	assert.Contains(t, text, "Played today: 7/30")
	assert.Contains(t, text, "cur_next")
}

func TestHandleListUsers_Empty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"users":[],"nextCursor":"","hasMore":false}`))
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListUsers(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No users found")
}

func TestHandleListUsers_APIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/users", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "invalid_session", "message": "Session expired"})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListUsers(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Session expired")
}

// ============================================================
// Handler: get_user
// ============================================================

func TestHandleGetUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/users/usr_9", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "User Info Retrieved Succussfully",
			"user": map[string]any{
				"id": "usr_9", "username": "bob", "email": "bob@example.com",
				"active": true, "referralCode": "REF99",
				"wallet": map[string]any{
					"userId": "usr_9", "balance": "300.00", "onHold": "0.00",
					"commission": "12.40", "salary": "0.00", "creditScore": 98.5,
					"packId": "pack_gold",
				},
				"totalPlay": 12, "totalAvailablePlay": 40,
				"totalProductSubmitted": 480, "totalNegativeProductSubmitted": 16,
			},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetUser(context.Background(), makeRequest(map[string]any{"user_id": "usr_9"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "bob (usr_9)")
	assert.Contains(t, text, "300.00 USD")
	assert.Contains(t, text, "Credit score: 98.5")
	assert.Contains(t, text, "Pack: pack_gold")
	assert.Contains(t, text, "480 (16 special)")
}

func TestHandleGetUser_MissingID(t *testing.T) {
	h, cleanup := newTestSetup(http.NewServeMux())
	defer cleanup()

	result, err := h.HandleGetUser(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "user_id is required")
}

func TestHandleGetUser_NotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/users/usr_missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": "not_found", "message": "User not found"})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetUser(context.Background(), makeRequest(map[string]any{"user_id": "usr_missing"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "User not found")
}

// ============================================================
// Handler: get_dashboard
// ============================================================

func TestHandleGetDashboard(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/dashboard", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"dashboard": map[string]any{
				"totalUsers":            42,
				"activeProducts":        7,
				"totalSubmissions":      1280,
				"totalUsersLoginToday":  map[string]any{"count": 5, "users": []any{}},
				"userRegistrationsPerMonth": map[string]int{"1": 3, "2": 8},
				"totalSubmissionsPerMonth":  map[string]int{"1": 400, "2": 880},
			},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetDashboard(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Total users: 42")
	assert.Contains(t, text, "Logins today: 5")
	assert.Contains(t, text, "January: 3")
	assert.Contains(t, text, "February: 880")
}

// ============================================================
// Handler: update_balance
// ============================================================

func TestHandleUpdateBalance(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/users/update-balance", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		var m map[string]string
		_ = json.Unmarshal(body, &m)
		assert.Equal(t, "usr_1", m["userId"])
		assert.Equal(t, "250.00", m["balance"])
		assert.Equal(t, "support credit", m["reason"])
		assert.Equal(t, "4321", m["adminPassword"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "User Balance Updated Successfully",
			"user": map[string]any{
				"id": "usr_1", "username": "alice",
				"wallet": map[string]any{"balance": "250.00", "onHold": "0.00"},
			},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleUpdateBalance(context.Background(), makeRequest(map[string]any{
		"user_id":        "usr_1",
		"balance":        "250.00",
		"reason":         "support credit",
		"admin_password": "4321",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "alice")
	assert.Contains(t, text, "New balance: 250.00 USD")
}

func TestHandleUpdateBalance_MissingParams(t *testing.T) {
	h, cleanup := newTestSetup(http.NewServeMux())
	defer cleanup()

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"no user", map[string]any{"balance": "1.00", "reason": "r", "admin_password": "p"}, "user_id is required"},
		{"no balance", map[string]any{"user_id": "u", "reason": "r", "admin_password": "p"}, "balance is required"},
		{"no reason", map[string]any{"user_id": "u", "balance": "1.00", "admin_password": "p"}, "reason is required"},
		{"no password", map[string]any{"user_id": "u", "balance": "1.00", "reason": "r"}, "admin_password is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleUpdateBalance(context.Background(), makeRequest(tt.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
			assert.Contains(t, resultText(t, result), tt.want)
		})
	}
}

func TestHandleUpdateBalance_WrongAdminPassword(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/users/update-balance", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "wrong_password",
			"message": "transactional password is incorrect",
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleUpdateBalance(context.Background(), makeRequest(map[string]any{
		"user_id": "usr_1", "balance": "1.00", "reason": "r", "admin_password": "0000",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "transactional password is incorrect")
}

// ============================================================
// Handler: deposits
// ============================================================

func TestHandleListDeposits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/deposits", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Pending", r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"deposits": []map[string]any{
				{"id": "dep_1", "userId": "usr_1", "amount": "50.00", "method": "erc20", "status": "Pending"},
			},
			"nextCursor": "",
			"hasMore":    false,
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListDeposits(context.Background(), makeRequest(map[string]any{"status": "Pending"}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 1 deposit(s)")
	assert.Contains(t, text, "50.00 USD via erc20")
	assert.NotContains(t, text, "More results")
}

func TestHandleReviewDeposit(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/deposits/dep_7/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		var m map[string]string
		_ = json.Unmarshal(body, &m)
		assert.Equal(t, "Confirmed", m["status"])
		assert.Equal(t, "4321", m["adminPassword"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Deposit status updated successfully.",
			"deposit": map[string]any{
				"id": "dep_7", "userId": "usr_1", "amount": "50.00",
				"method": "erc20", "status": "Confirmed",
			},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleReviewDeposit(context.Background(), makeRequest(map[string]any{
		"deposit_id":     "dep_7",
		"status":         "Confirmed",
		"admin_password": "4321",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Deposit dep_7 is now Confirmed")
	assert.Contains(t, text, "50.00 USD")
}

func TestHandleReviewDeposit_MissingParams(t *testing.T) {
	h, cleanup := newTestSetup(http.NewServeMux())
	defer cleanup()

	result, err := h.HandleReviewDeposit(context.Background(), makeRequest(map[string]any{
		"status": "Confirmed", "admin_password": "4321",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "deposit_id is required")
}

// ============================================================
// Handler: withdrawals
// ============================================================

func TestHandleListWithdrawals(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/withdrawals", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"withdrawals": []map[string]any{
				{
					"id": "wd_1", "userId": "usr_1", "amount": "40.00",
					"address": "0x52908400098527886E0F7030069857D2E4169EE7",
					"status":  "Processed", "txHash": "0xabc123",
				},
			},
			"nextCursor": "",
			"hasMore":    false,
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListWithdrawals(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Found 1 withdrawal(s)")
	assert.Contains(t, text, "40.00 USD to 0x52908400098527886E0F7030069857D2E4169EE7")
	assert.Contains(t, text, "Payout tx: 0xabc123")
}

func TestHandleReviewWithdrawal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/withdrawals/wd_3/status", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Withdrawal status updated successfully.",
			"withdrawal": map[string]any{
				"id": "wd_3", "userId": "usr_2", "amount": "25.00",
				"address": "0x52908400098527886E0F7030069857D2E4169EE7",
				"status":  "Processed", "isReviewed": true,
			},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleReviewWithdrawal(context.Background(), makeRequest(map[string]any{
		"withdrawal_id":  "wd_3",
		"status":         "Processed",
		"admin_password": "4321",
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "Withdrawal wd_3 is now Processed")
}

func TestHandleReviewWithdrawal_AlreadyReviewed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/withdrawals/wd_3/status", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":   "already_reviewed",
			"message": "The withdrawal status has been processed before.",
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleReviewWithdrawal(context.Background(), makeRequest(map[string]any{
		"withdrawal_id":  "wd_3",
		"status":         "Processed",
		"admin_password": "4321",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "processed before")
}

// ============================================================
// Handler: logs, settings, invitation codes
// ============================================================

func TestHandleListAdminLogs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/logs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"logs": []map[string]any{
				{"id": "log_1", "description": "Updated balance for user usr_1 to 250.00 USD", "reason": "support credit"},
			},
			"count": 1, "nextCursor": "", "hasMore": false,
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListAdminLogs(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Updated balance for user usr_1")
	assert.Contains(t, text, "Reason: support credit")
}

func TestHandleGetSettings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/settings", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"settings": map[string]any{
				"percentageOfSponsors":         0.5,
				"bonusWhenRegistering":         "0.50",
				"minimumBalanceForSubmissions": "25.00",
				"tokenValidityPeriodHours":     24,
				"serviceAvailabilityStartTime": "09:00",
				"serviceAvailabilityEndTime":   "21:00",
				"timezone":                     "UTC",
				"ercAddress":                   "0xDEAD",
			},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleGetSettings(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Registration bonus: 0.50 USD")
	assert.Contains(t, text, "Service hours: 09:00-21:00 (UTC)")
	assert.Contains(t, text, "ERC20 deposit address: 0xDEAD")
}

func TestHandleUpdateSettings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/settings", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		body, _ := io.ReadAll(r.Body)
		var m map[string]any
		_ = json.Unmarshal(body, &m)
		assert.Equal(t, "1.00", m["bonusWhenRegistering"])
		assert.Len(t, m, 1, "only patched keys should be sent")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"settings": map[string]any{
				"bonusWhenRegistering": "1.00",
				"timezone":             "UTC",
			},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleUpdateSettings(context.Background(), makeRequest(map[string]any{
		"settings": map[string]any{"bonusWhenRegistering": "1.00"},
	}))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	text := resultText(t, result)
	assert.Contains(t, text, "Settings updated (bonusWhenRegistering)")
	assert.Contains(t, text, "Registration bonus: 1.00 USD")
}

func TestHandleUpdateSettings_EmptyPatch(t *testing.T) {
	h, cleanup := newTestSetup(http.NewServeMux())
	defer cleanup()

	result, err := h.HandleUpdateSettings(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "non-empty object")
}

func TestHandleMintInvitationCode(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/invitation-codes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":        "Invitation code generated successfully.",
			"invitationCode": map[string]any{"id": "inv_1", "code": "AB12CD34", "used": false},
		})
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleMintInvitationCode(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "AB12CD34")
}

func TestHandleListInvitationCodes_Empty(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/invitation-codes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"invitationCodes":[],"count":0}`))
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	result, err := h.HandleListInvitationCodes(context.Background(), makeRequest(nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, resultText(t, result), "No invitation codes")
}

// ============================================================
// Cross-cutting behavior
// ============================================================

func TestHandlers_NeverReturnGoError(t *testing.T) {
	// All handlers should return (result, nil) even on failures.
	// The failure is encoded in result.IsError, not in the Go error.
	client := api.NewClient("http://127.0.0.1:1") // unreachable
	h := NewHandlers(client)

	tests := []struct {
		name string
		fn   func() (*mcp.CallToolResult, error)
	}{
		{"ListUsers", func() (*mcp.CallToolResult, error) {
			return h.HandleListUsers(context.Background(), makeRequest(nil))
		}},
		{"GetUser", func() (*mcp.CallToolResult, error) {
			return h.HandleGetUser(context.Background(), makeRequest(map[string]any{"user_id": "u"}))
		}},
		{"GetDashboard", func() (*mcp.CallToolResult, error) {
			return h.HandleGetDashboard(context.Background(), makeRequest(nil))
		}},
		{"UpdateBalance", func() (*mcp.CallToolResult, error) {
			return h.HandleUpdateBalance(context.Background(), makeRequest(map[string]any{
				"user_id": "u", "balance": "1.00", "reason": "r", "admin_password": "p",
			}))
		}},
		{"ListDeposits", func() (*mcp.CallToolResult, error) {
			return h.HandleListDeposits(context.Background(), makeRequest(nil))
		}},
		{"ReviewDeposit", func() (*mcp.CallToolResult, error) {
			return h.HandleReviewDeposit(context.Background(), makeRequest(map[string]any{
				"deposit_id": "d", "status": "Confirmed", "admin_password": "p",
			}))
		}},
		{"ListWithdrawals", func() (*mcp.CallToolResult, error) {
			return h.HandleListWithdrawals(context.Background(), makeRequest(nil))
		}},
		{"ReviewWithdrawal", func() (*mcp.CallToolResult, error) {
			return h.HandleReviewWithdrawal(context.Background(), makeRequest(map[string]any{
				"withdrawal_id": "w", "status": "Processed", "admin_password": "p",
			}))
		}},
		{"ListAdminLogs", func() (*mcp.CallToolResult, error) {
			return h.HandleListAdminLogs(context.Background(), makeRequest(nil))
		}},
		{"GetSettings", func() (*mcp.CallToolResult, error) {
			return h.HandleGetSettings(context.Background(), makeRequest(nil))
		}},
		{"UpdateSettings", func() (*mcp.CallToolResult, error) {
			return h.HandleUpdateSettings(context.Background(), makeRequest(map[string]any{
				"settings": map[string]any{"timezone": "UTC"},
			}))
		}},
		{"MintInvitationCode", func() (*mcp.CallToolResult, error) {
			return h.HandleMintInvitationCode(context.Background(), makeRequest(nil))
		}},
		{"ListInvitationCodes", func() (*mcp.CallToolResult, error) {
			return h.HandleListInvitationCodes(context.Background(), makeRequest(nil))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.fn()
			require.NoError(t, err, "handlers must not surface Go errors")
			require.NotNil(t, result)
			assert.True(t, result.IsError)
		})
	}
}

func TestHandlers_ConcurrentCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/admin/dashboard", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dashboard":{"totalUsers":1}}`))
	})

	h, cleanup := newTestSetup(mux)
	defer cleanup()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := h.HandleGetDashboard(context.Background(), makeRequest(nil))
			assert.NoError(t, err)
			assert.False(t, result.IsError)
		}()
	}
	wg.Wait()
}

func TestNewMCPServer_RegistersAllTools(t *testing.T) {
	s := NewMCPServer(Config{APIURL: "http://localhost:8080", Token: "tok"})
	require.NotNil(t, s)
}
