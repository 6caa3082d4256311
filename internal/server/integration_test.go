//go:build integration

package server

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/mbd888/trackrate/internal/testutil"
)

// TestPostgresEndToEnd drives the worker lifecycle against a real database:
// staff bootstrap, invitation minting, signup, a reviewed deposit, and the
// credited balance showing up on the worker's profile.
func TestPostgresEndToEnd(t *testing.T) {
	_, dbURL, cleanup := testutil.PGTest(t)
	defer cleanup()

	cfg := testConfig()
	cfg.DatabaseURL = dbURL
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}

	// The bootstrapped staff account logs in on the admin surface.
	w := doJSON(s, "POST", "/v1/admin/auth/login", "",
		`{"usernameOrEmail":"root","password":"super-secret"}`)
	if w.Code != 200 {
		t.Fatalf("admin login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var adminLogin struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &adminLogin); err != nil {
		t.Fatalf("Failed to parse admin login response: %v", err)
	}

	w = doJSON(s, "POST", "/v1/admin/invitation-codes", adminLogin.Access, `{}`)
	if w.Code != 201 {
		t.Fatalf("mint invitation: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var mint struct {
		InvitationCode struct {
			Code string `json:"code"`
		} `json:"invitationCode"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &mint); err != nil {
		t.Fatalf("Failed to parse invitation response: %v", err)
	}

	signup := `{"username":"itworker","email":"itworker@example.com","phone":"+15550001000",` +
		`"password":"pass123456","transactionalPassword":"1234","invitationCode":"` + mint.InvitationCode.Code + `"}`
	w = doJSON(s, "POST", "/v1/auth/signup", "", signup)
	if w.Code != 201 {
		t.Fatalf("signup: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(s, "POST", "/v1/auth/login", "",
		`{"usernameOrEmail":"itworker","password":"pass123456"}`)
	if w.Code != 200 {
		t.Fatalf("worker login: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var workerLogin struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &workerLogin); err != nil {
		t.Fatalf("Failed to parse worker login response: %v", err)
	}

	// Worker submits a bank-transfer deposit; it lands Pending.
	w = doJSON(s, "POST", "/v1/deposits", workerLogin.Access,
		`{"amount":"150.00","method":"transfer","reference":"wire-123"}`)
	if w.Code != 201 {
		t.Fatalf("submit deposit: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var submitted struct {
		Deposit struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"deposit"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &submitted); err != nil {
		t.Fatalf("Failed to parse deposit response: %v", err)
	}
	if submitted.Deposit.Status != "Pending" {
		t.Errorf("Expected deposit status Pending, got %s", submitted.Deposit.Status)
	}

	// Admin confirms it. The bootstrap account's transactional password is
	// seeded from the admin password.
	w = doJSON(s, "PUT", "/v1/admin/deposits/"+submitted.Deposit.ID+"/status", adminLogin.Access,
		`{"status":"Confirmed","adminPassword":"super-secret"}`)
	if w.Code != 200 {
		t.Fatalf("confirm deposit: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// The credit shows on the worker's wallet.
	w = doJSON(s, "GET", "/v1/me", workerLogin.Access, "")
	if w.Code != 200 {
		t.Fatalf("profile: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var profile struct {
		Wallet struct {
			Balance string `json:"balance"`
		} `json:"wallet"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &profile); err != nil {
		t.Fatalf("Failed to parse profile response: %v", err)
	}
	if profile.Wallet.Balance != "150.00" {
		t.Errorf("Expected balance 150.00, got %s", profile.Wallet.Balance)
	}

	// Health reports the database check green.
	w = doJSON(s, "GET", "/health", "", "")
	if w.Code != 200 {
		t.Fatalf("health: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"database":"healthy"`) {
		t.Errorf("Expected healthy database check, got %s", w.Body.String())
	}
}
