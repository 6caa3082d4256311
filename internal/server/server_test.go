package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/trackrate/internal/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testConfig returns a minimal config for testing (in-memory storage)
func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		Env:                "development",
		LogLevel:           "error",
		LogFormat:          "text",
		JWTSecret:          "test-secret",
		ResetTimezone:      "America/New_York",
		ResetCheckInterval: time.Minute,
		AdminUsername:      "root",
		AdminEmail:         "root@example.com",
		AdminPassword:      "super-secret",
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(testConfig())
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return s
}

// doJSON performs a request against the router and returns the recorder
func doJSON(s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// ---------------------------------------------------------------------------
// Health endpoint tests
// ---------------------------------------------------------------------------

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/health", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}

	if resp["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", resp["status"])
	}
}

func TestLivenessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/health/live", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestReadinessEndpoint(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/health/ready", "", "")

	// Server hasn't called Run() so ready is false
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 (not ready), got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Route registration tests
// ---------------------------------------------------------------------------

func registeredRoutes(s *Server) map[string]bool {
	set := make(map[string]bool)
	for _, route := range s.router.Routes() {
		set[route.Method+":"+route.Path] = true
	}
	return set
}

func TestWorkerRoutesRegistered(t *testing.T) {
	s := newTestServer(t)
	routes := registeredRoutes(s)

	expected := []string{
		"POST:/v1/auth/signup",
		"POST:/v1/auth/login",
		"POST:/v1/auth/refresh",
		"GET:/v1/me",
		"PUT:/v1/me",
		"POST:/v1/me/password",
		"GET:/v1/me/team",
		"GET:/v1/tasks/current",
		"POST:/v1/tasks/play",
		"POST:/v1/tasks/play-pending",
		"GET:/v1/tasks/history",
		"POST:/v1/deposits",
		"GET:/v1/deposits",
		"POST:/v1/withdrawals",
		"GET:/v1/withdrawals",
		"GET:/v1/notifications",
		"POST:/v1/notifications/read-all",
		"GET:/v1/packs",
		"GET:/v1/settings",
		"GET:/v1/ws",
	}

	for _, e := range expected {
		if !routes[e] {
			t.Errorf("Worker route %s not registered", e)
		}
	}
}

func TestAdminRoutesRegistered(t *testing.T) {
	s := newTestServer(t)
	routes := registeredRoutes(s)

	expected := []string{
		"POST:/v1/admin/auth/login",
		"POST:/v1/admin/auth/refresh",
		"GET:/v1/admin/users",
		"GET:/v1/admin/users/:id",
		"GET:/v1/admin/dashboard",
		"POST:/v1/admin/users/update-balance",
		"POST:/v1/admin/invitation-codes",
		"GET:/v1/admin/invitation-codes",
		"GET:/v1/admin/deposits",
		"PUT:/v1/admin/deposits/:id/status",
		"GET:/v1/admin/withdrawals",
		"PUT:/v1/admin/withdrawals/:id/status",
		"GET:/v1/admin/special-tasks",
		"POST:/v1/admin/special-tasks",
		"GET:/v1/admin/products",
		"POST:/v1/admin/products/import",
		"GET:/v1/admin/hold-bands",
		"GET:/v1/admin/logs",
		"GET:/v1/admin/settings",
		"PUT:/v1/admin/settings",
		"GET:/v1/admin/reset-tracker",
	}

	for _, e := range expected {
		if !routes[e] {
			t.Errorf("Admin route %s not registered", e)
		}
	}
}

// ---------------------------------------------------------------------------
// Auth enforcement tests
// ---------------------------------------------------------------------------

func TestWorkerRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/v1/me", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/v1/admin/users", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// End-to-end signup flow
// ---------------------------------------------------------------------------

func TestSignupLoginFlow(t *testing.T) {
	s := newTestServer(t)

	// Admin logs in with the bootstrapped staff account
	w := doJSON(s, "POST", "/v1/admin/auth/login", "",
		`{"usernameOrEmail":"root","password":"super-secret"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Admin login failed: %d %s", w.Code, w.Body.String())
	}
	var loginResp struct {
		Access string `json:"access"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("Failed to parse login response: %v", err)
	}
	adminToken := loginResp.Access
	if adminToken == "" {
		t.Fatal("Expected access token in admin login response")
	}

	// Admin mints an invitation code
	w = doJSON(s, "POST", "/v1/admin/invitation-codes", adminToken, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("Mint invitation code failed: %d %s", w.Code, w.Body.String())
	}
	var mintResp struct {
		InvitationCode struct {
			Code string `json:"code"`
		} `json:"invitationCode"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &mintResp); err != nil {
		t.Fatalf("Failed to parse mint response: %v", err)
	}
	if mintResp.InvitationCode.Code == "" {
		t.Fatal("Expected invitation code in mint response")
	}

	// Signup without a code is rejected
	w = doJSON(s, "POST", "/v1/auth/signup", "",
		`{"username":"nocode","email":"nocode@example.com","phone":"+15550000001","password":"pass123456","transactionalPassword":"1234"}`)
	if w.Code == http.StatusCreated {
		t.Error("Expected signup without invitation code to fail")
	}

	// Worker signs up with the minted code
	body := `{"username":"worker1","email":"worker1@example.com","phone":"+15550000002","password":"pass123456",` +
		`"transactionalPassword":"1234","invitationCode":"` + mintResp.InvitationCode.Code + `"}`
	w = doJSON(s, "POST", "/v1/auth/signup", "", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Signup failed: %d %s", w.Code, w.Body.String())
	}

	// Worker logs in on the user surface
	w = doJSON(s, "POST", "/v1/auth/login", "",
		`{"usernameOrEmail":"worker1","password":"pass123456"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("Worker login failed: %d %s", w.Code, w.Body.String())
	}
	if err := json.Unmarshal(w.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("Failed to parse login response: %v", err)
	}
	workerToken := loginResp.Access

	// Worker reads their profile
	w = doJSON(s, "GET", "/v1/me", workerToken, "")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200 from /v1/me, got %d: %s", w.Code, w.Body.String())
	}

	// Admin tokens don't work on the worker surface
	w = doJSON(s, "GET", "/v1/me", adminToken, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for admin token on worker surface, got %d", w.Code)
	}

	// Worker tokens don't work on the admin surface
	w = doJSON(s, "GET", "/v1/admin/users", workerToken, "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for worker token on admin surface, got %d", w.Code)
	}

	// Admin lists users and sees the new worker
	w = doJSON(s, "GET", "/v1/admin/users", adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("Admin list users failed: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "worker1") {
		t.Error("Expected worker1 in admin user list")
	}
}

// ---------------------------------------------------------------------------
// Middleware tests
// ---------------------------------------------------------------------------

func TestRequestIDHeader(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/health", "", "")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID header on response")
	}
}

func TestNotFoundRoute(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(s, "GET", "/v1/nonexistent", "", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
