package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/mbd888/trackrate/internal/packs"
	"github.com/mbd888/trackrate/internal/settings"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/wallet"
)

func newTestManager(t *testing.T) (*Manager, *users.Service) {
	t.Helper()
	packsSvc := packs.NewService(packs.NewMemoryStore(), nil)
	walletSvc := wallet.NewService(wallet.NewMemoryStore(packsSvc))
	settingsSvc := settings.NewService(settings.NewMemoryStore())
	usersSvc := users.NewService(users.NewMemoryStore(), walletSvc, settingsSvc, packsSvc, nil)
	return NewManager([]byte("test-secret"), usersSvc, settingsSvc), usersSvc
}

func createUser(t *testing.T, svc *users.Service, n int) *users.User {
	t.Helper()
	ctx := context.Background()
	code, err := svc.MintInvitationCode(ctx, "")
	if err != nil {
		t.Fatalf("MintInvitationCode failed: %v", err)
	}
	u, err := svc.Signup(ctx, users.SignupParams{
		Username:              fmt.Sprintf("worker%d", n),
		Email:                 fmt.Sprintf("worker%d@example.com", n),
		Phone:                 fmt.Sprintf("+1555000%04d", n),
		Password:              "hunter22",
		TransactionalPassword: "4321",
		InvitationCode:        code.Code,
	})
	if err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	return u
}

func TestIssuePair_And_Verify(t *testing.T) {
	mgr, usersSvc := newTestManager(t)
	ctx := context.Background()

	u := createUser(t, usersSvc, 1)
	sid, err := usersSvc.RotateSession(ctx, u.ID, users.SurfaceUser)
	if err != nil {
		t.Fatalf("RotateSession failed: %v", err)
	}

	pair, err := mgr.IssuePair(ctx, u.ID, users.SurfaceUser, sid)
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	claims, err := mgr.Verify(pair.Access, TypeAccess)
	if err != nil {
		t.Fatalf("Verify access failed: %v", err)
	}
	if claims.UserID != u.ID {
		t.Errorf("Expected uid %s, got %s", u.ID, claims.UserID)
	}
	if claims.SessionID != sid {
		t.Errorf("Expected sid %s, got %s", sid, claims.SessionID)
	}
	if claims.Surface != users.SurfaceUser {
		t.Errorf("Expected surf user, got %s", claims.Surface)
	}

	if _, err := mgr.Verify(pair.Refresh, TypeRefresh); err != nil {
		t.Errorf("Verify refresh failed: %v", err)
	}
}

func TestVerify_RejectsWrongType(t *testing.T) {
	mgr, usersSvc := newTestManager(t)
	ctx := context.Background()

	u := createUser(t, usersSvc, 1)
	sid, _ := usersSvc.RotateSession(ctx, u.ID, users.SurfaceUser)
	pair, err := mgr.IssuePair(ctx, u.ID, users.SurfaceUser, sid)
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	// A refresh token must not pass as an access token, or vice versa.
	if _, err := mgr.Verify(pair.Refresh, TypeAccess); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for refresh-as-access, got %v", err)
	}
	if _, err := mgr.Verify(pair.Access, TypeRefresh); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for access-as-refresh, got %v", err)
	}
}

func TestVerify_RejectsBadTokens(t *testing.T) {
	mgr, usersSvc := newTestManager(t)
	ctx := context.Background()

	u := createUser(t, usersSvc, 1)
	sid, _ := usersSvc.RotateSession(ctx, u.ID, users.SurfaceUser)
	pair, _ := mgr.IssuePair(ctx, u.ID, users.SurfaceUser, sid)

	if _, err := mgr.Verify("", TypeAccess); err != ErrNoToken {
		t.Errorf("Expected ErrNoToken for empty token, got %v", err)
	}

	tampered := pair.Access[:len(pair.Access)-2] + "xx"
	if _, err := mgr.Verify(tampered, TypeAccess); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for tampered token, got %v", err)
	}

	// Token signed with a different secret.
	other := NewManager([]byte("other-secret"), nil, settings.NewService(settings.NewMemoryStore()))
	foreign, _ := other.mint(u.ID, users.SurfaceUser, sid, TypeAccess, time.Hour)
	if _, err := mgr.Verify(foreign, TypeAccess); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for foreign signature, got %v", err)
	}
}

func TestVerify_RejectsExpired(t *testing.T) {
	mgr, usersSvc := newTestManager(t)
	ctx := context.Background()

	u := createUser(t, usersSvc, 1)
	sid, _ := usersSvc.RotateSession(ctx, u.ID, users.SurfaceUser)

	expired, err := mgr.mint(u.ID, users.SurfaceUser, sid, TypeAccess, -time.Minute)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}
	if _, err := mgr.Verify(expired, TypeAccess); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestVerify_RejectsUnknownSurface(t *testing.T) {
	mgr, usersSvc := newTestManager(t)
	ctx := context.Background()

	u := createUser(t, usersSvc, 1)
	sid, _ := usersSvc.RotateSession(ctx, u.ID, users.SurfaceUser)

	token, _ := mgr.mint(u.ID, "backdoor", sid, TypeAccess, time.Hour)
	if _, err := mgr.Verify(token, TypeAccess); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for unknown surface, got %v", err)
	}
}

func TestCheckSession_RotationInvalidates(t *testing.T) {
	mgr, usersSvc := newTestManager(t)
	ctx := context.Background()

	u := createUser(t, usersSvc, 1)
	sid, _ := usersSvc.RotateSession(ctx, u.ID, users.SurfaceUser)
	pair, _ := mgr.IssuePair(ctx, u.ID, users.SurfaceUser, sid)
	claims, err := mgr.Verify(pair.Access, TypeAccess)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	if _, err := mgr.CheckSession(ctx, claims); err != nil {
		t.Fatalf("CheckSession failed for fresh session: %v", err)
	}

	// A new login rotates the session id; the old token dies.
	if _, err := usersSvc.RotateSession(ctx, u.ID, users.SurfaceUser); err != nil {
		t.Fatalf("RotateSession failed: %v", err)
	}
	if _, err := mgr.CheckSession(ctx, claims); err != ErrSessionInvalid {
		t.Errorf("Expected ErrSessionInvalid after rotation, got %v", err)
	}
}

func TestCheckSession_SurfacesAreIndependent(t *testing.T) {
	mgr, usersSvc := newTestManager(t)
	ctx := context.Background()

	u := createUser(t, usersSvc, 1)
	userSID, _ := usersSvc.RotateSession(ctx, u.ID, users.SurfaceUser)
	adminSID, _ := usersSvc.RotateSession(ctx, u.ID, users.SurfaceAdmin)

	userPair, _ := mgr.IssuePair(ctx, u.ID, users.SurfaceUser, userSID)
	adminPair, _ := mgr.IssuePair(ctx, u.ID, users.SurfaceAdmin, adminSID)
	userClaims, _ := mgr.Verify(userPair.Access, TypeAccess)
	adminClaims, _ := mgr.Verify(adminPair.Access, TypeAccess)

	// Re-login on the admin surface only.
	if _, err := usersSvc.RotateSession(ctx, u.ID, users.SurfaceAdmin); err != nil {
		t.Fatalf("RotateSession failed: %v", err)
	}

	if _, err := mgr.CheckSession(ctx, userClaims); err != nil {
		t.Errorf("User-surface token should survive an admin re-login, got %v", err)
	}
	if _, err := mgr.CheckSession(ctx, adminClaims); err != ErrSessionInvalid {
		t.Errorf("Expected ErrSessionInvalid for stale admin token, got %v", err)
	}
}

func TestCheckSession_InactiveUser(t *testing.T) {
	mgr, usersSvc := newTestManager(t)
	ctx := context.Background()

	u := createUser(t, usersSvc, 1)
	sid, _ := usersSvc.RotateSession(ctx, u.ID, users.SurfaceUser)
	pair, _ := mgr.IssuePair(ctx, u.ID, users.SurfaceUser, sid)
	claims, _ := mgr.Verify(pair.Access, TypeAccess)

	fresh, _ := usersSvc.Get(ctx, u.ID)
	fresh.Active = false
	if err := usersSvc.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if _, err := mgr.CheckSession(ctx, claims); err != ErrSessionInvalid {
		t.Errorf("Expected ErrSessionInvalid for inactive user, got %v", err)
	}
}
