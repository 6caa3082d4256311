// Package auth issues and verifies the bearer tokens for the two API
// surfaces.
//
// Authentication model:
// - Access and refresh tokens are HS256 JWTs carrying {uid, sid, surf}.
// - sid must match the per-surface session id stored on the user row;
//   a fresh login rotates that id and so invalidates every earlier
//   token for that surface only.
// - The admin surface additionally requires a staff account.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mbd888/trackrate/internal/settings"
	"github.com/mbd888/trackrate/internal/users"
)

// Errors
var (
	ErrNoToken        = errors.New("authorization token required")
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrSessionInvalid = errors.New("session has been invalidated")
)

// Token types carried in the typ claim.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// RefreshValidity is the refresh token lifetime. Access validity comes
// from settings (token_validity_period_hours).
const RefreshValidity = 7 * 24 * time.Hour

// Claims are the token payload: the user, the surface, and the session
// id the surface's stored value must match.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	Surface   string `json:"surf"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is what login hands back.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Manager mints and verifies tokens and checks sessions against the
// user store.
type Manager struct {
	secret   []byte
	users    *users.Service
	settings *settings.Service
}

// NewManager creates an auth manager.
func NewManager(secret []byte, us *users.Service, st *settings.Service) *Manager {
	return &Manager{secret: secret, users: us, settings: st}
}

// IssuePair mints an access + refresh token pair bound to the given
// surface session id.
func (m *Manager) IssuePair(ctx context.Context, userID, surface, sessionID string) (*TokenPair, error) {
	access, err := m.mint(userID, surface, sessionID, TypeAccess, m.settings.TokenValidity(ctx))
	if err != nil {
		return nil, err
	}
	refresh, err := m.mint(userID, surface, sessionID, TypeRefresh, RefreshValidity)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// MintAccess mints a fresh access token for an already-verified refresh
// claim set.
func (m *Manager) MintAccess(ctx context.Context, claims *Claims) (string, error) {
	return m.mint(claims.UserID, claims.Surface, claims.SessionID, TypeAccess, m.settings.TokenValidity(ctx))
}

func (m *Manager) mint(userID, surface, sessionID, typ string, validity time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:    userID,
		SessionID: sessionID,
		Surface:   surface,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validity)),
			Issuer:    "trackrate",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and checks its signature, expiry, type, and
// required custom claims.
func (m *Manager) Verify(tokenString, wantType string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrNoToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.SessionID == "" || claims.TokenType != wantType {
		return nil, ErrInvalidToken
	}
	if claims.Surface != users.SurfaceUser && claims.Surface != users.SurfaceAdmin {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// CheckSession loads the user behind a claim set and rejects when the
// account is gone, inactive, or the stored per-surface session id no
// longer matches.
func (m *Manager) CheckSession(ctx context.Context, claims *Claims) (*users.User, error) {
	u, err := m.users.Get(ctx, claims.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, ErrSessionInvalid
	}
	stored := u.SessionID(claims.Surface)
	if stored == "" || stored != claims.SessionID {
		return nil, ErrSessionInvalid
	}
	return u, nil
}
