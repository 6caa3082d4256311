package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/trackrate/internal/users"
)

const (
	// ContextKeyUserID is the key for the authenticated user's id.
	ContextKeyUserID = "authUserID"
	// ContextKeyUser is the key for the loaded user row.
	ContextKeyUser = "authUser"
	// ContextKeySurface is the key for the token's surface claim.
	ContextKeySurface = "authSurface"
)

// Middleware authenticates a bearer access token for the given surface
// and loads the user into the context. Tokens minted for the other
// surface, or carrying a stale session id, are rejected.
func Middleware(m *Manager, surface string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := m.Verify(bearerToken(c), TypeAccess)
		if err != nil || claims.Surface != surface {
			abortInvalidSession(c)
			return
		}

		u, err := m.CheckSession(c.Request.Context(), claims)
		if err != nil {
			abortInvalidSession(c)
			return
		}

		c.Set(ContextKeyUserID, u.ID)
		c.Set(ContextKeyUser, u)
		c.Set(ContextKeySurface, claims.Surface)

		// Stamp last seen for workers (fire and forget).
		if !u.IsStaff {
			go m.users.TouchLastConnection(context.Background(), u.ID)
		}

		c.Next()
	}
}

// RequireStaff rejects authenticated users who are not staff. Layered
// after Middleware on the admin surface.
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := GetUser(c)
		if !ok || !u.IsStaff {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Access restricted to admin users only.",
			})
			return
		}
		c.Next()
	}
}

// GetUser returns the authenticated user from context.
func GetUser(c *gin.Context) (*users.User, bool) {
	v, exists := c.Get(ContextKeyUser)
	if !exists {
		return nil, false
	}
	u, ok := v.(*users.User)
	return u, ok
}

// GetUserID returns the authenticated user's id, or "".
func GetUserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func abortInvalidSession(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "invalid_session",
		"message": "Session has been invalidated. Please log in again.",
	})
}
