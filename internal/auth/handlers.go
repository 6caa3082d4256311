package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/validation"
)

// Handler provides the login and token-refresh endpoints.
type Handler struct {
	manager *Manager
	users   *users.Service
}

// NewHandler creates a new auth handler.
func NewHandler(manager *Manager, us *users.Service) *Handler {
	return &Handler{manager: manager, users: us}
}

// RegisterRoutes sets up the public auth routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.Login)
	r.POST("/refresh", h.Refresh)
}

// RegisterAdminRoutes sets up the admin-surface login.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.POST("/login", h.AdminLogin)
	r.POST("/refresh", h.Refresh)
}

// LoginRequest accepts either a username or an email as the handle.
type LoginRequest struct {
	UsernameOrEmail string `json:"usernameOrEmail"`
	Password        string `json:"password"`
}

// Login handles POST /v1/auth/login.
func (h *Handler) Login(c *gin.Context) {
	h.login(c, users.SurfaceUser)
}

// AdminLogin handles POST /v1/admin/auth/login. Staff accounts only.
func (h *Handler) AdminLogin(c *gin.Context) {
	h.login(c, users.SurfaceAdmin)
}

func (h *Handler) login(c *gin.Context, surface string) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("usernameOrEmail", req.UsernameOrEmail),
		validation.Required("password", req.Password),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}

	u, err := h.users.Authenticate(c.Request.Context(), req.UsernameOrEmail, req.Password)
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "message": "Invalid username or password."})
		return
	case errors.Is(err, users.ErrAccountInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": "account_inactive", "message": "Your account is inactive. Please contact support."})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Login failed"})
		return
	}

	if surface == users.SurfaceAdmin && !u.IsStaff {
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Access restricted to admin users only."})
		return
	}

	// Rotating the surface session invalidates all earlier tokens for
	// this surface; the other surface's tokens stay valid.
	sid, err := h.users.RotateSession(c.Request.Context(), u.ID, surface)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Login failed"})
		return
	}
	pair, err := h.manager.IssuePair(c.Request.Context(), u.ID, surface, sid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Login failed"})
		return
	}

	LoginsTotal.WithLabelValues(surface).Inc()

	profile, err := h.users.BuildProfile(c.Request.Context(), u.ID)
	if err != nil {
		// Tokens are already minted; degrade to the bare user row.
		c.JSON(http.StatusOK, gin.H{"access": pair.Access, "refresh": pair.Refresh, "user": u})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": pair.Access, "refresh": pair.Refresh, "user": profile})
}

// Refresh handles POST /v1/auth/refresh: a valid refresh token whose
// session still matches mints a new access token.
func (h *Handler) Refresh(c *gin.Context) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}

	claims, err := h.manager.Verify(req.Refresh, TypeRefresh)
	if err != nil {
		abortInvalidSession(c)
		return
	}
	if _, err := h.manager.CheckSession(c.Request.Context(), claims); err != nil {
		abortInvalidSession(c)
		return
	}

	access, err := h.manager.MintAccess(c.Request.Context(), claims)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to refresh token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access": access})
}
