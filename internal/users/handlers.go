package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/trackrate/internal/validation"
)

// Handler provides HTTP handlers for signup and the authenticated
// user-surface profile endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a new user handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes sets up unauthenticated routes.
func (h *Handler) RegisterPublicRoutes(r *gin.RouterGroup) {
	r.POST("/signup", h.Signup)
}

// RegisterRoutes sets up the authenticated user-surface routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Profile)
	r.PUT("/me", h.UpdateProfile)
	r.POST("/me/password", h.ChangePassword)
	r.POST("/me/transactional-password", h.ChangeTransactionalPassword)
	r.GET("/me/team", h.Team)
}

// SignupRequest is the registration payload.
type SignupRequest struct {
	Username              string `json:"username"`
	Email                 string `json:"email"`
	Phone                 string `json:"phone"`
	Password              string `json:"password"`
	TransactionalPassword string `json:"transactionalPassword"`
	FirstName             string `json:"firstName"`
	LastName              string `json:"lastName"`
	Gender                string `json:"gender"`
	InvitationCode        string `json:"invitationCode"`
}

// Signup handles POST /v1/auth/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}

	if errs := validation.Validate(
		validation.Required("username", req.Username),
		validation.ValidUsername("username", req.Username),
		validation.Required("email", req.Email),
		validation.ValidEmail("email", req.Email),
		validation.Required("phone", req.Phone),
		validation.ValidPhone("phone", req.Phone),
		validation.Required("password", req.Password),
		validation.ValidTransactionalPassword("transactionalPassword", req.TransactionalPassword),
		validation.Required("invitationCode", req.InvitationCode),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error(), "fields": errs})
		return
	}

	u, err := h.service.Signup(c.Request.Context(), SignupParams{
		Username:              req.Username,
		Email:                 req.Email,
		Phone:                 req.Phone,
		Password:              req.Password,
		TransactionalPassword: req.TransactionalPassword,
		FirstName:             validation.SanitizeString(req.FirstName, 64),
		LastName:              validation.SanitizeString(req.LastName, 64),
		Gender:                validation.SanitizeString(req.Gender, 16),
		InvitationCode:        req.InvitationCode,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, u)
	case errors.Is(err, ErrUsernameTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "username_taken", "message": "Username already taken"})
	case errors.Is(err, ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email_taken", "message": "Email already registered"})
	case errors.Is(err, ErrPhoneTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "phone_taken", "message": "Phone number already registered"})
	case errors.Is(err, ErrInvalidInvitation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_invitation", "message": "Invalid invitation code."})
	case errors.Is(err, ErrInvitationUsed):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invitation_used", "message": "The invitation code has been used"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to create account"})
	}
}

// Profile handles GET /v1/me.
func (h *Handler) Profile(c *gin.Context) {
	profile, err := h.service.BuildProfile(c.Request.Context(), c.GetString("authUserID"))
	if errors.Is(err, ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "User not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile handles PUT /v1/me. Only the cosmetic fields are
// editable; identity and counters are not.
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req struct {
		FirstName      *string `json:"firstName"`
		LastName       *string `json:"lastName"`
		Gender         *string `json:"gender"`
		ProfilePicture *string `json:"profilePicture"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}

	u, err := h.service.Get(c.Request.Context(), c.GetString("authUserID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to load user"})
		return
	}

	if req.FirstName != nil {
		u.FirstName = validation.SanitizeString(*req.FirstName, 64)
	}
	if req.LastName != nil {
		u.LastName = validation.SanitizeString(*req.LastName, 64)
	}
	if req.Gender != nil {
		u.Gender = validation.SanitizeString(*req.Gender, 16)
	}
	if req.ProfilePicture != nil {
		u.ProfilePicture = validation.SanitizeString(*req.ProfilePicture, 500)
	}

	if err := h.service.Update(c.Request.Context(), u); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// ChangePassword handles POST /v1/me/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("currentPassword", req.CurrentPassword),
		validation.Required("newPassword", req.NewPassword),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}

	err := h.service.ChangePassword(c.Request.Context(), c.GetString("authUserID"), req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "password updated"})
	case errors.Is(err, ErrWrongPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "wrong_password", "message": "Current password is incorrect."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to change password"})
	}
}

// ChangeTransactionalPassword handles POST /v1/me/transactional-password.
func (h *Handler) ChangeTransactionalPassword(c *gin.Context) {
	var req struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("currentPassword", req.CurrentPassword),
		validation.ValidTransactionalPassword("newPassword", req.NewPassword),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}

	err := h.service.ChangeTransactionalPassword(c.Request.Context(), c.GetString("authUserID"), req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "transactional password updated"})
	case errors.Is(err, ErrWrongTransactionalPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "wrong_password", "message": "Current password is incorrect."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to change transactional password"})
	}
}

// Team handles GET /v1/me/team.
func (h *Handler) Team(c *gin.Context) {
	members, err := h.service.Team(c.Request.Context(), c.GetString("authUserID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Failed to load team"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": members, "count": len(members)})
}
