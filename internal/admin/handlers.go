package admin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/trackrate/internal/auth"
	"github.com/mbd888/trackrate/internal/money"
	"github.com/mbd888/trackrate/internal/pagination"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/validation"
	"github.com/mbd888/trackrate/internal/wallet"
)

// Handler exposes the admin user-management surface.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the surface on the admin group. The caller is
// expected to have staff auth in front of it.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/users", h.ListUsers)
	r.GET("/users/:id", h.GetUser)
	r.GET("/dashboard", h.Dashboard)

	r.POST("/users/update-login-password", h.UpdateLoginPassword)
	r.POST("/users/update-withdrawal-password", h.UpdateWithdrawalPassword)
	r.POST("/users/update-balance", h.UpdateBalance)
	r.POST("/users/calculate-balance", h.CalculateBalance)
	r.POST("/users/update-profit", h.UpdateProfit)
	r.POST("/users/calculate-profit", h.CalculateProfit)
	r.POST("/users/update-salary", h.UpdateSalary)
	r.POST("/users/calculate-salary", h.CalculateSalary)
	r.POST("/users/toggle-reg-bonus", h.ToggleRegBonus)
	r.POST("/users/toggle-min-balance", h.ToggleMinBalance)
	r.POST("/users/toggle-active", h.ToggleActive)
	r.POST("/users/reset-account", h.ResetAccount)
	r.POST("/users/update-credit-score", h.UpdateCreditScore)
	r.POST("/users/set-pack", h.SetPack)

	r.GET("/invitation-codes", h.ListInvitationCodes)
	r.POST("/invitation-codes", h.MintInvitationCode)
}

// ListUsers handles GET /v1/admin/users. Staff accounts are excluded;
// search matches username or email.
func (h *Handler) ListUsers(c *gin.Context) {
	limit := pagination.ParseLimit(c.Query("limit"), 20, 100)
	workers := false
	f := users.Filter{
		Search: c.Query("search"),
		Staff:  &workers,
		Limit:  limit + 1,
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		f.Active = &active
	}
	if raw := c.Query("cursor"); raw != "" {
		cur, err := pagination.Decode(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": "Invalid pagination cursor"})
			return
		}
		f.Before = cur.CreatedAt
		f.BeforeID = cur.ID
	}

	list, err := h.service.ListUsers(c.Request.Context(), f)
	if err != nil {
		respondAdminError(c, err, "Failed to list users")
		return
	}

	page, next, hasMore := pagination.ComputePage(list, limit, func(u *UserSummary) (time.Time, string) {
		return u.CreatedAt, u.ID
	})
	c.JSON(http.StatusOK, gin.H{"users": page, "nextCursor": next, "hasMore": hasMore})
}

// GetUser handles GET /v1/admin/users/:id.
func (h *Handler) GetUser(c *gin.Context) {
	sum, err := h.service.GetUser(c.Request.Context(), auth.GetUserID(c), c.Param("id"))
	if err != nil {
		respondAdminError(c, err, "Failed to load user")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User Info Retrieved Succussfully", "user": sum})
}

// Dashboard handles GET /v1/admin/dashboard.
func (h *Handler) Dashboard(c *gin.Context) {
	d, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		respondAdminError(c, err, "Failed to build dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": d})
}

// UpdateLoginPassword handles POST /v1/admin/users/update-login-password.
func (h *Handler) UpdateLoginPassword(c *gin.Context) {
	var req struct {
		UserID   string `json:"userId"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("password", req.Password),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	sum, err := h.service.SetLoginPassword(c.Request.Context(), auth.GetUserID(c), req.UserID, req.Password)
	if err != nil {
		respondAdminError(c, err, "Failed to update password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User Password Updated Successfully", "user": sum})
}

// UpdateWithdrawalPassword handles POST /v1/admin/users/update-withdrawal-password.
func (h *Handler) UpdateWithdrawalPassword(c *gin.Context) {
	var req struct {
		UserID   string `json:"userId"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.ValidTransactionalPassword("password", req.Password),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	sum, err := h.service.SetWithdrawalPassword(c.Request.Context(), auth.GetUserID(c), req.UserID, req.Password)
	if err != nil {
		respondAdminError(c, err, "Failed to update withdrawal password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User Withdrawal Password Updated Successfully", "user": sum})
}

// UpdateBalance handles POST /v1/admin/users/update-balance.
func (h *Handler) UpdateBalance(c *gin.Context) {
	var req struct {
		UserID        string `json:"userId"`
		Balance       string `json:"balance"`
		Reason        string `json:"reason"`
		AdminPassword string `json:"adminPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("balance", req.Balance),
		validation.ValidAmount("balance", req.Balance),
		validation.Required("reason", req.Reason),
		validation.Required("adminPassword", req.AdminPassword),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	amount, _ := money.Parse(req.Balance)
	sum, err := h.service.UpdateBalance(c.Request.Context(), auth.GetUserID(c), req.AdminPassword, req.UserID, amount, req.Reason)
	if err != nil {
		respondAdminError(c, err, "Failed to update balance")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User Balance Updated Successfully", "user": sum})
}

// CalculateBalance handles POST /v1/admin/users/calculate-balance.
func (h *Handler) CalculateBalance(c *gin.Context) {
	var req struct {
		UserID            string `json:"userId"`
		BalanceAdjustment string `json:"balanceAdjustment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("balanceAdjustment", req.BalanceAdjustment),
		validation.ValidAmount("balanceAdjustment", req.BalanceAdjustment),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	amount, _ := money.Parse(req.BalanceAdjustment)
	calc, err := h.service.CalculateBalance(c.Request.Context(), req.UserID, amount)
	if err != nil {
		respondAdminError(c, err, "Failed to calculate balance")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Balance calculation completed successfully.", "calculation": calc})
}

// UpdateProfit handles POST /v1/admin/users/update-profit. The profit
// is a target value, not a delta; zero is allowed.
func (h *Handler) UpdateProfit(c *gin.Context) {
	var req struct {
		UserID        string `json:"userId"`
		Profit        string `json:"profit"`
		Reason        string `json:"reason"`
		AdminPassword string `json:"adminPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("profit", req.Profit),
		validation.Required("reason", req.Reason),
		validation.Required("adminPassword", req.AdminPassword),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	target, ok := money.Parse(req.Profit)
	if !ok || target < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": "profit: must be a non-negative amount"})
		return
	}
	sum, err := h.service.UpdateProfit(c.Request.Context(), auth.GetUserID(c), req.AdminPassword, req.UserID, target, req.Reason)
	if err != nil {
		respondAdminError(c, err, "Failed to update profit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User Total Profit Updated Successfully", "user": sum})
}

// CalculateProfit handles POST /v1/admin/users/calculate-profit.
func (h *Handler) CalculateProfit(c *gin.Context) {
	var req struct {
		UserID           string `json:"userId"`
		ProfitAdjustment string `json:"profitAdjustment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("profitAdjustment", req.ProfitAdjustment),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	target, ok := money.Parse(req.ProfitAdjustment)
	if !ok || target < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": "profitAdjustment: must be a non-negative amount"})
		return
	}
	calc, err := h.service.CalculateProfit(c.Request.Context(), req.UserID, target)
	if err != nil {
		respondAdminError(c, err, "Failed to calculate profit")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profit calculation completed successfully.", "calculation": calc})
}

// UpdateSalary handles POST /v1/admin/users/update-salary.
func (h *Handler) UpdateSalary(c *gin.Context) {
	var req struct {
		UserID        string `json:"userId"`
		Salary        string `json:"salary"`
		Reason        string `json:"reason"`
		AdminPassword string `json:"adminPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("salary", req.Salary),
		validation.Required("reason", req.Reason),
		validation.Required("adminPassword", req.AdminPassword),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	target, ok := money.Parse(req.Salary)
	if !ok || target < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": "salary: must be a non-negative amount"})
		return
	}
	sum, err := h.service.UpdateSalary(c.Request.Context(), auth.GetUserID(c), req.AdminPassword, req.UserID, target, req.Reason)
	if err != nil {
		respondAdminError(c, err, "Failed to update salary")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User Salary Updated Successfully", "user": sum})
}

// CalculateSalary handles POST /v1/admin/users/calculate-salary.
func (h *Handler) CalculateSalary(c *gin.Context) {
	var req struct {
		UserID           string `json:"userId"`
		SalaryAdjustment string `json:"salaryAdjustment"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("salaryAdjustment", req.SalaryAdjustment),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	target, ok := money.Parse(req.SalaryAdjustment)
	if !ok || target < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": "salaryAdjustment: must be a non-negative amount"})
		return
	}
	calc, err := h.service.CalculateSalary(c.Request.Context(), req.UserID, target)
	if err != nil {
		respondAdminError(c, err, "Failed to calculate salary")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Salary calculation completed successfully.", "calculation": calc})
}

// ToggleRegBonus handles POST /v1/admin/users/toggle-reg-bonus.
func (h *Handler) ToggleRegBonus(c *gin.Context) {
	var req struct {
		UserID        string `json:"userId"`
		AdminPassword string `json:"adminPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("adminPassword", req.AdminPassword),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	sum, err := h.service.ToggleRegBonus(c.Request.Context(), auth.GetUserID(c), req.AdminPassword, req.UserID)
	if err != nil {
		respondAdminError(c, err, "Failed to toggle registration bonus")
		return
	}
	msg := "Registration bonus has been removed successfully"
	if sum.RegBonusAdded {
		msg = "Registration bonus has been added successfully"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "user": sum})
}

// ToggleMinBalance handles POST /v1/admin/users/toggle-min-balance.
func (h *Handler) ToggleMinBalance(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(validation.Required("userId", req.UserID)); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	sum, err := h.service.ToggleMinBalance(c.Request.Context(), auth.GetUserID(c), req.UserID)
	if err != nil {
		respondAdminError(c, err, "Failed to toggle minimum balance")
		return
	}
	msg := "User Minimun Balance For Submission Enabled"
	if sum.MinBalanceWaived {
		msg = "User Mininum Balance For Submission Disabled"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "user": sum})
}

// ToggleActive handles POST /v1/admin/users/toggle-active.
func (h *Handler) ToggleActive(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(validation.Required("userId", req.UserID)); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	sum, err := h.service.ToggleActive(c.Request.Context(), auth.GetUserID(c), req.UserID)
	if err != nil {
		respondAdminError(c, err, "Failed to toggle active status")
		return
	}
	msg := "User has been deactivated successfully"
	if sum.Active {
		msg = "User has be Actived back"
	}
	c.JSON(http.StatusOK, gin.H{"message": msg, "user": sum})
}

// ResetAccount handles POST /v1/admin/users/reset-account. Counts are
// optional; see Service.ResetAccount for the defaults.
func (h *Handler) ResetAccount(c *gin.Context) {
	var req struct {
		UserID          string `json:"userId"`
		SubmissionCount *int   `json:"submissionCount"`
		SetCount        *int   `json:"setCount"`
		AdminPassword   string `json:"adminPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("adminPassword", req.AdminPassword),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	sum, err := h.service.ResetAccount(c.Request.Context(), auth.GetUserID(c), req.AdminPassword, req.UserID, req.SubmissionCount, req.SetCount)
	if err != nil {
		respondAdminError(c, err, "Failed to reset account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User Account has been reset successfully", "user": sum})
}

// UpdateCreditScore handles POST /v1/admin/users/update-credit-score.
func (h *Handler) UpdateCreditScore(c *gin.Context) {
	var req struct {
		UserID        string  `json:"userId"`
		CreditScore   float64 `json:"creditScore"`
		AdminPassword string  `json:"adminPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("adminPassword", req.AdminPassword),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	sum, err := h.service.SetCreditScore(c.Request.Context(), auth.GetUserID(c), req.AdminPassword, req.UserID, req.CreditScore)
	if err != nil {
		respondAdminError(c, err, "Failed to update credit score")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User Credit score has been updated successfully", "user": sum})
}

// SetPack handles POST /v1/admin/users/set-pack.
func (h *Handler) SetPack(c *gin.Context) {
	var req struct {
		UserID        string `json:"userId"`
		PackID        string `json:"packId"`
		AdminPassword string `json:"adminPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("packId", req.PackID),
		validation.Required("adminPassword", req.AdminPassword),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	sum, err := h.service.SetPack(c.Request.Context(), auth.GetUserID(c), req.AdminPassword, req.UserID, req.PackID)
	if err != nil {
		respondAdminError(c, err, "Failed to set pack")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User pack has been updated successfully", "user": sum})
}

// MintInvitationCode handles POST /v1/admin/invitation-codes.
func (h *Handler) MintInvitationCode(c *gin.Context) {
	code, err := h.service.MintInvitationCode(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondAdminError(c, err, "Failed to generate invitation code")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Invitation code generated successfully.", "invitationCode": code})
}

// ListInvitationCodes handles GET /v1/admin/invitation-codes.
func (h *Handler) ListInvitationCodes(c *gin.Context) {
	codes, err := h.service.ListInvitationCodes(c.Request.Context())
	if err != nil {
		respondAdminError(c, err, "Failed to list invitation codes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitationCodes": codes, "count": len(codes)})
}

func respondAdminError(c *gin.Context, err error, fallback string) {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrBadAdminPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "wrong_admin_password", "message": "Incorrect admin password."})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "field": ve.Field, "message": ve.Reason})
	case errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found", "message": "User not found"})
	case errors.Is(err, wallet.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet_not_found", "message": "Wallet not found"})
	case errors.Is(err, wallet.ErrInvalidScore):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_score", "message": "Credit score must be between 0 and 100."})
	case errors.Is(err, wallet.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": "Amount must be greater than zero."})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": fallback})
	}
}
