package withdrawals

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

// Handler exposes the withdrawal endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the worker-facing routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/withdrawals", h.Submit)
	r.GET("/withdrawals", h.ListMine)
}

// RegisterAdminRoutes sets up the review routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/withdrawals", h.ListAll)
	r.PUT("/withdrawals/:id/status", h.Review)
}

// SubmitRequest is the worker cash-out payload. The transactional
// password authorizes moving money off the account.
type SubmitRequest struct {
	Amount                string `json:"amount"`
	Address               string `json:"address"`
	TransactionalPassword string `json:"transactionalPassword"`
}

// Submit handles POST /v1/withdrawals.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("amount", req.Amount),
		validation.ValidAmount("amount", req.Amount),
		validation.Required("address", req.Address),
		validation.ValidAddress("address", req.Address),
		validation.Required("transactionalPassword", req.TransactionalPassword),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	amount, _ := money.Parse(req.Amount)

	wd, err := h.service.Request(c.Request.Context(), auth.GetUserID(c), req.TransactionalPassword, amount, req.Address)
	if err != nil {
		respondWithdrawalError(c, err, "Failed to submit withdrawal")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Withdrawal request submitted successfully.", "withdrawal": wd})
}

// ListMine handles GET /v1/withdrawals.
func (h *Handler) ListMine(c *gin.Context) {
	limit := pagination.ParseLimit(c.Query("limit"), 20, 100)
	list, err := h.service.Mine(c.Request.Context(), auth.GetUserID(c), limit)
	if err != nil {
		respondWithdrawalError(c, err, "Failed to list withdrawals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": list, "count": len(list)})
}

// ListAll handles GET /v1/admin/withdrawals.
func (h *Handler) ListAll(c *gin.Context) {
	limit := pagination.ParseLimit(c.Query("limit"), 20, 100)
	f := Filter{
		Status: c.Query("status"),
		Limit:  limit + 1,
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

	list, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		respondWithdrawalError(c, err, "Failed to list withdrawals")
		return
	}

	page, next, hasMore := pagination.ComputePage(list, limit, func(w *Withdrawal) (time.Time, string) {
		return w.CreatedAt, w.ID
	})
	c.JSON(http.StatusOK, gin.H{"withdrawals": page, "nextCursor": next, "hasMore": hasMore})
}

// ReviewRequest is the admin status-transition payload.
type ReviewRequest struct {
	Status        string `json:"status"`
	AdminPassword string `json:"adminPassword"`
}

// Review handles PUT /v1/admin/withdrawals/:id/status.
func (h *Handler) Review(c *gin.Context) {
	var req ReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("status", req.Status),
		validation.Required("adminPassword", req.AdminPassword),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}

	wd, err := h.service.Review(c.Request.Context(), auth.GetUserID(c), req.AdminPassword, c.Param("id"), req.Status)
	if err != nil {
		respondWithdrawalError(c, err, "Failed to update withdrawal status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Withdrawal status updated successfully.", "withdrawal": wd})
}

func respondWithdrawalError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, users.ErrWrongTransactionalPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "wrong_password", "message": "Transactional password is incorrect."})
	case errors.Is(err, ErrBadAdminPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "wrong_admin_password", "message": "Incorrect admin password."})
	case errors.Is(err, ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": "Invalid status. Allowed: Processed, Rejected"})
	case errors.Is(err, ErrAlreadyReviewed):
		c.JSON(http.StatusConflict, gin.H{"error": "already_reviewed", "message": "The withdrawal status has been processed before."})
	case errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": "Amount must be greater than zero."})
	case errors.Is(err, ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_address", "message": "Address must be a valid wallet address."})
	case errors.Is(err, ErrInsufficientBalance):
		c.JSON(http.StatusBadRequest, gin.H{"error": "insufficient_balance", "message": "Your balance cannot cover this withdrawal."})
	case errors.Is(err, ErrDailyLimit):
		c.JSON(http.StatusBadRequest, gin.H{"error": "withdrawal_limit", "message": "Daily withdrawal limit reached for your pack."})
	case errors.Is(err, ErrWithdrawalNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "withdrawal_not_found", "message": "Withdrawal not found."})
	case errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found", "message": "User not found"})
	case errors.Is(err, wallet.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "wallet_not_found", "message": "Wallet not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": fallback})
	}
}
