package deposits

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
)

// Handler exposes the deposit endpoints.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the worker-facing routes on an authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/deposits", h.Submit)
	r.GET("/deposits", h.ListMine)
}

// RegisterAdminRoutes sets up the review routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/deposits", h.ListAll)
	r.PUT("/deposits/:id/status", h.Review)
}

// SubmitRequest is the worker top-up payload. Method defaults to
// transfer; card opens a hosted checkout.
type SubmitRequest struct {
	Amount    string `json:"amount"`
	Method    string `json:"method"`
	Reference string `json:"reference"`
}

// Submit handles POST /v1/deposits.
func (h *Handler) Submit(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Invalid request body"})
		return
	}
	if errs := validation.Validate(
		validation.Required("amount", req.Amount),
		validation.ValidAmount("amount", req.Amount),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": errs.Error()})
		return
	}
	amount, _ := money.Parse(req.Amount)

	d, sess, err := h.service.Submit(c.Request.Context(), auth.GetUserID(c), amount, req.Method, req.Reference)
	if err != nil {
		respondDepositError(c, err, "Failed to submit deposit")
		return
	}
	body := gin.H{"message": "Deposit request submitted successfully.", "deposit": d}
	if sess != nil {
		body["checkout"] = sess
	}
	c.JSON(http.StatusCreated, body)
}

// ListMine handles GET /v1/deposits.
func (h *Handler) ListMine(c *gin.Context) {
	limit := pagination.ParseLimit(c.Query("limit"), 20, 100)
	list, err := h.service.Mine(c.Request.Context(), auth.GetUserID(c), limit)
	if err != nil {
		respondDepositError(c, err, "Failed to list deposits")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposits": list, "count": len(list)})
}

// ListAll handles GET /v1/admin/deposits.
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
		respondDepositError(c, err, "Failed to list deposits")
		return
	}

	page, next, hasMore := pagination.ComputePage(list, limit, func(d *Deposit) (time.Time, string) {
		return d.CreatedAt, d.ID
	})
	c.JSON(http.StatusOK, gin.H{"deposits": page, "nextCursor": next, "hasMore": hasMore})
}

// ReviewRequest is the admin status-transition payload.
type ReviewRequest struct {
	Status        string `json:"status"`
	AdminPassword string `json:"adminPassword"`
}

// Review handles PUT /v1/admin/deposits/:id/status.
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

	d, err := h.service.Review(c.Request.Context(), auth.GetUserID(c), req.AdminPassword, c.Param("id"), req.Status)
	if err != nil {
		respondDepositError(c, err, "Failed to update deposit status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Deposit status updated successfully.", "deposit": d})
}

func respondDepositError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, ErrBadAdminPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "wrong_admin_password", "message": "Incorrect admin password."})
	case errors.Is(err, ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_status", "message": "Invalid status. Allowed: Pending, Confirmed, Rejected"})
	case errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount", "message": "Amount must be greater than zero."})
	case errors.Is(err, ErrCardUnavailable):
		c.JSON(http.StatusBadRequest, gin.H{"error": "card_unavailable", "message": "Card payments are not available."})
	case errors.Is(err, ErrDepositNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "deposit_not_found", "message": "Deposit not found."})
	case errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user_not_found", "message": "User not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": fallback})
	}
}
