package packs

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP handlers for the packs API.
type Handler struct {
	service *Service
}

// NewHandler creates a new pack handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the user-facing pack routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/packs", h.ListActive)
	r.GET("/packs/:id", h.Get)
}

// RegisterAdminRoutes sets up the admin CRUD routes.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/packs", h.ListAll)
	r.GET("/packs/:id", h.Get)
	r.POST("/packs", h.Create)
	r.PUT("/packs/:id", h.Update)
	r.DELETE("/packs/:id", h.Delete)
}

// PackRequest is the create/update payload.
type PackRequest struct {
	Name                     string  `json:"name"`
	USDValue                 string  `json:"usdValue"`
	DailyMissions            int     `json:"dailyMissions"`
	NumberOfSets             int     `json:"numberOfSets"`
	ProfitPercentage         float64 `json:"profitPercentage"`
	SpecialProductPercentage float64 `json:"specialProductPercentage"`
	MinimumBalance           string  `json:"minimumBalanceForSubmissions"`
	DailyWithdrawals         int     `json:"dailyWithdrawals"`
	PaymentBonusThreshold    string  `json:"paymentLimitToTriggerBonus"`
	PaymentBonus             string  `json:"paymentBonus"`
	ShortDescription         string  `json:"shortDescription"`
	Description              string  `json:"description"`
	Icon                     string  `json:"icon"`
	Active                   *bool   `json:"isActive"`
}

func (r *PackRequest) toPack() *Pack {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return &Pack{
		Name:                     r.Name,
		USDValue:                 r.USDValue,
		DailyMissions:            r.DailyMissions,
		NumberOfSets:             r.NumberOfSets,
		ProfitPercentage:         r.ProfitPercentage,
		SpecialProductPercentage: r.SpecialProductPercentage,
		MinimumBalance:           r.MinimumBalance,
		DailyWithdrawals:         r.DailyWithdrawals,
		PaymentBonusThreshold:    r.PaymentBonusThreshold,
		PaymentBonus:             r.PaymentBonus,
		ShortDescription:         r.ShortDescription,
		Description:              r.Description,
		Icon:                     r.Icon,
		Active:                   active,
	}
}

// ListActive handles GET /v1/packs (user surface: active packs only).
func (h *Handler) ListActive(c *gin.Context) {
	h.list(c, true)
}

// ListAll handles GET /v1/admin/packs.
func (h *Handler) ListAll(c *gin.Context) {
	h.list(c, false)
}

func (h *Handler) list(c *gin.Context, activeOnly bool) {
	packs, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list packs",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"packs": packs, "count": len(packs)})
}

func (h *Handler) Get(c *gin.Context) {
	pack, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err == ErrPackNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Pack not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load pack",
		})
		return
	}
	c.JSON(http.StatusOK, pack)
}

func (h *Handler) Create(c *gin.Context) {
	var req PackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	pack := req.toPack()
	pack.CreatedBy = c.GetString("authUserID")
	created, err := h.service.Create(c.Request.Context(), pack)
	if err == ErrInvalidPack {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_pack",
			"message": "Pack definition is invalid",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create pack",
		})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) Update(c *gin.Context) {
	var req PackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	pack := req.toPack()
	pack.ID = c.Param("id")
	updated, err := h.service.Update(c.Request.Context(), pack)
	switch err {
	case nil:
		c.JSON(http.StatusOK, updated)
	case ErrPackNotFound:
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Pack not found",
		})
	case ErrInvalidPack:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_pack",
			"message": "Pack definition is invalid",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to update pack",
		})
	}
}

func (h *Handler) Delete(c *gin.Context) {
	err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err == ErrPackNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Pack not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to delete pack",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
