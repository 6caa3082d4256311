package holdband

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/trackrate/internal/validation"
)

// Handler provides admin HTTP handlers for hold bands.
type Handler struct {
	service *Service
}

// NewHandler creates a new hold band handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the hold band routes on an admin group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/hold-bands", h.List)
	r.GET("/hold-bands/:id", h.Get)
	r.POST("/hold-bands", h.Create)
	r.PUT("/hold-bands/:id", h.Update)
	r.DELETE("/hold-bands/:id", h.Delete)
}

// BandRequest is the create/update payload.
type BandRequest struct {
	MinAmount string `json:"minAmount"`
	MaxAmount string `json:"maxAmount"`
	Active    *bool  `json:"isActive"`
}

func (h *Handler) List(c *gin.Context) {
	bands, err := h.service.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list hold bands",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"bands": bands, "count": len(bands)})
}

func (h *Handler) Get(c *gin.Context) {
	band, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err == ErrBandNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Hold band not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load hold band",
		})
		return
	}
	c.JSON(http.StatusOK, band)
}

func (h *Handler) Create(c *gin.Context) {
	var req BandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if errs := validation.Validate(
		validation.ValidAmount("minAmount", req.MinAmount),
		validation.ValidAmount("maxAmount", req.MaxAmount),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
		})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	band, err := h.service.Create(c.Request.Context(), req.MinAmount, req.MaxAmount, active)
	if err == ErrInvalidRange {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_range",
			"message": "min amount must be positive and not exceed max amount",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create hold band",
		})
		return
	}
	c.JSON(http.StatusCreated, band)
}

func (h *Handler) Update(c *gin.Context) {
	var req BandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	band, err := h.service.Update(c.Request.Context(), c.Param("id"), req.MinAmount, req.MaxAmount, active)
	switch err {
	case nil:
		c.JSON(http.StatusOK, band)
	case ErrBandNotFound:
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Hold band not found",
		})
	case ErrInvalidRange:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_range",
			"message": "min amount must be positive and not exceed max amount",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to update hold band",
		})
	}
}

func (h *Handler) Delete(c *gin.Context) {
	err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err == ErrBandNotFound {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Hold band not found",
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to delete hold band",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
