package reset

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Middleware evaluates the reset condition before each request, so the
// rollover fires even on deployments without the background ticker.
// The pass runs on a detached context: a client disconnect cannot
// abort a claimed rollover.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := s.Tick(context.Background()); err != nil {
			s.logger.Error("daily reset tick failed", "error", err)
		}
		c.Next()
	}
}

// Handler exposes the tracker on the admin surface.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterAdminRoutes registers tracker endpoints on the admin router
// group.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/reset-tracker", h.Get)
	r.PUT("/reset-tracker", h.Update)
}

// Get handles GET /v1/admin/reset-tracker
func (h *Handler) Get(c *gin.Context) {
	t, err := h.svc.Tracker(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracker": t})
}

// Update handles PUT /v1/admin/reset-tracker
func (h *Handler) Update(c *gin.Context) {
	var req struct {
		IntervalHours int `json:"intervalHours"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	t, err := h.svc.SetInterval(c.Request.Context(), req.IntervalHours)
	if err != nil {
		if errors.Is(err, ErrInvalidInterval) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tracker": t})
}
