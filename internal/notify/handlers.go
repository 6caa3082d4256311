package notify

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/trackrate/internal/pagination"
)

// Handler exposes notification reads/marks on the user surface and
// notification plus audit-log listing on the admin surface.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the worker-facing notification endpoints.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/notifications", h.ListMine)
	r.POST("/notifications/read-all", h.MarkAllMineRead)
	r.POST("/notifications/:id/read", h.MarkMineRead)
}

// RegisterAdminRoutes registers the admin notification and audit endpoints.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/notifications", h.ListAdmin)
	r.POST("/notifications/read-all", h.MarkAllAdminRead)
	r.GET("/logs", h.ListLogs)
}

// ListMine handles GET /v1/notifications
func (h *Handler) ListMine(c *gin.Context) {
	userID := c.GetString("authUserID")
	limit := pagination.ParseLimit(c.Query("limit"), 50, 200)

	list, err := h.svc.ListUser(c.Request.Context(), userID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	if list == nil {
		list = []*Notification{}
	}
	unread, err := h.svc.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "count": len(list), "unread": unread})
}

// MarkMineRead handles POST /v1/notifications/:id/read
func (h *Handler) MarkMineRead(c *gin.Context) {
	userID := c.GetString("authUserID")

	n, err := h.svc.MarkRead(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notification": n})
}

// MarkAllMineRead handles POST /v1/notifications/read-all
func (h *Handler) MarkAllMineRead(c *gin.Context) {
	userID := c.GetString("authUserID")

	count, err := h.svc.MarkAllUserRead(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": count})
}

// ListAdmin handles GET /v1/admin/notifications
func (h *Handler) ListAdmin(c *gin.Context) {
	limit := pagination.ParseLimit(c.Query("limit"), 50, 200)

	list, err := h.svc.ListAdmin(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	if list == nil {
		list = []*Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "count": len(list)})
}

// MarkAllAdminRead handles POST /v1/admin/notifications/read-all
func (h *Handler) MarkAllAdminRead(c *gin.Context) {
	count, err := h.svc.MarkAllAdminRead(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": count})
}

// ListLogs handles GET /v1/admin/logs with cursor pagination.
func (h *Handler) ListLogs(c *gin.Context) {
	limit := pagination.ParseLimit(c.Query("limit"), 50, 200)

	cursor, err := pagination.Decode(c.Query("cursor"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_cursor", "message": "invalid cursor"})
		return
	}
	var (
		before   time.Time
		beforeID string
	)
	if cursor != nil {
		before = cursor.CreatedAt
		beforeID = cursor.ID
	}

	logs, err := h.svc.ListLogs(c.Request.Context(), before, beforeID, limit+1)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	logs, next, hasMore := pagination.ComputePage(logs, limit, func(l *AdminLog) (time.Time, string) {
		return l.CreatedAt, l.ID
	})
	if logs == nil {
		logs = []*AdminLog{}
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":       logs,
		"count":      len(logs),
		"nextCursor": next,
		"hasMore":    hasMore,
	})
}
