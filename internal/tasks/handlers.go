package tasks

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/trackrate/internal/auth"
	"github.com/mbd888/trackrate/internal/holdband"
	"github.com/mbd888/trackrate/internal/pagination"
	"github.com/mbd888/trackrate/internal/users"
	"github.com/mbd888/trackrate/internal/validation"
)

// Handler provides HTTP handlers for album review tasks.
type Handler struct {
	service *Service
}

// NewHandler creates a new task handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the worker-facing task routes on an
// authenticated group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tasks/current", h.Current)
	r.POST("/tasks/play", h.Play)
	r.POST("/tasks/play-pending", h.PlayPending)
	r.GET("/tasks/history", h.History)
}

// RegisterAdminRoutes sets up the special-task management routes on an
// admin group.
func (h *Handler) RegisterAdminRoutes(r *gin.RouterGroup) {
	r.GET("/special-tasks", h.ListSpecials)
	r.POST("/special-tasks", h.InjectSpecial)
	r.PUT("/special-tasks/:id", h.UpdateSpecial)
	r.DELETE("/special-tasks/:id", h.DeleteSpecial)
}

// PlayRequest is the submit-review payload.
type PlayRequest struct {
	RatingScore int    `json:"ratingScore"`
	Comment     string `json:"comment"`
}

// SpecialTaskRequest is the admin inject/update payload.
type SpecialTaskRequest struct {
	UserID           string `json:"userId"`
	HoldBandID       string `json:"holdBandId"`
	NumberOfProducts int    `json:"numberOfProducts"`
	RankAppearance   int    `json:"rankAppearance"`
}

func (h *Handler) Current(c *gin.Context) {
	view, err := h.service.CurrentTask(c.Request.Context(), auth.GetUserID(c))
	if err != nil {
		respondTaskError(c, err, "Failed to load current task")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Play(c *gin.Context) {
	req, ok := bindPlayRequest(c)
	if !ok {
		return
	}
	result, err := h.service.Play(c.Request.Context(), auth.GetUserID(c), req.RatingScore, req.Comment)
	if err != nil {
		respondTaskError(c, err, "Failed to submit review")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) PlayPending(c *gin.Context) {
	req, ok := bindPlayRequest(c)
	if !ok {
		return
	}
	result, err := h.service.PlayPending(c.Request.Context(), auth.GetUserID(c), req.RatingScore, req.Comment)
	if err != nil {
		respondTaskError(c, err, "Failed to submit review")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) History(c *gin.Context) {
	limit := pagination.ParseLimit(c.Query("limit"), 20, 100)
	var before time.Time
	var beforeID string
	if raw := c.Query("cursor"); raw != "" {
		cur, err := pagination.Decode(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_cursor",
				"message": "Invalid pagination cursor",
			})
			return
		}
		before = cur.CreatedAt
		beforeID = cur.ID
	}

	entries, err := h.service.History(c.Request.Context(), auth.GetUserID(c), before, beforeID, limit)
	if err != nil {
		respondTaskError(c, err, "Failed to load review history")
		return
	}

	page, next, hasMore := pagination.ComputePage(entries, limit, func(e *HistoryEntry) (time.Time, string) {
		return e.CreatedAt, e.ID
	})
	c.JSON(http.StatusOK, gin.H{
		"tasks":      page,
		"nextCursor": next,
		"hasMore":    hasMore,
	})
}

func bindPlayRequest(c *gin.Context) (*PlayRequest, bool) {
	var req PlayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return nil, false
	}
	if errs := validation.Validate(
		validation.ValidRating("ratingScore", req.RatingScore),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
		})
		return nil, false
	}
	req.Comment = validation.SanitizeString(req.Comment, 1000)
	return &req, true
}

func (h *Handler) ListSpecials(c *gin.Context) {
	list, err := h.service.ListSpecials(c.Request.Context())
	if err != nil {
		respondTaskError(c, err, "Failed to list special tasks")
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": list, "count": len(list)})
}

func (h *Handler) InjectSpecial(c *gin.Context) {
	req, ok := bindSpecialRequest(c)
	if !ok {
		return
	}
	task, err := h.service.InjectSpecial(c.Request.Context(), InjectParams{
		UserID:           req.UserID,
		HoldBandID:       req.HoldBandID,
		NumberOfProducts: req.NumberOfProducts,
		RankAppearance:   req.RankAppearance,
	})
	if err != nil {
		respondTaskError(c, err, "Failed to create special task")
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (h *Handler) UpdateSpecial(c *gin.Context) {
	req, ok := bindSpecialRequest(c)
	if !ok {
		return
	}
	task, err := h.service.UpdateSpecial(c.Request.Context(), c.Param("id"), InjectParams{
		UserID:           req.UserID,
		HoldBandID:       req.HoldBandID,
		NumberOfProducts: req.NumberOfProducts,
		RankAppearance:   req.RankAppearance,
	})
	if err != nil {
		respondTaskError(c, err, "Failed to update special task")
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *Handler) DeleteSpecial(c *gin.Context) {
	if err := h.service.DeleteSpecial(c.Request.Context(), c.Param("id")); err != nil {
		respondTaskError(c, err, "Failed to delete special task")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func bindSpecialRequest(c *gin.Context) (*SpecialTaskRequest, bool) {
	var req SpecialTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return nil, false
	}
	if errs := validation.Validate(
		validation.Required("userId", req.UserID),
		validation.Required("holdBandId", req.HoldBandID),
	); len(errs) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_failed",
			"message": errs.Error(),
		})
		return nil, false
	}
	return &req, true
}

func respondTaskError(c *gin.Context, err error, fallback string) {
	var elig *EligibilityError
	if errors.As(err, &elig) {
		c.JSON(http.StatusForbidden, gin.H{
			"error":   elig.Code,
			"message": elig.Reason,
		})
		return
	}
	var hold *HoldRangeError
	if errors.As(err, &hold) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "no_matching_albums",
			"message": hold.Error(),
		})
		return
	}

	switch {
	case errors.Is(err, ErrInvalidRating):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_rating",
			"message": "rating score must be between 1 and 5",
		})
	case errors.Is(err, ErrInvalidProductCount):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_product_count",
			"message": "number of albums must be between 1 and 3",
		})
	case errors.Is(err, ErrInvalidRank):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_rank",
			"message": "rank appearance must not be negative",
		})
	case errors.Is(err, ErrTaskNotEditable):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "task_not_editable",
			"message": "Special task has already been presented or played",
		})
	case errors.Is(err, ErrSpecialPending):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "special_pending",
			"message": "User already has a reserved special task outstanding",
		})
	case errors.Is(err, ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Task not found",
		})
	case errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "user_not_found",
			"message": "User not found",
		})
	case errors.Is(err, holdband.ErrBandNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "band_not_found",
			"message": "Hold band not found",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": fallback,
		})
	}
}
