package settings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mbd888/trackrate/internal/validation"
)

// Handler exposes the settings record on the admin surface.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers settings endpoints on the admin router group.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/settings", h.Get)
	r.PUT("/settings", h.Update)
}

// Get handles GET /v1/admin/settings
func (h *Handler) Get(c *gin.Context) {
	cur, err := h.svc.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": cur})
}

// Update handles PUT /v1/admin/settings. Fields omitted from the body keep
// their current values.
func (h *Handler) Update(c *gin.Context) {
	cur, err := h.svc.Get(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}

	var req struct {
		PercentageOfSponsors         *float64 `json:"percentageOfSponsors"`
		BonusWhenRegistering         *string  `json:"bonusWhenRegistering"`
		MinimumBalanceForSubmissions *string  `json:"minimumBalanceForSubmissions"`
		TokenValidityPeriodHours     *int     `json:"tokenValidityPeriodHours"`
		ServiceAvailabilityStartTime *string  `json:"serviceAvailabilityStartTime"`
		ServiceAvailabilityEndTime   *string  `json:"serviceAvailabilityEndTime"`
		Timezone                     *string  `json:"timezone"`
		WhatsappContact              *string  `json:"whatsappContact"`
		TelegramContact              *string  `json:"telegramContact"`
		TelegramUsername             *string  `json:"telegramUsername"`
		OnlineChatURL                *string  `json:"onlineChatUrl"`
		ERCAddress                   *string  `json:"ercAddress"`
		TRCAddress                   *string  `json:"trcAddress"`
		VideoURL                     *string  `json:"video"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid body"})
		return
	}

	if req.PercentageOfSponsors != nil {
		cur.PercentageOfSponsors = *req.PercentageOfSponsors
	}
	if req.BonusWhenRegistering != nil {
		cur.BonusWhenRegistering = *req.BonusWhenRegistering
	}
	if req.MinimumBalanceForSubmissions != nil {
		cur.MinimumBalanceForSubmissions = *req.MinimumBalanceForSubmissions
	}
	if req.TokenValidityPeriodHours != nil {
		cur.TokenValidityPeriodHours = *req.TokenValidityPeriodHours
	}
	if req.ServiceAvailabilityStartTime != nil {
		cur.ServiceAvailabilityStartTime = *req.ServiceAvailabilityStartTime
	}
	if req.ServiceAvailabilityEndTime != nil {
		cur.ServiceAvailabilityEndTime = *req.ServiceAvailabilityEndTime
	}
	if req.Timezone != nil {
		cur.Timezone = validation.SanitizeString(*req.Timezone, 64)
	}
	if req.WhatsappContact != nil {
		cur.WhatsappContact = validation.SanitizeString(*req.WhatsappContact, 200)
	}
	if req.TelegramContact != nil {
		cur.TelegramContact = validation.SanitizeString(*req.TelegramContact, 200)
	}
	if req.TelegramUsername != nil {
		cur.TelegramUsername = validation.SanitizeString(*req.TelegramUsername, 200)
	}
	if req.OnlineChatURL != nil {
		cur.OnlineChatURL = validation.SanitizeString(*req.OnlineChatURL, 500)
	}
	if req.ERCAddress != nil {
		cur.ERCAddress = validation.SanitizeString(*req.ERCAddress, 128)
	}
	if req.TRCAddress != nil {
		cur.TRCAddress = validation.SanitizeString(*req.TRCAddress, 128)
	}
	if req.VideoURL != nil {
		cur.VideoURL = validation.SanitizeString(*req.VideoURL, 500)
	}

	updated, err := h.svc.Update(c.Request.Context(), cur)
	if err != nil {
		if errors.Is(err, ErrInvalidSettings) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_settings", "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": updated})
}
