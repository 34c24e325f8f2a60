package handlers

import (
	"net/http"

	"github.com/aimarket/aimarket-go/internal/application/services"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// ProfileHandlers contains the profile editing HTTP handlers
type ProfileHandlers struct {
	profiles *services.ProfileService
	logger   *logging.ChanneledLogger
}

// NewProfileHandlers creates profile handlers with injected dependencies
func NewProfileHandlers(profiles *services.ProfileService, logger *logging.ChanneledLogger) *ProfileHandlers {
	return &ProfileHandlers{
		profiles: profiles,
		logger:   logger,
	}
}

// PutNickname handles PUT /api/v1/profile/nickname
func (h *ProfileHandlers) PutNickname(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req struct {
		Nickname string `json:"nickname" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.profiles.UpdateNickname(c.Request.Context(), ident.ID, req.Nickname); err != nil {
		h.logger.Onboarding().Error("Nickname update failed", "error", err.Error(), "userId", ident.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update nickname"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PostAvatar handles POST /api/v1/profile/avatar - base64 avatar upload
func (h *ProfileHandlers) PostAvatar(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req struct {
		Data string `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	avatarURL, err := h.profiles.UploadAvatar(c.Request.Context(), ident.ID, req.Data)
	if err != nil {
		h.logger.Onboarding().Error("Avatar upload failed", "error", err.Error(), "userId", ident.ID)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Could not process avatar"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"avatarUrl": avatarURL})
}

// PutInterests handles PUT /api/v1/profile/interests - replace the whole set
func (h *ProfileHandlers) PutInterests(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req struct {
		InterestIDs []int64 `json:"interestIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	if err := h.profiles.UpdateInterests(c.Request.Context(), ident.ID, req.InterestIDs); err != nil {
		h.logger.Onboarding().Error("Interest update failed", "error", err.Error(), "userId", ident.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not update interests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
