package handlers

import (
	"errors"
	"net/http"

	"github.com/aimarket/aimarket-go/internal/application/services"
	"github.com/aimarket/aimarket-go/internal/domain/onboarding"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// OnboardingHandlers contains the wizard HTTP handlers
type OnboardingHandlers struct {
	onboarding *services.OnboardingService
	logger     *logging.ChanneledLogger
}

// NewOnboardingHandlers creates onboarding handlers with injected dependencies
func NewOnboardingHandlers(onboarding *services.OnboardingService, logger *logging.ChanneledLogger) *OnboardingHandlers {
	return &OnboardingHandlers{
		onboarding: onboarding,
		logger:     logger,
	}
}

// PostStart handles POST /api/v1/onboarding/start
func (h *OnboardingHandlers) PostStart(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	status, err := h.onboarding.Start(c.Request.Context(), ident.ID)
	if err != nil {
		h.logger.Onboarding().Error("Wizard start failed", "error", err.Error(), "userId", ident.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not start onboarding"})
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetStatus handles GET /api/v1/onboarding/status
func (h *OnboardingHandlers) GetStatus(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	status, err := h.onboarding.Status(c.Request.Context(), ident.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// GetOptions handles GET /api/v1/onboarding/options - the current step's choices
func (h *OnboardingHandlers) GetOptions(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	options, err := h.onboarding.OptionsForStep(c.Request.Context(), ident.ID)
	if err != nil {
		if errors.Is(err, onboarding.ErrRemoteFetch) {
			h.logger.Onboarding().Error("Option fetch failed", "error", err.Error(), "userId", ident.ID)
			c.JSON(http.StatusBadGateway, gin.H{"error": "Could not load options"})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"options": options})
}

// PostSelect handles POST /api/v1/onboarding/select
func (h *OnboardingHandlers) PostSelect(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req struct {
		OptionID int64 `json:"optionId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	status, err := h.onboarding.Select(c.Request.Context(), ident.ID, req.OptionID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// PostAdvance handles POST /api/v1/onboarding/advance
func (h *OnboardingHandlers) PostAdvance(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	status, err := h.onboarding.Advance(ident.ID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// PostBack handles POST /api/v1/onboarding/back
func (h *OnboardingHandlers) PostBack(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	status, err := h.onboarding.Back(ident.ID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// PostSubmit handles POST /api/v1/onboarding/submit
func (h *OnboardingHandlers) PostSubmit(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	status, err := h.onboarding.Submit(c.Request.Context(), ident.ID)
	if err != nil {
		h.logger.Onboarding().Error("Wizard submit failed", "error", err.Error(), "userId", ident.ID)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// PostRestart handles POST /api/v1/onboarding/restart - retake from settings
func (h *OnboardingHandlers) PostRestart(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	if err := h.onboarding.Restart(c.Request.Context(), ident.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not restart onboarding"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
