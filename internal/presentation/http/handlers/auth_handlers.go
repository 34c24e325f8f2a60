// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/aimarket/aimarket-go/internal/application/state"
	"github.com/aimarket/aimarket-go/internal/domain/identity"
	identityinfra "github.com/aimarket/aimarket-go/internal/infrastructure/identity"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/gin-gonic/gin"
)

// AuthHandlers contains all authentication-related HTTP handlers. Sign-in and
// sign-out reconcile the shared session state through the provider's event
// stream; the handlers only ever read it.
type AuthHandlers struct {
	provider     *identityinfra.LocalProvider
	sessionState *state.Container
	logger       *logging.ChanneledLogger
}

// NewAuthHandlers creates auth handlers with injected dependencies
func NewAuthHandlers(provider *identityinfra.LocalProvider, sessionState *state.Container, logger *logging.ChanneledLogger) *AuthHandlers {
	return &AuthHandlers{
		provider:     provider,
		sessionState: sessionState,
		logger:       logger,
	}
}

// PostRegister handles POST /api/v1/auth/register - local account creation
func (h *AuthHandlers) PostRegister(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
		Name     string `json:"name"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	ident, err := h.provider.RegisterAccount(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		h.logger.Auth().Error("Registration failed", "error", err.Error())
		c.JSON(http.StatusConflict, gin.H{"error": "Could not create account"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": ident.ID, "email": ident.Email})
}

// PostLogin handles POST /api/v1/auth/login - credential sign-in
func (h *AuthHandlers) PostLogin(c *gin.Context) {
	start := time.Now()

	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	session, err := h.provider.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.logger.Auth().Error("Sign-in failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sign-in failed"})
		return
	}

	h.logger.Auth().Info("Login successful", "userId", session.User.ID, "duration", time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
		"user":      session.User,
	})
}

// PostLogout handles POST /api/v1/auth/logout - explicit sign-out
func (h *AuthHandlers) PostLogout(c *gin.Context) {
	if err := h.provider.SignOut(c.Request.Context()); err != nil {
		h.logger.Auth().Error("Sign-out failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Sign-out failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// PostRefresh handles POST /api/v1/auth/refresh - token renewal
func (h *AuthHandlers) PostRefresh(c *gin.Context) {
	session, err := h.provider.Refresh(c.Request.Context())
	if err != nil {
		h.logger.Auth().Error("Token refresh failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Refresh failed"})
		return
	}
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No active session"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     session.Token,
		"expiresAt": session.ExpiresAt,
	})
}

// GetSession handles GET /api/v1/auth/session - the reconciled session state
func (h *AuthHandlers) GetSession(c *gin.Context) {
	snapshot := h.sessionState.Get()
	c.JSON(http.StatusOK, snapshot)
}
