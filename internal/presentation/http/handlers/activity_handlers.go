package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aimarket/aimarket-go/internal/application/services"
	"github.com/aimarket/aimarket-go/internal/infrastructure/messaging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/observability/logging"
	"github.com/aimarket/aimarket-go/internal/infrastructure/security"
	"github.com/aimarket/aimarket-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ActivityHandlers bridges tabs to the idle tracker: a plain POST records
// activity, and a websocket per tab receives what the user's other tabs
// report so every countdown stays in sync.
type ActivityHandlers struct {
	idle        *services.IdleService
	broadcaster *messaging.ActivityBroadcaster
	jwtSecret   string
	logger      *logging.ChanneledLogger
	upgrader    websocket.Upgrader
}

// NewActivityHandlers creates activity handlers with injected dependencies
func NewActivityHandlers(idle *services.IdleService, broadcaster *messaging.ActivityBroadcaster, jwtSecret string, logger *logging.ChanneledLogger) *ActivityHandlers {
	return &ActivityHandlers{
		idle:        idle,
		broadcaster: broadcaster,
		jwtSecret:   jwtSecret,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// CORS policy is enforced on the REST surface; the socket
				// carries only activity timestamps.
				return true
			},
		},
	}
}

// PostActivity handles POST /api/v1/activity - one tab reporting user input
func (h *ActivityHandlers) PostActivity(c *gin.Context) {
	ident, ok := middleware.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	tabID := c.GetHeader("X-Tab-ID")
	if tabID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-Tab-ID header"})
		return
	}

	accepted := h.idle.RecordActivity(c.Request.Context(), ident.ID, tabID)
	c.JSON(http.StatusOK, gin.H{"accepted": accepted})
}

// GetActivitySocket handles GET /api/v1/activity/ws - the per-tab socket.
// Token and tab id arrive as query params because browsers cannot set
// headers on websocket upgrades.
func (h *ActivityHandlers) GetActivitySocket(c *gin.Context) {
	token := c.Query("token")
	tabID := c.Query("tab")
	if token == "" || tabID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing token or tab"})
		return
	}

	claims, err := security.ValidateJWT(token, h.jwtSecret)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	ident := security.IdentityFromClaims(claims)
	if ident == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token claims"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Broadcast().Error("Websocket upgrade failed", "error", err.Error(), "userId", ident.ID)
		return
	}
	defer conn.Close()

	ch := h.broadcaster.AddTab(ident.ID, tabID)
	defer h.broadcaster.RemoveTab(ch, ident.ID, tabID)

	h.logger.Broadcast().Info("Activity socket connected", "userId", ident.ID, "tabId", tabID)

	done := make(chan struct{})

	// Reader: the tab reports its own activity over the socket.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
			h.idle.RecordActivity(c.Request.Context(), ident.ID, tabID)
		}
	}()

	// Writer: relay what other tabs and the sign-out path broadcast.
	for {
		select {
		case <-done:
			return
		case payload, ok := <-ch:
			if !ok {
				return
			}

			var msg messaging.ActivityMessage
			if err := json.Unmarshal([]byte(payload), &msg); err == nil && msg.LastActivity > 0 {
				// Another tab saw activity; fold it into this user's timer
				// without re-broadcasting.
				h.idle.SyncActivity(ident.ID, time.UnixMilli(msg.LastActivity))
			}

			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				return
			}
		}
	}
}
