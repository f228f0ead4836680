package websocket

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/ports"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler streams one session's progress events over a WebSocket.
type Handler struct {
	eventBus ports.EventBus
	logger   *zap.Logger
}

// NewHandler creates a WebSocket handler over the event bus.
func NewHandler(eventBus ports.EventBus, logger *zap.Logger) *Handler {
	return &Handler{
		eventBus: eventBus,
		logger:   logger,
	}
}

// HandleAnalysisStream upgrades the connection and forwards the session's
// events as JSON text frames. A client that joins late sees only events
// published after it subscribed; a slow client sees a subscriber_overflow
// event where the bus dropped for it.
func (h *Handler) HandleAnalysisStream(c *gin.Context) {
	sessionID := c.Param("id")

	sub, err := h.eventBus.Subscribe(sessionID)
	if err != nil {
		h.logger.Error("failed to subscribe to session events",
			zap.String("session_id", sessionID), zap.Error(err))
		c.Status(http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Info("WebSocket connection established",
		zap.String("session_id", sessionID),
		zap.String("client", c.ClientIP()))

	// Drain client frames so pings and close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}

			data, err := json.Marshal(ev)
			if err != nil {
				h.logger.Error("failed to marshal event", zap.Error(err))
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("client disconnected",
					zap.String("session_id", sessionID), zap.Error(err))
				return
			}
		}
	}
}
