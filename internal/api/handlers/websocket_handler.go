package handlers

import (
	"log/slog"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/mailpilot-backend/internal/api/middleware"
	"github.com/welldanyogia/mailpilot-backend/internal/websocket"
)

// WebSocketHandler upgrades dashboard connections and attaches them to the hub
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocketHandler accepting allowedOrigins
func NewWebSocketHandler(hub *websocket.Hub, allowedOrigins string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		upgrader: websocket.NewSecureUpgrader(allowedOrigins, logger),
		logger:   logger,
	}
}

// Connect handles GET /ws. The connection receives the owner's draft,
// message and batch events until it closes.
func (h *WebSocketHandler) Connect(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Debug("websocket upgrade failed", slog.Any("error", err))
		return nil
	}

	client := websocket.NewClient(h.hub, conn, middleware.OwnerID(c), h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()

	return nil
}
