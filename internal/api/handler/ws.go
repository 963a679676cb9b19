package handler

import (
	"net/http"
	"slices"

	"roomchat/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func (h *Handler) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
}

// checkOrigin accepts any origin listed in CORS_ALLOW, or all of them for "*".
func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(h.cfg.CORSAllow, "*") || slices.Contains(h.cfg.CORSAllow, origin)
}

// ServeWebSocket upgrades the request and hands the connection to the hub
// under a fresh connection id.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	conn, err := h.upgrader().Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Debug("ws.upgrade", "err", err)
		return
	}

	id := uuid.NewString()
	client := chathub.NewWebSocketClient(id, conn, h.Hub, h.log, h.cfg)
	h.Hub.Register(client)
	client.Run()
}
