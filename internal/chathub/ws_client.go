package chathub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"roomchat/backend/internal/config"
	"roomchat/backend/internal/models"

	"github.com/gorilla/websocket"
)

// WebSocketClient implements Client over a gorilla websocket connection.
type WebSocketClient struct {
	ConnectionID string
	Conn         *websocket.Conn
	Hub          *ManagerService

	log            *slog.Logger
	maxMessageSize int64
	send           chan models.ServerEvent
	done           chan struct{}
	closeOnce      sync.Once
}

func NewWebSocketClient(id string, conn *websocket.Conn, hub *ManagerService, log *slog.Logger, cfg *config.Config) *WebSocketClient {
	buffer := cfg.SendBuffer
	if buffer <= 0 {
		buffer = config.DefaultSendBuffer
	}
	limit := cfg.MaxMessageSize
	if limit <= 0 {
		limit = config.DefaultMaxMessageSize
	}
	return &WebSocketClient{
		ConnectionID:   id,
		Conn:           conn,
		Hub:            hub,
		log:            log.With("conn", id),
		maxMessageSize: limit,
		send:           make(chan models.ServerEvent, buffer),
		done:           make(chan struct{}),
	}
}

func (c *WebSocketClient) GetConnectionID() string { return c.ConnectionID }

func (c *WebSocketClient) Deliver(ev models.ServerEvent) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

// Run starts the pumps. The read pump unregisters the client when the socket dies.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close stops the write pump, which sends a close frame and closes the socket.
func (c *WebSocketClient) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *WebSocketClient) readPump() {
	defer func() {
		c.Hub.Disconnect(c.ConnectionID)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(config.PongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn("ws.read", "err", err)
			}
			return
		}

		var ev models.ClientEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			c.log.Debug("ws.decode", "err", err)
			c.Deliver(models.ErrorEvent("", "malformed event"))
			continue
		}
		c.Hub.HandleEvent(c.ConnectionID, ev)
	}
}

// writePump writes one JSON frame per event, in queue order.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case ev := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteJSON(ev); err != nil {
				c.log.Debug("ws.write", "err", err)
				c.Close()
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			if !c.flush() {
				return
			}
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			c.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued without waiting for more.
// It reports false when a write fails.
func (c *WebSocketClient) flush() bool {
	for {
		select {
		case ev := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(config.WriteWait))
			if err := c.Conn.WriteJSON(ev); err != nil {
				c.log.Debug("ws.flush", "err", err)
				return false
			}
		default:
			return true
		}
	}
}
