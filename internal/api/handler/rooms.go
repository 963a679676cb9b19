package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

const requestTimeout = 10 * time.Second

type createRoomRequest struct {
	RoomID string `json:"roomId"`
}

// CreateRoom resolves the requested room, creating it when absent. An empty
// or missing roomId gets a generated one.
func (h *Handler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	room, err := h.Registry.ResolveOrCreate(ctx, chathub.SanitizeRoomID(req.RoomID))
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, room)
}

// GetRoom returns a room without creating it. The id is sanitised the same
// way as on creation so that "my room" finds "my-room".
func (h *Handler) GetRoom(c *gin.Context) {
	raw := strings.TrimSpace(c.Param("roomId"))
	if raw == "" {
		c.JSON(http.StatusNotFound, gin.H{"message": "Room not found"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	room, err := h.Registry.Lookup(ctx, chathub.SanitizeRoomID(raw))
	if err != nil {
		h.storeError(c, err)
		return
	}
	if room == nil {
		c.JSON(http.StatusNotFound, gin.H{"message": "Room not found"})
		return
	}
	c.JSON(http.StatusOK, room)
}

// Cleanup runs the expiry sweep on demand.
func (h *Handler) Cleanup(c *gin.Context) {
	deleted, err := h.Sweeper.Sweep(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Expired rooms cleaned up successfully",
		"deleted": deleted,
	})
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readyz reports whether the room store answers.
func (h *Handler) Readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.Storage.Ping(ctx); err != nil {
		h.log.Warn("readyz.store", "err", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "connections": h.Hub.ConnectionCount()})
}

func (h *Handler) storeError(c *gin.Context, err error) {
	if errors.Is(err, storage.ErrUnavailable) || errors.Is(err, context.DeadlineExceeded) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Room store unavailable"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal server error"})
}
