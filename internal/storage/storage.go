// Package storage persists chat rooms. Every backend exposes the same small
// set of atomic document operations so that concurrent joins and sends on one
// room never lose updates.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roomchat/backend/internal/models"
)

var (
	// ErrUnavailable wraps every failure of the underlying database.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrRoomNotFound is returned by mutations against a room that does not exist.
	ErrRoomNotFound = errors.New("chat room not found")
)

type Storage interface {
	// GetRoom returns the room or (nil, nil) when it does not exist.
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	// CreateRoomIfNotExists inserts room unless a room with the same id is
	// already stored. It returns the stored room and whether this call created it.
	CreateRoomIfNotExists(ctx context.Context, room *models.Room) (*models.Room, bool, error)
	// AddParticipant adds participantID to the room's participant set.
	AddParticipant(ctx context.Context, roomID, participantID string) error
	// AppendMessage pushes msg onto the room's history and adds its sender to
	// the participant set in one atomic step.
	AppendMessage(ctx context.Context, roomID string, msg models.Message) error
	// DeleteExpiredRooms removes every room with ExpiresAt before now.
	DeleteExpiredRooms(ctx context.Context, now time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
