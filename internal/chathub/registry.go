package chathub

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"roomchat/backend/internal/config"
	"roomchat/backend/internal/metrics"
	"roomchat/backend/internal/models"
	"roomchat/backend/internal/storage"

	"golang.org/x/sync/singleflight"
)

// RegistryService resolves room ids to rooms, creating a room on first access.
type RegistryService struct {
	Storage storage.Storage

	log           *slog.Logger
	now           func() time.Time
	retentionDays func() int
	sfGroup       singleflight.Group // coalesces concurrent first access per room
}

// resolveTimeout bounds one shared resolve flight.
const resolveTimeout = 10 * time.Second

type RegistryOption func(*RegistryService)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *RegistryService) { r.now = now }
}

// WithRetention overrides the random retention draw. Values outside
// [MinRetentionDays, MaxRetentionDays] are clamped.
func WithRetention(days func() int) RegistryOption {
	return func(r *RegistryService) { r.retentionDays = days }
}

func NewRegistryService(s storage.Storage, log *slog.Logger, opts ...RegistryOption) *RegistryService {
	r := &RegistryService{
		Storage:       s,
		log:           log,
		now:           time.Now,
		retentionDays: randomRetentionDays,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func randomRetentionDays() int {
	return config.MinRetentionDays + rand.IntN(config.MaxRetentionDays-config.MinRetentionDays+1)
}

// retention returns the lifetime given to a room created now.
func (r *RegistryService) retention() time.Duration {
	days := min(max(r.retentionDays(), config.MinRetentionDays), config.MaxRetentionDays)
	return time.Duration(days) * 24 * time.Hour
}

// Lookup returns the room or (nil, nil) when it does not exist.
func (r *RegistryService) Lookup(ctx context.Context, roomID string) (*models.Room, error) {
	return r.Storage.GetRoom(ctx, roomID)
}

// ResolveOrCreate returns the stored room, creating it when absent. Creation
// goes through the store's insert-if-absent so concurrent creators, in this
// process or another, all observe the first creator's expiry.
//
// Concurrent callers share one flight. The flight runs detached from any
// single caller's cancellation; each caller stops waiting when its own ctx ends.
func (r *RegistryService) ResolveOrCreate(ctx context.Context, roomID string) (*models.Room, error) {
	ch := r.sfGroup.DoChan(roomID, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), resolveTimeout)
		defer cancel()

		room, err := r.Storage.GetRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if room != nil {
			return room, nil
		}

		room, created, err := r.Storage.CreateRoomIfNotExists(ctx, models.NewRoom(roomID, r.now(), r.retention()))
		if err != nil {
			return nil, err
		}
		if created {
			metrics.RoomsCreated.Inc()
			r.log.Info("room.created", "room", roomID, "expires_at", room.ExpiresAt)
		}
		return room, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			r.log.Error("room.resolve", "room", roomID, "err", res.Err)
			return nil, res.Err
		}
		// Callers sharing a flight must not share slices.
		return res.Val.(*models.Room).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
