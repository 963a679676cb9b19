package storage_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"roomchat/backend/internal/models"
	"roomchat/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStorageContract exercises the behaviour every backend must share.
// newStore must return an empty store.
func runStorageContract(t *testing.T, newStore func(t *testing.T) storage.Storage) {
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	t.Run("GetRoom_Missing", func(t *testing.T) {
		s := newStore(t)
		room, err := s.GetRoom(context.Background(), "nope")
		require.NoError(t, err)
		assert.Nil(t, room)
	})

	t.Run("CreateRoomIfNotExists_FirstWriterWins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		first, created, err := s.CreateRoomIfNotExists(ctx, models.NewRoom("abc123", base, 5*24*time.Hour))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Empty(t, first.Messages)
		assert.Empty(t, first.Participants)

		second, created, err := s.CreateRoomIfNotExists(ctx, models.NewRoom("abc123", base.Add(time.Hour), 3*24*time.Hour))
		require.NoError(t, err)
		assert.False(t, created)
		assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
		assert.True(t, first.ExpiresAt.Equal(second.ExpiresAt))
		assert.True(t, second.ExpiresAt.Equal(base.Add(5*24*time.Hour)))
	})

	t.Run("CreateRoomIfNotExists_Concurrent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		const n = 16
		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			expiries []time.Time
			creators int
		)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				room := models.NewRoom("race", base, time.Duration(3+i%5)*24*time.Hour)
				stored, created, err := s.CreateRoomIfNotExists(ctx, room)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				defer mu.Unlock()
				expiries = append(expiries, stored.ExpiresAt)
				if created {
					creators++
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 1, creators, "exactly one caller creates the room")
		require.Len(t, expiries, n)
		for _, e := range expiries {
			assert.True(t, e.Equal(expiries[0]), "all callers observe the same expiry")
		}
	})

	t.Run("AppendMessage_PreservesOrderAndContent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, _, err := s.CreateRoomIfNotExists(ctx, models.NewRoom("r1", base, 4*24*time.Hour))
		require.NoError(t, err)

		for i := 0; i < 5; i++ {
			msg := models.Message{
				ID:        fmt.Sprintf("m%d", i),
				Content:   fmt.Sprintf("  message <%d>  ", i),
				Timestamp: base.Add(time.Duration(i) * time.Second),
				SenderID:  "c1",
			}
			require.NoError(t, s.AppendMessage(ctx, "r1", msg))
		}

		room, err := s.GetRoom(ctx, "r1")
		require.NoError(t, err)
		require.Len(t, room.Messages, 5)
		for i, m := range room.Messages {
			assert.Equal(t, fmt.Sprintf("m%d", i), m.ID)
			assert.Equal(t, fmt.Sprintf("  message <%d>  ", i), m.Content)
			assert.Equal(t, "c1", m.SenderID)
			assert.True(t, m.Timestamp.Equal(base.Add(time.Duration(i)*time.Second)))
		}
		assert.Equal(t, []string{"c1"}, room.Participants, "sender is recorded once")
	})

	t.Run("AppendMessage_Concurrent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, _, err := s.CreateRoomIfNotExists(ctx, models.NewRoom("busy", base, 4*24*time.Hour))
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, s.AppendMessage(ctx, "busy", models.Message{
					ID:        fmt.Sprintf("m%d", i),
					Content:   "x",
					Timestamp: base,
					SenderID:  fmt.Sprintf("c%d", i%4),
				}))
			}(i)
		}
		wg.Wait()

		room, err := s.GetRoom(ctx, "busy")
		require.NoError(t, err)
		assert.Len(t, room.Messages, n, "no append may be lost")
		assert.ElementsMatch(t, []string{"c0", "c1", "c2", "c3"}, room.Participants)
	})

	t.Run("AppendMessage_MissingRoom", func(t *testing.T) {
		s := newStore(t)
		err := s.AppendMessage(context.Background(), "ghost", models.Message{ID: "m1", Content: "hi", Timestamp: base, SenderID: "c1"})
		assert.ErrorIs(t, err, storage.ErrRoomNotFound)
	})

	t.Run("AddParticipant_Idempotent", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		_, _, err := s.CreateRoomIfNotExists(ctx, models.NewRoom("r2", base, 3*24*time.Hour))
		require.NoError(t, err)

		require.NoError(t, s.AddParticipant(ctx, "r2", "c1"))
		require.NoError(t, s.AddParticipant(ctx, "r2", "c1"))
		require.NoError(t, s.AddParticipant(ctx, "r2", "c2"))

		room, err := s.GetRoom(ctx, "r2")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"c1", "c2"}, room.Participants)
	})

	t.Run("AddParticipant_MissingRoom", func(t *testing.T) {
		s := newStore(t)
		err := s.AddParticipant(context.Background(), "ghost", "c1")
		assert.ErrorIs(t, err, storage.ErrRoomNotFound)
	})

	t.Run("DeleteExpiredRooms", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		now := base.Add(10 * 24 * time.Hour)

		expired := &models.Room{RoomID: "old", CreatedAt: now.Add(-4 * 24 * time.Hour), ExpiresAt: now.Add(-time.Second)}
		fresh := &models.Room{RoomID: "new", CreatedAt: now.Add(-2 * 24 * time.Hour), ExpiresAt: now.Add(time.Second)}
		for _, r := range []*models.Room{expired, fresh} {
			_, _, err := s.CreateRoomIfNotExists(ctx, r)
			require.NoError(t, err)
		}
		require.NoError(t, s.AppendMessage(ctx, "old", models.Message{ID: "m1", Content: "bye", Timestamp: base, SenderID: "c1"}))

		deleted, err := s.DeleteExpiredRooms(ctx, now)
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		gone, err := s.GetRoom(ctx, "old")
		require.NoError(t, err)
		assert.Nil(t, gone)

		kept, err := s.GetRoom(ctx, "new")
		require.NoError(t, err)
		require.NotNil(t, kept)

		deleted, err = s.DeleteExpiredRooms(ctx, now)
		require.NoError(t, err)
		assert.EqualValues(t, 0, deleted, "second sweep has nothing to do")
	})

	t.Run("SweptRoomCanBeRecreatedEmpty", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, _, err := s.CreateRoomIfNotExists(ctx, &models.Room{RoomID: "phoenix", CreatedAt: base, ExpiresAt: base.Add(3 * 24 * time.Hour)})
		require.NoError(t, err)
		require.NoError(t, s.AppendMessage(ctx, "phoenix", models.Message{ID: "m1", Content: "hi", Timestamp: base, SenderID: "c1"}))

		_, err = s.DeleteExpiredRooms(ctx, base.Add(8*24*time.Hour))
		require.NoError(t, err)

		reborn, created, err := s.CreateRoomIfNotExists(ctx, models.NewRoom("phoenix", base.Add(8*24*time.Hour), 4*24*time.Hour))
		require.NoError(t, err)
		assert.True(t, created)
		assert.Empty(t, reborn.Messages)
		assert.Empty(t, reborn.Participants)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func TestMemoryStore(t *testing.T) {
	runStorageContract(t, func(t *testing.T) storage.Storage {
		return storage.NewMemoryStore()
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := storage.NewMemoryStore()
	ctx := context.Background()
	_, _, err := s.CreateRoomIfNotExists(ctx, models.NewRoom("r", time.Now(), 72*time.Hour))
	require.NoError(t, err)

	room, err := s.GetRoom(ctx, "r")
	require.NoError(t, err)
	room.Participants = append(room.Participants, "intruder")
	room.Messages = append(room.Messages, models.Message{ID: "forged"})

	again, err := s.GetRoom(ctx, "r")
	require.NoError(t, err)
	assert.Empty(t, again.Participants)
	assert.Empty(t, again.Messages)
}

func TestMemoryStores_AreIsolated(t *testing.T) {
	ctx := context.Background()
	a := storage.NewMemoryStore()
	b := storage.NewMemoryStore()

	_, _, err := a.CreateRoomIfNotExists(ctx, models.NewRoom("shared-name", time.Now(), 72*time.Hour))
	require.NoError(t, err)

	room, err := b.GetRoom(ctx, "shared-name")
	require.NoError(t, err)
	assert.Nil(t, room, "stores must not share process-wide state")
}
