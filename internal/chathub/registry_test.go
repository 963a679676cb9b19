package chathub_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"roomchat/backend/internal/chathub"
	"roomchat/backend/internal/models"
	"roomchat/backend/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

func newTestRegistry(s storage.Storage, days func() int) *chathub.RegistryService {
	opts := []chathub.RegistryOption{chathub.WithClock(func() time.Time { return testNow })}
	if days != nil {
		opts = append(opts, chathub.WithRetention(days))
	}
	return chathub.NewRegistryService(s, discardLogger(), opts...)
}

func TestRegistry_ResolveOrCreate_CreatesOnce(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	draws := 4
	reg := newTestRegistry(store, func() int { return draws })

	first, err := reg.ResolveOrCreate(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", first.RoomID)
	assert.True(t, first.CreatedAt.Equal(testNow))
	assert.True(t, first.ExpiresAt.Equal(testNow.Add(4*day)))
	assert.Empty(t, first.Messages)

	draws = 7
	second, err := reg.ResolveOrCreate(ctx, "abc123")
	require.NoError(t, err)
	assert.True(t, second.ExpiresAt.Equal(first.ExpiresAt), "existing room keeps its expiry")
}

func TestRegistry_RetentionIsClamped(t *testing.T) {
	ctx := context.Background()

	short, err := newTestRegistry(storage.NewMemoryStore(), func() int { return 1 }).ResolveOrCreate(ctx, "short")
	require.NoError(t, err)
	assert.Equal(t, 3*day, short.ExpiresAt.Sub(short.CreatedAt))

	long, err := newTestRegistry(storage.NewMemoryStore(), func() int { return 30 }).ResolveOrCreate(ctx, "long")
	require.NoError(t, err)
	assert.Equal(t, 7*day, long.ExpiresAt.Sub(long.CreatedAt))
}

func TestRegistry_RandomRetentionStaysInRange(t *testing.T) {
	ctx := context.Background()
	reg := newTestRegistry(storage.NewMemoryStore(), nil)

	for i := range 200 {
		room, err := reg.ResolveOrCreate(ctx, fmt.Sprintf("room-%d", i))
		require.NoError(t, err)
		lifetime := room.ExpiresAt.Sub(room.CreatedAt)
		assert.GreaterOrEqual(t, lifetime, 3*day)
		assert.LessOrEqual(t, lifetime, 7*day)
		assert.Zero(t, lifetime%day, "retention is a whole number of days")
	}
}

func TestRegistry_ConcurrentResolveAgreesOnExpiry(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store, nil)

	const n = 32
	var wg sync.WaitGroup
	expiries := make([]time.Time, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, err := reg.ResolveOrCreate(ctx, "shared")
			assert.NoError(t, err)
			if room != nil {
				expiries[i] = room.ExpiresAt
			}
		}(i)
	}
	wg.Wait()

	stored, err := store.GetRoom(ctx, "shared")
	require.NoError(t, err)
	for _, exp := range expiries {
		assert.True(t, exp.Equal(stored.ExpiresAt))
	}
}

func TestRegistry_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	reg := newTestRegistry(store, nil)

	room, err := reg.ResolveOrCreate(ctx, "copy")
	require.NoError(t, err)
	room.Messages = append(room.Messages, models.Message{ID: "x"})
	room.Participants = append(room.Participants, "intruder")

	again, err := reg.Lookup(ctx, "copy")
	require.NoError(t, err)
	assert.Empty(t, again.Messages)
	assert.Empty(t, again.Participants)
}

func TestRegistry_Lookup_Missing(t *testing.T) {
	room, err := newTestRegistry(storage.NewMemoryStore(), nil).Lookup(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, room)
}

func TestRegistry_StoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	store := new(MockStorage)
	store.On("GetRoom", mock.Anything, "down").Return(nil, boom)

	room, err := newTestRegistry(store, nil).ResolveOrCreate(context.Background(), "down")
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, room)
	store.AssertNotCalled(t, "CreateRoomIfNotExists", mock.Anything, mock.Anything)
}

func TestRegistry_LosingCreatorGetsWinnersRoom(t *testing.T) {
	winner := models.NewRoom("contested", testNow.Add(-time.Hour), 6*day)
	store := new(MockStorage)
	store.On("GetRoom", mock.Anything, "contested").Return(nil, nil).Once()
	store.On("CreateRoomIfNotExists", mock.Anything, mock.MatchedBy(func(r *models.Room) bool {
		return r.RoomID == "contested"
	})).Return(winner, false, nil).Once()

	room, err := newTestRegistry(store, func() int { return 3 }).ResolveOrCreate(context.Background(), "contested")
	require.NoError(t, err)
	assert.True(t, room.ExpiresAt.Equal(winner.ExpiresAt))
	store.AssertExpectations(t)
}

// gatedStore blocks GetRoom until release is closed, honouring ctx meanwhile.
type gatedStore struct {
	*storage.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	select {
	case <-s.release:
		return s.MemoryStore.GetRoom(ctx, roomID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestRegistry_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := &gatedStore{
		MemoryStore: storage.NewMemoryStore(),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	reg := newTestRegistry(store, func() int { return 4 })

	cancelled, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := reg.ResolveOrCreate(cancelled, "shared-flight")
		first <- err
	}()
	<-store.entered

	type result struct {
		room *models.Room
		err  error
	}
	second := make(chan result, 1)
	go func() {
		room, err := reg.ResolveOrCreate(context.Background(), "shared-flight")
		second <- result{room, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-first:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(eventTimeout):
		require.FailNow(t, "cancelled caller kept waiting")
	}

	close(store.release)
	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.Equal(t, "shared-flight", res.room.RoomID)
		assert.True(t, res.room.ExpiresAt.Equal(testNow.Add(4*day)))
	case <-time.After(eventTimeout):
		require.FailNow(t, "healthy caller never got the room")
	}

	stored, err := store.MemoryStore.GetRoom(context.Background(), "shared-flight")
	require.NoError(t, err)
	assert.NotNil(t, stored)
}
