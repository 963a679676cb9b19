package chathub_test

import (
	"context"
	"time"

	"roomchat/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Room), args.Error(1)
}

func (m *MockStorage) CreateRoomIfNotExists(ctx context.Context, room *models.Room) (*models.Room, bool, error) {
	args := m.Called(ctx, room)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Room), args.Bool(1), args.Error(2)
}

func (m *MockStorage) AddParticipant(ctx context.Context, roomID, participantID string) error {
	args := m.Called(ctx, roomID, participantID)
	return args.Error(0)
}

func (m *MockStorage) AppendMessage(ctx context.Context, roomID string, msg models.Message) error {
	args := m.Called(ctx, roomID, msg)
	return args.Error(0)
}

func (m *MockStorage) DeleteExpiredRooms(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStorage) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStorage) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
