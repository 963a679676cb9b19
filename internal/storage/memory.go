package storage

import (
	"context"
	"sync"
	"time"

	"roomchat/backend/internal/models"
)

// MemoryStore keeps rooms in a process-local map. Data is lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]*models.Room
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]*models.Room)}
}

func (s *MemoryStore) GetRoom(_ context.Context, roomID string) (*models.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[roomID].Clone(), nil
}

func (s *MemoryStore) CreateRoomIfNotExists(_ context.Context, room *models.Room) (*models.Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rooms[room.RoomID]; ok {
		return existing.Clone(), false, nil
	}
	stored := room.Clone()
	if stored.Messages == nil {
		stored.Messages = []models.Message{}
	}
	if stored.Participants == nil {
		stored.Participants = []string{}
	}
	s.rooms[room.RoomID] = stored
	return stored.Clone(), true, nil
}

func (s *MemoryStore) AddParticipant(_ context.Context, roomID, participantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	if !room.HasParticipant(participantID) {
		room.Participants = append(room.Participants, participantID)
	}
	return nil
}

func (s *MemoryStore) AppendMessage(_ context.Context, roomID string, msg models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return ErrRoomNotFound
	}
	room.Messages = append(room.Messages, msg)
	if !room.HasParticipant(msg.SenderID) {
		room.Participants = append(room.Participants, msg.SenderID)
	}
	return nil
}

func (s *MemoryStore) DeleteExpiredRooms(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, room := range s.rooms {
		if room.Expired(now) {
			delete(s.rooms, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }
