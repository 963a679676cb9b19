package models

import "time"

// Message is a single chat line inside a room. IDs and timestamps are
// assigned by the server, never by the client.
type Message struct {
	ID        string    `json:"id" bson:"id"`
	Content   string    `json:"content" bson:"content"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`
	SenderID  string    `json:"senderId" bson:"senderId"`
}

// Room is the persisted state of one chat room: its ordered message history,
// the set of connection ids that have ever joined, and its expiry time.
type Room struct {
	RoomID       string    `json:"roomId" bson:"roomId"`
	Messages     []Message `json:"messages" bson:"messages"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	ExpiresAt    time.Time `json:"expiresAt" bson:"expiresAt"`
	Participants []string  `json:"participants" bson:"participants"`
}

// NewRoom returns an empty room that lives for the given retention window.
func NewRoom(roomID string, createdAt time.Time, retention time.Duration) *Room {
	return &Room{
		RoomID:       roomID,
		Messages:     []Message{},
		CreatedAt:    createdAt,
		ExpiresAt:    createdAt.Add(retention),
		Participants: []string{},
	}
}

// Expired reports whether the room's expiry time lies strictly before now.
func (r *Room) Expired(now time.Time) bool {
	return r.ExpiresAt.Before(now)
}

// HasParticipant reports whether id has ever joined or posted in the room.
func (r *Room) HasParticipant(id string) bool {
	for _, p := range r.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can't mutate store-owned slices.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Messages = append(make([]Message, 0, len(r.Messages)), r.Messages...)
	cp.Participants = append(make([]string, 0, len(r.Participants)), r.Participants...)
	return &cp
}
