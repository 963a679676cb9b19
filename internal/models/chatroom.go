package models

import (
	"time"

	"github.com/lib/pq"
)

// ChatRoom is the PostgreSQL row backing a Room. Messages live in
// chat_histories and are removed together with the room.
type ChatRoom struct {
	// RoomID is the sanitized, user-visible room identifier.
	RoomID string `gorm:"primaryKey;type:text"`
	// CreatedAt is set once when the row is inserted.
	CreatedAt time.Time `gorm:"not null"`
	// ExpiresAt drives the sweeper; indexed for the range delete.
	ExpiresAt time.Time `gorm:"not null;index"`
	// Participants is the de-duplicated set of connection ids.
	Participants pq.StringArray `gorm:"type:text[];not null;default:'{}'"`

	History []ChatHistory `gorm:"foreignKey:RoomID;references:RoomID;constraint:OnDelete:CASCADE"`
}

// ChatRoomFromRoom converts the domain model into a row (without history).
func ChatRoomFromRoom(r *Room) *ChatRoom {
	participants := pq.StringArray{}
	participants = append(participants, r.Participants...)
	return &ChatRoom{
		RoomID:       r.RoomID,
		CreatedAt:    r.CreatedAt,
		ExpiresAt:    r.ExpiresAt,
		Participants: participants,
	}
}

// ToRoom converts the row and its preloaded history into the domain model.
func (c *ChatRoom) ToRoom() *Room {
	room := &Room{
		RoomID:       c.RoomID,
		Messages:     make([]Message, 0, len(c.History)),
		CreatedAt:    c.CreatedAt,
		ExpiresAt:    c.ExpiresAt,
		Participants: append([]string{}, c.Participants...),
	}
	for _, h := range c.History {
		room.Messages = append(room.Messages, h.ToMessage())
	}
	return room
}
