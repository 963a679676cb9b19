package models

import "time"

// ChatHistory represents a saved chat message in the PostgreSQL database.
// Seq is a monotonically increasing key that preserves arrival order.
type ChatHistory struct {
	Seq uint64 `gorm:"primaryKey;autoIncrement"`

	// MessageID is the public message id handed to clients.
	MessageID string `gorm:"type:text;not null;uniqueIndex"`
	// RoomID references chat_rooms.room_id.
	RoomID string `gorm:"type:text;not null;index:idx_room_seq"`
	// SenderID is the connection id of the author.
	SenderID string `gorm:"type:text;not null"`
	// Content is stored verbatim.
	Content string `gorm:"type:text;not null"`
	// CreatedAt is the server-assigned message timestamp.
	CreatedAt time.Time `gorm:"not null"`
}

// ChatHistoryFromMessage builds the row for msg in roomID.
func ChatHistoryFromMessage(roomID string, msg Message) *ChatHistory {
	return &ChatHistory{
		MessageID: msg.ID,
		RoomID:    roomID,
		SenderID:  msg.SenderID,
		Content:   msg.Content,
		CreatedAt: msg.Timestamp,
	}
}

func (h ChatHistory) ToMessage() Message {
	return Message{
		ID:        h.MessageID,
		Content:   h.Content,
		Timestamp: h.CreatedAt,
		SenderID:  h.SenderID,
	}
}
