package models

import "encoding/json"

// Inbound event types sent by clients over the websocket.
const (
	EventJoinRoom    = "join-room"
	EventSendMessage = "send-message"
	EventLeaveRoom   = "leave-room"
)

// Outbound event types sent by the server.
const (
	EventConnected    = "connected"
	EventRoomMessages = "room-messages"
	EventNewMessage   = "new-message"
	EventUserJoined   = "user-joined"
	EventUserLeft     = "user-left"
	EventError        = "error"
)

// ClientEvent is a frame received from a client.
type ClientEvent struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Message string `json:"message,omitempty"`
}

// ServerEvent is a frame delivered to one connection. Only the fields that
// belong to Type are populated.
type ServerEvent struct {
	Type         string    `json:"type"`
	RoomID       string    `json:"roomId,omitempty"`
	ConnectionID string    `json:"connectionId,omitempty"`
	Messages     []Message `json:"messages,omitempty"`
	Message      *Message  `json:"message,omitempty"`
	Error        string    `json:"error,omitempty"`
}

// MarshalJSON always emits the messages array for room-messages, even when it
// is empty, and omits it for every other event type.
func (e ServerEvent) MarshalJSON() ([]byte, error) {
	type plain ServerEvent
	if e.Type != EventRoomMessages {
		return json.Marshal(plain(e))
	}
	msgs := e.Messages
	if msgs == nil {
		msgs = []Message{}
	}
	return json.Marshal(struct {
		plain
		Messages []Message `json:"messages"`
	}{plain: plain(e), Messages: msgs})
}

// RoomSnapshot builds the room-messages event. The messages slice is never
// nil so that an empty room serialises as [] and not as a missing field.
func RoomSnapshot(roomID string, messages []Message) ServerEvent {
	if messages == nil {
		messages = []Message{}
	}
	return ServerEvent{Type: EventRoomMessages, RoomID: roomID, Messages: messages}
}

func NewMessageEvent(roomID string, msg Message) ServerEvent {
	return ServerEvent{Type: EventNewMessage, RoomID: roomID, Message: &msg}
}

func UserJoined(roomID, connectionID string) ServerEvent {
	return ServerEvent{Type: EventUserJoined, RoomID: roomID, ConnectionID: connectionID}
}

func UserLeft(roomID, connectionID string) ServerEvent {
	return ServerEvent{Type: EventUserLeft, RoomID: roomID, ConnectionID: connectionID}
}

func Connected(connectionID string) ServerEvent {
	return ServerEvent{Type: EventConnected, ConnectionID: connectionID}
}

func ErrorEvent(roomID, msg string) ServerEvent {
	return ServerEvent{Type: EventError, RoomID: roomID, Error: msg}
}
