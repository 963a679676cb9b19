package chathub

import "roomchat/backend/internal/models"

// Client is the interface for any type of connection the hub can deliver
// events to. It abstracts the underlying transport so the hub can manage
// websocket connections and test doubles uniformly.
type Client interface {
	// GetConnectionID returns the identifier of this transport session. It
	// doubles as the sender and participant id inside rooms.
	GetConnectionID() string

	// Deliver queues ev for the connection without blocking. It returns false
	// when the connection is closed or its outbound buffer is full.
	Deliver(ev models.ServerEvent) bool

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the connection down. Safe to call more than once.
	Close()
}
