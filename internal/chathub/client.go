package chathub

import "worklink/backend/internal/models"

// Client is the interface for one live connection owned by a single
// authenticated user. It abstracts the underlying transport, allowing the
// hub to manage connections uniformly.
type Client interface {
	// GetUserID returns the authenticated owner of the connection.
	GetUserID() string
	// GetConnID returns the unique identifier of this connection. One
	// user may hold several connections at once.
	GetConnID() string

	// GetSendChannel returns the channel the hub writes outbound events
	// to. It is a send-only channel.
	GetSendChannel() chan<- models.Event

	// Run starts the client's read and write pumps.
	Run()
	// Close shuts down the client's send channel. Only the hub calls it.
	Close()
}

// Inbound couples a decoded event with the connection it arrived on so the
// hub can attribute and answer it.
type Inbound struct {
	Client Client
	Event  models.Event
}
