package interfaces

import "rollcall/pkg/types"

// Connection is an authenticated realtime client.
type Connection interface {
	// WriteJSON queues v for delivery. Safe for concurrent use.
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its resources.
	Close() error

	// ID uniquely identifies this connection for its lifetime.
	ID() string

	// Identity returns the identity bound at handshake. It never changes.
	Identity() types.Identity
}

// Broadcaster delivers a notification to every connected client.
type Broadcaster interface {
	Publish(n *types.Notification)
}

// IdentityVerifier turns a bearer credential into an identity.
type IdentityVerifier interface {
	// Verify returns an error wrapping ErrUnauthorized for any bad token.
	Verify(token string) (types.Identity, error)
}
