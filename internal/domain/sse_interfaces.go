package domain

import (
	"context"
)

// SSESession represents an open event-stream connection. It carries no
// tool traffic; it only signals liveness to the client.
type SSESession interface {
	// ID returns the session identifier.
	ID() string

	// Start writes the connected event and blocks until the session ends.
	Start()

	// Close ends the session.
	Close()

	// Context returns the session's context.
	Context() context.Context
}

// ConnectionManager tracks open event-stream sessions.
type ConnectionManager interface {
	// AddSession adds a session to the manager.
	AddSession(session SSESession)

	// RemoveSession removes a session from the manager.
	RemoveSession(sessionID string)

	// GetSession retrieves a session by ID.
	GetSession(sessionID string) (SSESession, bool)

	// CloseAll closes all active sessions.
	CloseAll()

	// Count returns the number of active sessions.
	Count() int
}
