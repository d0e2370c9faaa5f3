package server

import (
	"sync"

	"github.com/FreePeak/data-query-server/internal/domain"
)

// sseConnectionManager implements domain.ConnectionManager for
// event-stream sessions.
type sseConnectionManager struct {
	mu       sync.RWMutex
	sessions map[string]domain.SSESession
}

// NewSSEConnectionManager creates a new connection manager for SSE sessions.
func NewSSEConnectionManager() domain.ConnectionManager {
	return &sseConnectionManager{
		sessions: make(map[string]domain.SSESession),
	}
}

// AddSession adds a session to the connection manager.
func (m *sseConnectionManager) AddSession(session domain.SSESession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.ID()] = session
}

// RemoveSession removes a session from the connection manager.
func (m *sseConnectionManager) RemoveSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// GetSession retrieves a session by its ID.
func (m *sseConnectionManager) GetSession(sessionID string) (domain.SSESession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	return session, ok
}

// CloseAll closes and forgets every active session.
func (m *sseConnectionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]domain.SSESession)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Close()
	}
}

// Count returns the number of active sessions.
func (m *sseConnectionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
