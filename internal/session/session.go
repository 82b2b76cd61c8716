// Package session owns user identity for the engine. Identity is an explicit
// value handed to each component, never ambient state read from globals, and
// the Manager is the single owner of session load/clear semantics.
package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// Mode selects which portfolio view a session is looking at. The two views
// are mutually exclusive and share no holdings.
type Mode string

const (
	ModeReal      Mode = "real"
	ModeSimulated Mode = "simulated"
)

// ErrNotFound is returned for unknown or cleared session IDs.
var ErrNotFound = errors.New("session: not found")

// Session binds one user identity to a portfolio mode.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	Mode   Mode   `json:"mode"`
}

// Manager is the process-wide session registry.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create opens a session for userID, starting in real mode like the dashboard.
func (m *Manager) Create(userID string) *Session {
	s := &Session{
		ID:     uuid.New().String(),
		UserID: userID,
		Mode:   ModeReal,
	}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	c := *s
	return &c
}

// Get looks up a session by ID. The returned value is a copy: session state
// changes only through the manager, and callers never observe a concurrent
// SetMode mid-request.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := *s
	return &c, nil
}

// SetMode switches a session between the real and simulated views and
// returns a copy of the updated session.
func (m *Manager) SetMode(id string, mode Mode) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.Mode = mode
	c := *s
	return &c, nil
}

// Clear ends a session. Clearing an unknown ID is a no-op.
func (m *Manager) Clear(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}
