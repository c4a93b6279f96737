package session

import (
	"fmt"
	"sync"
	"time"
)

// Store persists pending sessions.
type Store interface {
	Create(s *Session) error
	Get(id string) (*Session, bool)
	// Update applies fn to the stored session atomically. Changes are kept
	// only if fn returns nil.
	Update(id string, fn func(*Session) error) error
	Delete(id string)
	// Expire drops sessions older than ttl and returns their ids.
	Expire(now time.Time, ttl time.Duration) []string
}

// Manager tracks all pending sessions in memory.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session Manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create registers s.
//
// Precondition: s must not be nil and s.ID must be non-empty.
// Postcondition: Returns an error if the id is already registered.
func (m *Manager) Create(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[s.ID]; exists {
		return fmt.Errorf("session %q already exists", s.ID)
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

// Get returns a snapshot of the session with the given id.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// Update runs fn against a copy of the session and stores the copy if fn succeeds.
//
// Postcondition: Returns ErrSessionNotFound for an unknown id, or fn's error.
func (m *Manager) Update(id string, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	cp := s.Clone()
	if err := fn(cp); err != nil {
		return err
	}
	m.sessions[id] = cp
	return nil
}

// Delete removes the session. Unknown ids are ignored.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Len returns the number of pending sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expire removes sessions created more than ttl before now.
//
// Postcondition: Returns the ids removed.
func (m *Manager) Expire(now time.Time, ttl time.Duration) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	for id, s := range m.sessions {
		if now.Sub(s.CreatedAt) > ttl {
			delete(m.sessions, id)
			removed = append(removed, id)
		}
	}
	return removed
}
