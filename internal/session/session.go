// Package session isolates per-client reference tables for serve mode.
// Each session owns its own reference table; re-uploading overwrites it and
// nothing is shared across sessions.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/chassis-cli/internal/table"
)

// Session holds one client's uploaded reference table.
type Session struct {
	ID            string
	Reference     *table.Table
	ReferenceName string
	UpdatedAt     time.Time
}

// Manager tracks sessions and evicts idle ones after the TTL.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a Manager. A zero ttl disables eviction.
func NewManager(ttl time.Duration) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create registers a new empty session.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Session{ID: uuid.New().String(), UpdatedAt: m.now()}
	m.sessions[s.ID] = s
	return s
}

// Get returns the session, refreshing its idle timer.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if ok {
		s.UpdatedAt = m.now()
	}
	return s, ok
}

// Reference returns the session's reference table and its upload name,
// refreshing the idle timer. Handlers read through this instead of the
// Session fields so concurrent re-uploads stay behind the lock.
func (m *Manager) Reference(id string) (*table.Table, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, "", false
	}
	s.UpdatedAt = m.now()
	return s.Reference, s.ReferenceName, true
}

// SetReference stores (or overwrites) the session's reference table.
// Last upload wins.
func (m *Manager) SetReference(id, name string, t *table.Table) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	s.Reference = t
	s.ReferenceName = name
	s.UpdatedAt = m.now()
	return true
}

// Delete removes a session.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Sweep evicts sessions idle past the TTL and reports how many were removed.
func (m *Manager) Sweep() int {
	if m.ttl == 0 {
		return 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.ttl)
	removed := 0
	for id, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the live session count.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
