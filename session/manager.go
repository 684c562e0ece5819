package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/CoachForgeHQ/coachforge-go/config"
)

// SessionIDHeader carries the editing-session id on every coordinator request.
const SessionIDHeader = "X-CoachForge-Session-ID"

// Manager coordinates session creation and lookup.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Context
	onReset  ResetListener
}

// NewManager creates a new session manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Context),
	}
}

// SetResetListener installs the listener every new session context inherits.
func (m *Manager) SetResetListener(fn ResetListener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReset = fn
	for _, sc := range m.sessions {
		sc.SetResetListener(fn)
	}
}

// Create allocates a new session context with a generated id.
func (m *Manager) Create() (*Context, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.sessions) >= config.MaxSessions {
		return nil, fmt.Errorf("session limit reached (%d)", config.MaxSessions)
	}

	sc := NewContext(ulid.Make().String())
	if m.onReset != nil {
		sc.SetResetListener(m.onReset)
	}
	m.sessions[sc.SessionID] = sc
	log.Printf("Edit session created: %s (%d active)", sc.SessionID, len(m.sessions))
	return sc, nil
}

// Get looks up a session by id.
func (m *Manager) Get(sessionID string) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sc, exists := m.sessions[sessionID]
	return sc, exists
}

// GetContext resolves the session context for a request from the session
// header and records activity on it.
func (m *Manager) GetContext(c *gin.Context) (*Context, error) {
	sessionID := c.GetHeader(SessionIDHeader)
	if sessionID == "" {
		return nil, fmt.Errorf("missing %s header", SessionIDHeader)
	}

	sc, exists := m.Get(sessionID)
	if !exists {
		return nil, fmt.Errorf("unknown edit session %s", sessionID)
	}

	sc.Touch()
	return sc, nil
}

// Remove drops a session.
func (m *Manager) Remove(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StartCleanupRoutine evicts idle sessions on a fixed interval. Sessions with
// unsaved changes are evicted like any other once idle past the timeout;
// pending edits are session-scoped and never outlive their session.
func StartCleanupRoutine(m *Manager) {
	go func() {
		ticker := time.NewTicker(config.SessionCleanupInterval)
		defer ticker.Stop()

		for range ticker.C {
			m.evictIdle(config.SessionIdleTimeout)
		}
	}()
	log.Printf("Session cleanup routine started (interval: %s, idle timeout: %s)",
		config.SessionCleanupInterval, config.SessionIdleTimeout)
}

func (m *Manager) evictIdle(timeout time.Duration) {
	cutoff := time.Now().UTC().Add(-timeout)

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, sc := range m.sessions {
		if sc.LastActive().Before(cutoff) {
			if sc.HasUnsavedChanges() {
				log.Printf("Evicting idle session %s with %d unsaved change(s)", id, sc.UnsavedCount())
			}
			delete(m.sessions, id)
		}
	}
}
