package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taskpilot-ai/taskpilot/internal/logger"
)

const janitorInterval = time.Minute

// Manager owns all live sessions. Sessions idle longer than the configured
// timeout are evicted by a background janitor; an evicted session id simply
// mints a fresh session on its next use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	historyLimit int
	idleTimeout  time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a session manager and starts its eviction janitor.
// historyLimit bounds per-session history; idleTimeout of zero disables
// eviction.
func NewManager(historyLimit int, idleTimeout time.Duration) *Manager {
	m := &Manager{
		sessions:     make(map[string]*Session),
		historyLimit: historyLimit,
		idleTimeout:  idleTimeout,
		stop:         make(chan struct{}),
	}
	if idleTimeout > 0 {
		go m.janitor()
	}
	return m
}

// GetOrCreate returns the session with the given id, creating it if the id
// is empty or unknown. The returned session is always live.
func (m *Manager) GetOrCreate(id string) *Session {
	id = strings.TrimSpace(id)

	if id != "" {
		m.mu.RLock()
		s, ok := m.sessions[id]
		m.mu.RUnlock()
		if ok {
			s.Touch()
			return s
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if s, ok := m.sessions[id]; ok {
			s.Touch()
			return s
		}
	} else {
		id = uuid.NewString()
	}

	s := newSession(id, m.historyLimit)
	m.sessions[id] = s
	logger.Debug("Created session %s", id)
	return s
}

// Get returns the session with the given id, or nil if it does not exist
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops the eviction janitor
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) janitor() {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.evictIdle(now)
		}
	}
}

func (m *Manager) evictIdle(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if s.idleSince(now) >= m.idleTimeout {
			delete(m.sessions, id)
			logger.Debug("Evicted idle session %s", id)
		}
	}
}
