package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/middleware"
)

type entry struct {
	session  *Session
	lastSeen time.Time
}

// Manager owns the live sessions and evicts those left idle.
type Manager struct {
	deps         Deps
	idleTimeout  time.Duration
	setupMessage string
	logger       zerolog.Logger
	now          func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry

	running  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewManager creates a manager. A non-empty setupMessage puts every new
// session in the setup-required state.
func NewManager(deps Deps, idleTimeout time.Duration, setupMessage string) *Manager {
	return &Manager{
		deps:         deps,
		idleTimeout:  idleTimeout,
		setupMessage: setupMessage,
		logger:       deps.Logger,
		now:          time.Now,
		sessions:     make(map[string]*entry),
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (m *Manager) Create() *Session {
	id := uuid.NewString()
	var s *Session
	if m.setupMessage != "" {
		s = NewSetupRequired(id, m.setupMessage, m.deps)
	} else {
		s = New(id, m.deps)
	}

	m.mu.Lock()
	m.sessions[id] = &entry{session: s, lastSeen: m.now()}
	n := len(m.sessions)
	m.mu.Unlock()

	middleware.SetActiveSessions(n)
	m.logger.Debug().Str("session_id", id).Msg("Session created")
	return s
}

// Get returns the session and marks it as used.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastSeen = m.now()
	return e.session, nil
}

func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if ok {
		middleware.SetActiveSessions(n)
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Evict drops every session idle for longer than the idle timeout and
// returns how many were removed.
func (m *Manager) Evict() int {
	if m.idleTimeout <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	removed := 0
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if removed > 0 {
		middleware.SetActiveSessions(n)
		m.logger.Info().Int("evicted", removed).Int("active", n).Msg("Evicted idle sessions")
	}
	return removed
}

// Start runs the janitor until Stop is called.
func (m *Manager) Start(interval time.Duration) {
	if interval <= 0 {
		return
	}
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.Evict()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends the janitor started by Start and waits for it to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	running := m.running
	m.mu.Unlock()

	m.stopOnce.Do(func() {
		close(m.stop)
	})
	if running {
		<-m.done
	}
}
