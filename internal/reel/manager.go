package reel

import (
	"context"
	"log/slog"
	"sync"

	"github.com/reelworks/reel-agent/internal/notify"
	"github.com/reelworks/reel-agent/internal/platform"
)

// Manager owns the open reel sessions. At most one session exists per
// reel id; opening an already open reel returns the existing session.
type Manager struct {
	client   platform.Client
	cache    *ReadCache
	poller   *Poller
	notifier notify.Notifier
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(client platform.Client, cache *ReadCache, poller *Poller, notifier notify.Notifier, logger *slog.Logger) *Manager {
	return &Manager{
		client:   client,
		cache:    cache,
		poller:   poller,
		notifier: notifier,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for reelID, creating and loading it first if
// needed. A failed load does not leave a half-open session behind.
func (m *Manager) Open(ctx context.Context, reelID string) (*Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions[reelID]; ok {
		m.mu.Unlock()
		return s, nil
	}
	m.mu.Unlock()

	s := NewSession(reelID, m.client, m.cache, m.poller, m.notifier, m.logger)
	if err := s.Load(ctx); err != nil {
		s.Close()
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[reelID]; ok {
		// Lost the race to a concurrent Open.
		s.Close()
		return existing, nil
	}
	m.sessions[reelID] = s
	m.logger.Info("session opened", "reel_id", reelID)
	return s, nil
}

// Get returns the open session for reelID, if any.
func (m *Manager) Get(reelID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[reelID]
	return s, ok
}

// Close tears down the session for reelID. Closing an unknown reel is a
// no-op.
func (m *Manager) Close(reelID string) {
	m.mu.Lock()
	s, ok := m.sessions[reelID]
	delete(m.sessions, reelID)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// CloseAll tears down every open session. Used at shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ActiveReprocessCount returns how many sessions are tracking a
// reprocessing job.
func (m *Manager) ActiveReprocessCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, s := range m.sessions {
		switch s.reprocess.State() {
		case StateStarting, StateTracking:
			count++
		}
	}
	return count
}
