package session

import (
	"errors"
	"sync"
	"time"

	"video-incident-service/config"
	"video-incident-service/intelligence"
	"video-incident-service/metrics"
	ws "video-incident-service/websocket"

	"github.com/apex/log"
)

// ErrNotFound means the session ID is unknown or already expired.
var ErrNotFound = errors.New("session not found")

// Manager holds all live sessions in memory. There is no persistence
// anywhere: a session and its video bytes live for the page session and
// are released on reset or expiry.
type Manager struct {
	analyzer intelligence.Analyzer
	hub      *ws.Hub

	activeWindow   float64
	maxUploadBytes int64
	ttl            time.Duration
	reapInterval   time.Duration

	mu       sync.RWMutex
	sessions map[string]*Session

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(cfg *config.Config, analyzer intelligence.Analyzer, hub *ws.Hub) *Manager {
	return &Manager{
		analyzer:       analyzer,
		hub:            hub,
		activeWindow:   cfg.ActiveWindowSeconds,
		maxUploadBytes: cfg.MaxUploadBytes,
		ttl:            cfg.SessionTTL,
		reapInterval:   cfg.ReapInterval,
		sessions:       make(map[string]*Session),
		stopChan:       make(chan struct{}),
	}
}

// Create registers a fresh session on the upload phase.
func (m *Manager) Create() *Session {
	s := newSession(m.analyzer, m.hub, m.activeWindow, m.maxUploadBytes)

	m.mu.Lock()
	m.sessions[s.ID] = s
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	log.WithField("session", s.ID).Info("session created")
	return s
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Start launches the expiry reaper.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.reapLoop()
}

// Stop shuts the reaper down and waits for it.
func (m *Manager) Stop() {
	close(m.stopChan)
	m.wg.Wait()
}

func (m *Manager) reapLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.reapExpired()
		}
	}
}

// reapExpired drops sessions idle past the TTL and releases their
// video bytes. This is the service's one resource-lifetime obligation.
func (m *Manager) reapExpired() {
	cutoff := time.Now().UTC().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	for _, s := range expired {
		s.releaseResources()
		log.WithField("session", s.ID).Info("session expired")
	}
}
