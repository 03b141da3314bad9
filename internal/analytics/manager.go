package analytics

import (
	"sync"
	"time"
)

// SessionManager tracks the set of live sessions and runs the idle-session
// cleanup sweep. No per-session mutable state is ever shared across
// sessions; the manager only holds session handles.
type SessionManager struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	audit     AuditSink
	collector *Collector
	cache     *AggregateCache
}

// NewSessionManager returns an empty manager. audit, collector, and cache
// may each be nil: sessions then never mirror their accepted alerts,
// report Prometheus metrics, or publish to the aggregate read surface,
// respectively.
func NewSessionManager(audit AuditSink, collector *Collector, cache *AggregateCache) *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session), audit: audit, collector: collector, cache: cache}
}

// CreateSession allocates and starts a new session, registering it under
// its generated ID.
func (m *SessionManager) CreateSession(cfg Config, processor *SnapshotProcessor, client Client, rewind RewindSource) *Session {
	s := NewSession(cfg, processor, client, rewind, m.audit, m.collector, m.cache)
	s.Start()

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	if m.collector != nil {
		m.collector.ActiveSessions.Set(float64(m.Count()))
	}
	return s
}

// Get returns a session by ID, or nil if not found.
func (m *SessionManager) Get(id string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

// DeleteSession stops a session's workers, frees its buffers, and
// deregisters it.
func (m *SessionManager) DeleteSession(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		s.Stop()
		if m.collector != nil {
			m.collector.ActiveSessions.Set(float64(m.Count()))
		}
	}
}

// SweepIdle stops and deregisters every session idle for 30+ minutes.
func (m *SessionManager) SweepIdle(now time.Time) []string {
	m.mu.RLock()
	var idle []string
	for id, s := range m.sessions {
		if s.IsIdleTimedOut(now) {
			idle = append(idle, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range idle {
		m.DeleteSession(id)
	}
	return idle
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
