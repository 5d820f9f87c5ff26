package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState accumulates per-session query accounting.
type SessionState struct {
	SessionID          string
	CreatedAt          time.Time
	QueryHistory       []string
	RetrievedModuleIDs []string
	TotalTokensSaved   int
	QueryCount         int
}

// SessionManager tracks bounded per-session state. Sessions expire on a TTL
// measured from creation, not last use; over capacity the oldest-created
// session goes first.
type SessionManager struct {
	mu          sync.Mutex
	sessions    map[string]*SessionState
	maxSessions int
	ttl         time.Duration
	now         func() time.Time
}

// NewSessionManager creates a manager holding at most maxSessions sessions
// alive for ttl each.
func NewSessionManager(maxSessions int, ttl time.Duration) *SessionManager {
	if maxSessions < 1 {
		maxSessions = 1
	}
	return &SessionManager{
		sessions:    make(map[string]*SessionState),
		maxSessions: maxSessions,
		ttl:         ttl,
		now:         time.Now,
	}
}

// GetOrCreate returns the live session for id, or a new one if id is empty,
// unknown, or expired. Expired sessions are recreated with a fresh
// CreatedAt, resetting their accounting.
func (m *SessionManager) GetOrCreate(id string) *SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(id)
}

func (m *SessionManager) getOrCreateLocked(id string) *SessionState {
	if id != "" {
		if s, ok := m.sessions[id]; ok {
			if m.now().Sub(s.CreatedAt) > m.ttl {
				delete(m.sessions, id)
			} else {
				return s
			}
		}
	}

	sid := id
	if sid == "" {
		sid = uuid.NewString()
	}
	s := &SessionState{SessionID: sid, CreatedAt: m.now()}
	m.sessions[sid] = s
	m.evictLocked()
	return s
}

// RecordQuery appends a query to the session's history and accumulates its
// counters, creating the session if needed.
func (m *SessionManager) RecordQuery(sessionID, query string, moduleIDs []string, tokensSaved int) *SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.getOrCreateLocked(sessionID)
	s.QueryHistory = append(s.QueryHistory, query)
	s.RetrievedModuleIDs = append(s.RetrievedModuleIDs, moduleIDs...)
	s.TotalTokensSaved += tokensSaved
	s.QueryCount++
	return s
}

// Len reports the number of live sessions.
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) evictLocked() {
	for len(m.sessions) > m.maxSessions {
		var oldestID string
		var oldestAt time.Time
		for id, s := range m.sessions {
			if oldestID == "" || s.CreatedAt.Before(oldestAt) {
				oldestID = id
				oldestAt = s.CreatedAt
			}
		}
		delete(m.sessions, oldestID)
	}
}
