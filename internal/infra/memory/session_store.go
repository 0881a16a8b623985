package memory

import (
	"sync"
	"time"

	"livequiz-service/internal/app"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Ended sessions stay resident for a retention window so their codes cannot
// be reallocated while students may still be polling results.
type SessionStore struct {
	retention time.Duration

	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(retention time.Duration) *SessionStore {
	return &SessionStore{
		retention: retention,
		sessions:  make(map[string]*app.Session),
	}
}

func (s *SessionStore) Insert(session *app.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.sessions[session.Code()]; taken {
		return false
	}
	s.sessions[session.Code()] = session
	return true
}

func (s *SessionStore) Get(code string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[code]
	return session, ok
}

func (s *SessionStore) Remove(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, code)
}

// Sweep drops sessions that ended more than the retention window ago and
// returns how many were removed.
func (s *SessionStore) Sweep(now time.Time) int {
	cutoff := now.Add(-s.retention)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for code, session := range s.sessions {
		if session.EndedBefore(cutoff) {
			delete(s.sessions, code)
			removed++
		}
	}
	return removed
}
