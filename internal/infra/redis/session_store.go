package redis

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"livequiz-service/internal/app"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - Session state itself stays in a local in-memory map; the per-session
//     mutex and timer logic do not survive serialization.
//   - Redis holds a liveness key per code, claimed with SETNX so two
//     instances cannot hand out the same code.
//   - For true distribution you'd pair this with a pub/sub projector that
//     fans out status snapshots across instances.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) Insert(session *app.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := session.Code()
	if _, taken := s.sessions[code]; taken {
		return false
	}
	claimed, err := s.client.SetNX(context.Background(), s.key(code), "1", s.ttl).Result()
	if err == nil && !claimed {
		// Another instance holds this code.
		return false
	}
	s.sessions[code] = session
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
	_ = s.client.Del(context.Background(), s.key(code)).Err()
}

// Sweep drops local sessions that ended more than the liveness TTL ago; the
// redis keys expire on their own.
func (s *SessionStore) Sweep(now time.Time) int {
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for code, session := range s.sessions {
		if session.EndedBefore(cutoff) {
			delete(s.sessions, code)
			_ = s.client.Del(context.Background(), s.key(code)).Err()
			removed++
		}
	}
	return removed
}

func (s *SessionStore) key(code string) string {
	return "livequiz:session:" + code
}
