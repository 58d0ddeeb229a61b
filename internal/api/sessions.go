package api

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/MrWong99/boxkeeper/internal/command"
)

// sessions keeps slot-filling state between stateless HTTP requests.
type sessions struct {
	exec *command.Executor
	ttl  time.Duration
	now  func() time.Time

	mu   sync.Mutex
	byID map[string]*sessionEntry
}

type sessionEntry struct {
	sess     *command.Session
	lastUsed time.Time
}

func newSessions(exec *command.Executor, ttl time.Duration, now func() time.Time) *sessions {
	return &sessions{exec: exec, ttl: ttl, now: now, byID: make(map[string]*sessionEntry)}
}

// get returns the session for id, or a new one under a fresh ID when id is
// empty, unknown or expired. Idle sessions are evicted on the way.
func (s *sessions) get(id string) (string, *command.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, e := range s.byID {
		if now.Sub(e.lastUsed) > s.ttl {
			delete(s.byID, k)
		}
	}
	if e, ok := s.byID[id]; ok {
		e.lastUsed = now
		return id, e.sess
	}
	id = ulid.Make().String()
	e := &sessionEntry{sess: s.exec.NewSession(), lastUsed: now}
	s.byID[id] = e
	return id, e.sess
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
