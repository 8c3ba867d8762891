package session

import (
	"sync"
	"time"
)

// InMemoryStore is a volatile session store keyed by correlator. It is safe
// for concurrent access and best suited for tests or ephemeral demo servers.
// Sessions are created lazily on first request under a correlator and
// discarded by PurgeIdle once untouched for longer than the idle timeout.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*Session)}
}

// Get returns the session for the correlator, creating it on first use.
func (s *InMemoryStore) Get(id string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.Touch()
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		sess.Touch()
		return sess
	}
	sess = New(id)
	s.sessions[id] = sess
	return sess
}

// Peek returns the session for the correlator without refreshing its
// last-activity timestamp, so purge scans can read idle times without
// resetting them.
func (s *InMemoryStore) Peek(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Len returns the number of live sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Delete removes a session. Returns true when the session existed.
func (s *InMemoryStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// PurgeIdle discards sessions untouched for longer than maxIdle and returns
// how many were removed.
func (s *InMemoryStore) PurgeIdle(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if sess.LastTouched().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
