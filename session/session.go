package session

import (
	"sync"
	"time"

	"github.com/nlip-soln/nlipmesh/pii"
)

// Session identifies one logical conversation. It owns exactly one live
// placeholder mapping at a time, held in an explicit slot so the
// clear-on-completion lifecycle is enforced by construction rather than by
// an external side table.
//
// Contract:
//   - At most one request is in flight per session; Begin/End serialize
//     callers so the single mapping slot is never interleaved.
//   - SetMapping replaces any prior mapping; mappings never persist across
//     request/response cycles.
type Session struct {
	ID      string
	Created time.Time

	mu      sync.Mutex
	touched time.Time
	mapping pii.Mapping

	// reqMu serializes in-flight requests for this session. Held across the
	// whole intercept cycle, unlike mu which only guards slot access.
	reqMu sync.Mutex
}

// New creates a session with the given correlator id.
func New(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Created: now, touched: now}
}

// Begin blocks until no other request is in flight on this session.
func (s *Session) Begin() { s.reqMu.Lock() }

// End releases the in-flight slot taken by Begin.
func (s *Session) End() { s.reqMu.Unlock() }

// SetMapping stores the placeholder mapping for the current request,
// replacing any prior mapping.
func (s *Session) SetMapping(m pii.Mapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapping = m
	s.touched = time.Now()
}

// Mapping returns a copy of the live mapping, or nil when none is stored.
func (s *Session) Mapping() pii.Mapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mapping == nil {
		return nil
	}
	return s.mapping.Clone()
}

// ClearMapping discards the live mapping.
func (s *Session) ClearMapping() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mapping = nil
}

// Touch updates the last-activity timestamp.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched = time.Now()
}

// LastTouched returns the last-activity timestamp.
func (s *Session) LastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}
