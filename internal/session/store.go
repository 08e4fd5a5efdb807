// Package session holds the process-local mapping from session id to the
// login secret derived from the password submitted at login. The store is
// deliberately non-persistent: restarting the process destroys every login
// secret, which revokes all outstanding auth_key cookies at once.
package session

import (
	"sync"
	"time"
)

// TTL is the fixed lifetime of a session entry.
const TTL = time.Hour

type entry struct {
	loginSecret []byte
	exp         time.Time
}

// Store is a mutex-guarded map of live sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]entry
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates an empty session store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]entry),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a session. The secret is copied; the caller may zero its
// own buffer afterwards.
func (s *Store) Create(sessionID string, loginSecret []byte) {
	secret := make([]byte, len(loginSecret))
	copy(secret, loginSecret)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = entry{
		loginSecret: secret,
		exp:         s.now().Add(TTL),
	}
}

// Get returns a copy of the login secret for a live session. An expired
// entry is destroyed and reported as absent.
func (s *Store) Get(sessionID string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if s.now().After(e.exp) {
		delete(s.sessions, sessionID)
		return nil, false
	}

	secret := make([]byte, len(e.loginSecret))
	copy(secret, e.loginSecret)
	return secret, true
}

// Destroy removes a session if present.
func (s *Store) Destroy(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// CleanupExpired removes every expired entry and returns the count removed.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, e := range s.sessions {
		if now.After(e.exp) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of live entries, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
