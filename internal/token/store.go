// Package token holds the in-memory credential pair for an authenticated
// session. The store is a pure state container: no network, no disk.
// Persistence and refresh live in internal/storage and internal/auth.
package token

import (
	"sync"
	"time"
)

// Credential is an access/refresh token pair with expiry timestamps.
type Credential struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// AccessExpiresWithin reports whether the access token expires within d.
func (c Credential) AccessExpiresWithin(d time.Duration) bool {
	return time.Until(c.AccessExpiresAt) <= d
}

// RefreshExpired reports whether the refresh token itself has expired.
func (c Credential) RefreshExpired() bool {
	return !c.RefreshExpiresAt.After(time.Now())
}

// Store guards the current credential. Exactly one component (the session
// orchestrator) owns a Store; everyone else reads value snapshots.
type Store struct {
	mu      sync.RWMutex
	current Credential
	valid   bool
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the stored credential and whether one is present.
func (s *Store) Current() (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current, s.valid
}

// Set replaces the stored credential. Expiry timestamps are monotonically
// non-decreasing across refreshes: a credential whose expiries regress the
// stored one is a stale refresh result and is ignored. Returns whether the
// credential was accepted.
func (s *Store) Set(c Credential) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.valid {
		if c.AccessExpiresAt.Before(s.current.AccessExpiresAt) ||
			c.RefreshExpiresAt.Before(s.current.RefreshExpiresAt) {
			return false
		}
	}
	s.current = c
	s.valid = true
	return true
}

// Clear removes the stored credential (logout or irrecoverable refresh failure).
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Credential{}
	s.valid = false
}
