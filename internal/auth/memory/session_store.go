// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authkit/internal/auth"
)

var (
	_ auth.SessionStore = (*SessionStore)(nil)
	_ auth.Sweeper      = (*SessionStore)(nil)
)

// SessionStore implements auth.SessionStore with a mutex-guarded map keyed by
// the token hash.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]auth.Session
	maxAge   time.Duration
	now      func() time.Time
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore creates an empty store. A non-positive maxAge selects
// auth.DefaultSessionMaxAge.
func NewSessionStore(maxAge time.Duration, opts ...SessionStoreOption) *SessionStore {
	if maxAge <= 0 {
		maxAge = auth.DefaultSessionMaxAge
	}
	s := &SessionStore{
		sessions: make(map[string]auth.Session),
		maxAge:   maxAge,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create stores session and returns its new identifier.
func (s *SessionStore) Create(_ context.Context, session *auth.Session) (string, error) {
	if session == nil {
		return "", oops.Code("SESSION_CREATE_FAILED").Errorf("session cannot be nil")
	}
	token, tokenHash, err := auth.GenerateSessionToken()
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").Wrap(err)
	}

	stamped := session.WithExpiry(s.maxAge)

	s.mu.Lock()
	s.sessions[tokenHash] = *stamped
	s.mu.Unlock()

	return token, nil
}

// Get returns the session for id.
func (s *SessionStore) Get(_ context.Context, id string) (*auth.Session, error) {
	s.mu.RLock()
	session, ok := s.sessions[auth.HashSessionToken(id)]
	s.mu.RUnlock()

	if !ok || session.IsExpiredAt(s.now()) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return &session, nil
}

// Delete removes the session for id, if any.
func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, auth.HashSessionToken(id))
	s.mu.Unlock()
	return nil
}

// MaxAge is the lifetime of newly created sessions.
func (s *SessionStore) MaxAge() time.Duration {
	return s.maxAge
}

// DeleteExpired removes expired sessions.
func (s *SessionStore) DeleteExpired(_ context.Context) (int64, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, session := range s.sessions {
		if session.IsExpiredAt(now) {
			delete(s.sessions, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions, expired or not.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
