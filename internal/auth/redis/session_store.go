// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/holomush/authkit/internal/auth"
)

// KeyPrefix namespaces session keys.
const KeyPrefix = "authkit:session:"

// record is the JSON value stored under a session key.
type record struct {
	UserID    string    `json:"user_id"`
	UserAgent string    `json:"user_agent,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore implements auth.SessionStore on Redis.
type SessionStore struct {
	client redis.Cmdable
	maxAge time.Duration
	now    func() time.Time
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore creates a SessionStore. A non-positive maxAge selects
// auth.DefaultSessionMaxAge.
func NewSessionStore(client redis.Cmdable, maxAge time.Duration, opts ...SessionStoreOption) *SessionStore {
	if maxAge <= 0 {
		maxAge = auth.DefaultSessionMaxAge
	}
	s := &SessionStore{client: client, maxAge: maxAge, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxAge is the lifetime of newly created sessions.
func (s *SessionStore) MaxAge() time.Duration {
	return s.maxAge
}

// Create stores session under a new identifier with a TTL matching its expiry.
func (s *SessionStore) Create(ctx context.Context, session *auth.Session) (string, error) {
	if session == nil {
		return "", oops.Code("SESSION_CREATE_FAILED").Errorf("session cannot be nil")
	}
	token, tokenHash, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	stored := session.WithExpiry(s.maxAge)

	ttl := stored.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("expires_at", stored.ExpiresAt).
			Errorf("session already expired")
	}

	data, err := json.Marshal(record{
		UserID:    stored.UserID,
		UserAgent: stored.UserAgent,
		IPAddress: stored.IPAddress,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
	})
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").With("operation", "encode session").Wrap(err)
	}

	if err := s.client.Set(ctx, sessionKey(tokenHash), data, ttl).Err(); err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "set session key").
			With("user_id", stored.UserID).
			Wrap(err)
	}
	return token, nil
}

// Get returns the live session for id. Keys Redis has not yet evicted are
// still checked against ExpiresAt.
func (s *SessionStore) Get(ctx context.Context, id string) (*auth.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(auth.HashSessionToken(id))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").With("operation", "get session key").Wrap(err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}

	session := &auth.Session{
		UserID:    rec.UserID,
		UserAgent: rec.UserAgent,
		IPAddress: rec.IPAddress,
		CreatedAt: rec.CreatedAt.UTC(),
		ExpiresAt: rec.ExpiresAt.UTC(),
	}
	if session.IsExpiredAt(s.now()) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return session, nil
}

// Delete removes a session. Deleting an unknown identifier is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKey(auth.HashSessionToken(id))).Err(); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("operation", "delete session key").Wrap(err)
	}
	return nil
}

func sessionKey(tokenHash string) string {
	return KeyPrefix + tokenHash
}

var _ auth.SessionStore = (*SessionStore)(nil)
