// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/authkit/internal/auth"
)

// SessionStore implements auth.SessionStore using PostgreSQL. Rows are keyed
// by the SHA-256 hash of the session identifier.
type SessionStore struct {
	pool   poolIface
	maxAge time.Duration
	now    func() time.Time
}

// SessionStoreOption configures a SessionStore.
type SessionStoreOption func(*SessionStore)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) SessionStoreOption {
	return func(s *SessionStore) { s.now = now }
}

// NewSessionStore creates a new SessionStore. A non-positive maxAge selects
// auth.DefaultSessionMaxAge.
func NewSessionStore(pool poolIface, maxAge time.Duration, opts ...SessionStoreOption) *SessionStore {
	if maxAge <= 0 {
		maxAge = auth.DefaultSessionMaxAge
	}
	s := &SessionStore{pool: pool, maxAge: maxAge, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxAge is the lifetime of newly created sessions.
func (s *SessionStore) MaxAge() time.Duration {
	return s.maxAge
}

// Create stores a new session and returns its identifier.
func (s *SessionStore) Create(ctx context.Context, session *auth.Session) (string, error) {
	if session == nil {
		return "", oops.Code("SESSION_CREATE_FAILED").Errorf("session cannot be nil")
	}
	token, tokenHash, err := auth.GenerateSessionToken()
	if err != nil {
		return "", err
	}
	stored := session.WithExpiry(s.maxAge)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO sessions (token_hash, user_id, user_agent, ip_address, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		tokenHash,
		stored.UserID,
		stored.UserAgent,
		stored.IPAddress,
		stored.CreatedAt,
		stored.ExpiresAt,
	)
	if err != nil {
		return "", oops.Code("SESSION_CREATE_FAILED").
			With("operation", "insert session").
			With("user_id", stored.UserID).
			Wrap(err)
	}
	return token, nil
}

// Get returns the live session for id. Expired rows are treated as absent.
func (s *SessionStore) Get(ctx context.Context, id string) (*auth.Session, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, user_agent, ip_address, created_at, expires_at
		FROM sessions
		WHERE token_hash = $1 AND expires_at > $2
	`, auth.HashSessionToken(id), s.now())

	var session auth.Session
	err := row.Scan(&session.UserID, &session.UserAgent, &session.IPAddress, &session.CreatedAt, &session.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.ExpiresAt = session.ExpiresAt.UTC()
	return &session, nil
}

// Delete removes a session. Deleting an unknown identifier is not an error.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, auth.HashSessionToken(id))
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "delete session").
			Wrap(err)
	}
	return nil
}

// DeleteExpired removes all expired sessions and returns the count.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, s.now())
	if err != nil {
		return 0, oops.Code("SESSION_DELETE_EXPIRED_FAILED").
			With("operation", "delete expired sessions").
			Wrap(err)
	}
	return result.RowsAffected(), nil
}

var (
	_ auth.SessionStore = (*SessionStore)(nil)
	_ auth.Sweeper      = (*SessionStore)(nil)
)
