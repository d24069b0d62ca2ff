// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenBytes    = 32                 // 32 bytes = 64 hex chars
	DefaultSessionMaxAge = 7 * 24 * time.Hour // advertised to clients via the cookie
)

// Session is the server-side record behind a session identifier.
type Session struct {
	UserID    string
	UserAgent string
	IPAddress string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// NewSession creates a validated Session for userID.
// UserAgent and IPAddress are recorded for audit only and may be empty.
func NewSession(userID, userAgent, ipAddress string, createdAt time.Time) (*Session, error) {
	if userID == "" {
		return nil, oops.Code("SESSION_INVALID_USER").Errorf("user ID cannot be empty")
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Session{
		UserID:    userID,
		UserAgent: userAgent,
		IPAddress: ipAddress,
		CreatedAt: createdAt.UTC(),
	}, nil
}

// WithExpiry returns a copy of s that expires maxAge after its creation.
func (s Session) WithExpiry(maxAge time.Duration) *Session {
	s.ExpiresAt = s.CreatedAt.Add(maxAge)
	return &s
}

// IsExpiredAt returns true if the session is expired at t.
func (s *Session) IsExpiredAt(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// SessionStore maps opaque session identifiers to sessions.
// Implementations generate identifiers, stamp ExpiresAt from MaxAge on
// Create, and treat expired sessions as absent.
type SessionStore interface {
	// Create stores session and returns its new identifier.
	Create(ctx context.Context, session *Session) (string, error)

	// Get returns ErrNotFound (wrapped) for unknown or expired identifiers.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session. Deleting an unknown identifier is not an error.
	Delete(ctx context.Context, id string) error

	// MaxAge is the lifetime of newly created sessions.
	MaxAge() time.Duration
}

// Sweeper is implemented by stores that need expired sessions pruned.
type Sweeper interface {
	// DeleteExpired removes expired sessions and returns how many were removed.
	DeleteExpired(ctx context.Context) (int64, error)
}

// GenerateSessionToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is handed to the client; stores key records by the hash.
func GenerateSessionToken() (token, hash string, err error) {
	tokenBytes := make([]byte, SessionTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", SessionTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashSessionToken(token), nil
}

// HashSessionToken computes the SHA256 hash of a session token.
func HashSessionToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
