// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/holomush/authkit/pkg/errutil"
)

// Identity is the authenticated caller attached to a request.
type Identity struct {
	User      *User
	SessionID string
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the Identity attached by WithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(*Identity)
	return id, ok && id != nil
}

// Guard resolves session identifiers to authenticated identities.
// Nothing is cached between calls.
type Guard struct {
	sessions SessionStore
	users    UserRepository
}

// NewGuard creates a Guard.
func NewGuard(sessions SessionStore, users UserRepository) (*Guard, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session store is required")
	}
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	return &Guard{sessions: sessions, users: users}, nil
}

// Authenticate resolves sessionID. A missing identifier, an unknown or
// expired session, and a session whose user no longer exists all fail as
// permission denied. Store and directory outages are internal failures.
func (g *Guard) Authenticate(ctx context.Context, sessionID string) (*Identity, error) {
	if sessionID == "" {
		return nil, errutil.New(errutil.KindPermissionDenied, MsgSessionIDMissing)
	}

	session, err := g.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errutil.New(errutil.KindPermissionDenied, MsgInvalidSession)
		}
		return nil, oops.Code("GUARD_SESSION_LOOKUP_FAILED").Wrap(err)
	}

	user, err := g.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, errutil.New(errutil.KindPermissionDenied, MsgSessionUserAbsent)
		}
		return nil, oops.Code("GUARD_USER_LOOKUP_FAILED").
			With("user_id", session.UserID).
			Wrap(err)
	}

	return &Identity{User: user, SessionID: sessionID}, nil
}
