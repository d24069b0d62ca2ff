// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/authkit/pkg/errutil"
)

// SignupNotifier is told about every successful signup.
type SignupNotifier interface {
	UserSignedUp(ctx context.Context, user PublicUser) error
}

// LoginRequest carries the credentials and the origin of a login attempt.
type LoginRequest struct {
	Email     string
	Password  string
	UserAgent string
	IPAddress string
}

// Service provides signup, login and logout.
type Service struct {
	users    UserRepository
	sessions SessionStore
	hasher   PasswordHasher
	notifier SignupNotifier
	logger   *slog.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger. A nil logger is ignored.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNotifier registers a SignupNotifier.
func WithNotifier(n SignupNotifier) ServiceOption {
	return func(s *Service) { s.notifier = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewAuthService creates a new Service.
func NewAuthService(users UserRepository, sessions SessionStore, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}

	s := &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Signup registers a new user.
// An existing email and a weak password both fail as invalid credentials.
func (s *Service) Signup(ctx context.Context, email, password string) (*User, error) {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, errutil.New(errutil.KindInvalidCredentials, MsgUserExists)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if !IsPasswordStrong(password) {
		return nil, errutil.New(errutil.KindInvalidCredentials, MsgWeakPassword)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, hash, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		// Lost a race with a concurrent signup for the same email.
		if errors.Is(err, ErrEmailTaken) {
			return nil, errutil.New(errutil.KindInvalidCredentials, MsgUserExists)
		}
		return nil, oops.Code("AUTH_SIGNUP_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "new user signed up", "user_id", user.ID, "email", user.Email)

	if s.notifier != nil {
		if err := s.notifier.UserSignedUp(ctx, user.Public()); err != nil {
			errutil.LogErrorContext(ctx, s.logger, "signup notification failed", err, "user_id", user.ID)
		}
	}

	return user, nil
}

// Login verifies credentials and opens a session, returning its identifier.
// Unknown emails and wrong passwords fail identically, and a hash is always
// verified so response time does not reveal which case occurred.
func (s *Service) Login(ctx context.Context, req LoginRequest) (string, error) {
	user, lookupErr := s.users.GetByEmail(ctx, req.Email)

	var targetHash string
	userExists := true
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return "", oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "get user by email").
				Wrap(lookupErr)
		}
		targetHash = s.timingHash()
		userExists = false
	} else {
		targetHash = user.PasswordHash
	}

	valid := s.hasher.Verify(req.Password, targetHash)
	if !userExists || !valid {
		return "", errutil.New(errutil.KindInvalidCredentials, MsgInvalidLogin)
	}

	if s.hasher.NeedsUpgrade(user.PasswordHash) {
		s.upgradeHash(ctx, user, req.Password)
	}

	session, err := NewSession(user.ID, req.UserAgent, req.IPAddress, s.now())
	if err != nil {
		return "", oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "create session").
			Wrap(err)
	}

	sessionID, err := s.sessions.Create(ctx, session)
	if err != nil {
		return "", oops.Code("AUTH_SESSION_CREATE_FAILED").
			With("operation", "persist session").
			With("user_id", user.ID).
			Wrap(err)
	}

	s.logger.InfoContext(ctx, "user logged in",
		"user_id", user.ID,
		"email", user.Email,
		"ip_address", req.IPAddress,
	)

	return sessionID, nil
}

// Logout deletes the session sessionID. Unknown sessions fail as invalid
// credentials and leave the store untouched.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errutil.New(errutil.KindInvalidCredentials, MsgSessionNotFound)
	}

	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errutil.New(errutil.KindInvalidCredentials, MsgSessionNotFound)
		}
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return oops.Code("AUTH_LOGOUT_FAILED").
			With("operation", "delete session").
			With("user_id", session.UserID).
			Wrap(err)
	}

	s.logger.DebugContext(ctx, "user logged out", "user_id", session.UserID)
	return nil
}

// SessionMaxAge is the lifetime of sessions created by Login.
func (s *Service) SessionMaxAge() time.Duration {
	return s.sessions.MaxAge()
}

// upgradeHash re-hashes password with the current parameters. Failures are
// logged; the login still succeeds.
func (s *Service) upgradeHash(ctx context.Context, user *User, password string) {
	newHash, err := s.hasher.Hash(password)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "password hash upgrade failed", err, "user_id", user.ID)
		return
	}
	upgraded := *user
	upgraded.PasswordHash = newHash
	if err := s.users.Update(ctx, &upgraded); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "failed to store upgraded password hash", err, "user_id", user.ID)
		return
	}
	user.PasswordHash = newHash
}

// timingHash is verified against when the email is unknown. It is produced by
// the configured hasher so its cost matches real hashes.
func (s *Service) timingHash() string {
	s.dummyOnce.Do(func() {
		token, _, err := GenerateSessionToken()
		if err != nil {
			token = "authkit-timing-equalizer"
		}
		hash, err := s.hasher.Hash(token)
		if err != nil {
			errutil.LogError(s.logger, "failed to prepare timing hash", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}
