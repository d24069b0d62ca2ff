// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/authkit/pkg/errutil"
)

// MaxEmailLength matches the users.email column width.
const MaxEmailLength = 128

// User is an account in the user directory.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// PublicUser is the projection of a User that may leave the service.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewUser creates a validated User with a fresh identifier.
// The email is stored as given; lookups are case-sensitive.
func NewUser(email, passwordHash string, createdAt time.Time) (*User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errutil.New(errutil.KindValidation, "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return nil, errutil.New(errutil.KindValidation, "email cannot be longer than %d characters", MaxEmailLength)
	}
	if passwordHash == "" {
		return nil, errutil.New(errutil.KindValidation, "password hash cannot be empty")
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &User{
		ID:           ulid.Make().String(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt.UTC(),
	}, nil
}

// Public returns the client-safe projection of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// UserRepository is the user directory.
type UserRepository interface {
	// GetByID returns ErrNotFound (wrapped) when no user has id.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByEmail returns ErrNotFound (wrapped) when no user has email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create stores a new user. Returns ErrEmailTaken (wrapped) when the
	// email is already registered.
	Create(ctx context.Context, user *User) error

	// Update replaces the stored email and password hash of user.
	Update(ctx context.Context, user *User) error

	// Delete removes a user by ID.
	Delete(ctx context.Context, id string) error
}
