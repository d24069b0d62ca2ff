// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/authkit/internal/auth"
)

var _ auth.UserRepository = (*UserRepository)(nil)

// UserRepository implements auth.UserRepository in memory. Emails are unique
// and compared exactly.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]auth.User
	byEmail map[string]string
}

// NewUserRepository creates an empty UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]auth.User),
		byEmail: make(map[string]string),
	}
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	user := r.byID[id]
	return &user, nil
}

// Create stores a new user.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return oops.Code("USER_EMAIL_TAKEN").Wrap(auth.ErrEmailTaken)
	}
	if _, exists := r.byID[user.ID]; exists {
		return oops.Code("USER_CREATE_FAILED").With("id", user.ID).Errorf("user id already exists")
	}
	r.byID[user.ID] = *user
	r.byEmail[user.Email] = user.ID
	return nil
}

// Update replaces the stored email and password hash of user.
func (r *UserRepository) Update(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[user.ID]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", user.ID).Wrap(auth.ErrNotFound)
	}
	if existing.Email != user.Email {
		if _, taken := r.byEmail[user.Email]; taken {
			return oops.Code("USER_EMAIL_TAKEN").Wrap(auth.ErrEmailTaken)
		}
		delete(r.byEmail, existing.Email)
		r.byEmail[user.Email] = user.ID
	}
	existing.Email = user.Email
	existing.PasswordHash = user.PasswordHash
	r.byID[user.ID] = existing
	return nil
}

// Delete removes a user by ID.
func (r *UserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	delete(r.byID, id)
	delete(r.byEmail, user.Email)
	return nil
}
