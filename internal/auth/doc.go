// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides session-based authentication for authkit.
//
// # Domain Types
//
// Domain types should be created using their constructors:
//   - NewUser - creates a User with a fresh ULID and a validated email and password hash
//   - NewSession - creates a Session bound to a user with its login context
//
// Direct struct initialization bypasses validation and may create invalid state.
// Repository and store implementations receive pre-validated types.
//
// # Collaborators
//
//   - UserRepository - the user directory (postgres, mongo, memory)
//   - SessionStore - opaque session identifiers to session records (memory, redis, postgres)
//   - PasswordHasher - argon2id or bcrypt
//
// # Services
//
//   - Service - signup, login, logout
//   - Guard - resolves a session identifier to an authenticated Identity
//
// Every failure a client may see carries an errutil.Kind as its oops code.
// Collaborator failures keep their own codes and are reported as internal.
package auth
