// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by a UserRepository when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// Client-facing messages. Login failures and duplicate signups deliberately
// share the invalid-credentials kind.
const (
	MsgInvalidLogin      = "Invalid email or password"
	MsgUserExists        = "User with this email already exists"
	MsgWeakPassword      = "Password is not strong enough"
	MsgSessionNotFound   = "Session not found"
	MsgSessionIDMissing  = "Session ID is missing"
	MsgInvalidSession    = "Invalid auth session"
	MsgSessionUserAbsent = "User not found"
)
