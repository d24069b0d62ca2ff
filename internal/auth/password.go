// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "unicode/utf8"

// Password policy bounds, inclusive, counted in characters.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 64
)

// IsPasswordStrong reports whether password satisfies the password policy.
// The policy is length only; extend here to add character class rules.
func IsPasswordStrong(password string) bool {
	n := utf8.RuneCountInString(password)
	return n >= MinPasswordLength && n <= MaxPasswordLength
}
