// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package postgres implements the auth user directory and session store on
// PostgreSQL. The schema lives in internal/store/migrations.
package postgres
