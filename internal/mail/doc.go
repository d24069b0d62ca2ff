// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package mail renders and delivers transactional email. Welcome mail is
// sent either synchronously (Direct) or through an asynq queue (Queue and
// Worker).
package mail
