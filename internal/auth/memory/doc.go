// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides process-local implementations of the auth stores,
// for single-instance deployments and tests.
package memory
