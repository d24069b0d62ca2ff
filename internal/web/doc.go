// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package web exposes the authentication service over HTTP using echo.
//
// Routes:
//
//	GET  /                 liveness body {"alive": true}
//	POST /api/auth/signup  create an account (rate limited)
//	POST /api/auth/login   open a session and set the session cookie (rate limited)
//	GET  /api/auth/me      the signed-in user (session required)
//	POST /api/auth/logout  close the session and clear the cookie (session required)
//
// Every failure is rendered as {"code", "message", "timestamp"}.
package web
