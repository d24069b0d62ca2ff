// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil

import (
	"net/http"

	"github.com/samber/oops"
)

// Kind classifies a failure for callers. It is carried as the oops error code.
type Kind string

// Error kinds surfaced to clients.
const (
	KindPermissionDenied   Kind = "NOT_ENOUGH_PERMISSIONS"
	KindInvalidCredentials Kind = "INVALID_CREDENTIALS"
	KindNotFound           Kind = "NOT_FOUND"
	KindValidation         Kind = "VALIDATION_ERROR"
	KindRateLimited        Kind = "TOO_MANY_REQUESTS"
	KindInternal           Kind = "INTERNAL_SERVER_ERROR"
)

var kindStatus = map[Kind]int{
	KindPermissionDenied:   http.StatusForbidden,
	KindInvalidCredentials: http.StatusUnauthorized,
	KindNotFound:           http.StatusNotFound,
	KindValidation:         http.StatusBadRequest,
	KindRateLimited:        http.StatusTooManyRequests,
	KindInternal:           http.StatusInternalServerError,
}

// New returns an oops error tagged with kind.
func New(kind Kind, format string, args ...any) error {
	return oops.Code(string(kind)).Errorf(format, args...)
}

// KindOf reports the kind of err. Errors without a recognised kind code,
// including plain errors and collaborator failures, are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return KindInternal
	}
	code, ok := oopsErr.Code().(string)
	if !ok {
		return KindInternal
	}
	if _, known := kindStatus[Kind(code)]; known {
		return Kind(code)
	}
	return KindInternal
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to its HTTP status code.
func HTTPStatus(kind Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// PublicMessage returns the message safe to show a client. Internal errors
// never expose their detail.
func PublicMessage(err error) string {
	if KindOf(err) == KindInternal {
		return "Internal server error"
	}
	return err.Error()
}
