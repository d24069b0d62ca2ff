// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/holomush/authkit/pkg/errutil"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code      errutil.Kind `json:"code"`
	Message   string       `json:"message"`
	Timestamp int64        `json:"timestamp"`
}

// newErrorHandler renders errors as ErrorResponse. Internal failures are
// logged in full and reach the client only as a generic message.
func newErrorHandler(logger *slog.Logger, now func() time.Time) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		kind, msg := resolveError(err, c)
		if kind == errutil.KindInternal {
			req := c.Request()
			errutil.LogErrorContext(req.Context(), logger, "request failed", err,
				"method", req.Method,
				"path", req.URL.Path,
				"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
			)
		}

		status := errutil.HTTPStatus(kind)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, ErrorResponse{
			Code:      kind,
			Message:   msg,
			Timestamp: now().UnixMilli(),
		})
	}
}

func resolveError(err error, c echo.Context) (errutil.Kind, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return resolveHTTPError(he, c)
	}
	kind := errutil.KindOf(err)
	return kind, errutil.PublicMessage(err)
}

// resolveHTTPError maps errors raised by echo itself (routing, binding,
// middleware) onto the kinds.
func resolveHTTPError(he *echo.HTTPError, c echo.Context) (errutil.Kind, string) {
	switch he.Code {
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		req := c.Request()
		return errutil.KindNotFound, fmt.Sprintf("Requested URL (%s %s) not found", req.Method, req.URL.RequestURI())
	case http.StatusTooManyRequests:
		return errutil.KindRateLimited, msgTooManyRequests
	case http.StatusUnauthorized:
		return errutil.KindInvalidCredentials, http.StatusText(he.Code)
	case http.StatusForbidden:
		return errutil.KindPermissionDenied, http.StatusText(he.Code)
	}
	if he.Code >= http.StatusBadRequest && he.Code < http.StatusInternalServerError {
		return errutil.KindValidation, msgInvalidBody
	}
	return errutil.KindInternal, "Internal server error"
}
