// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/holomush/authkit/internal/auth"
	"github.com/holomush/authkit/pkg/errutil"
)

const (
	msgTooManyRequests = "Too many requests, please try again later"
	msgInvalidBody     = "Request body is invalid"
)

// SessionGuard resolves a session identifier to an identity.
type SessionGuard interface {
	Authenticate(ctx context.Context, sessionID string) (*auth.Identity, error)
}

// requireSession rejects requests without a live session cookie and
// attaches the resolved identity to the request context.
func requireSession(guard SessionGuard, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var sessionID string
			if cookie, err := c.Cookie(cookieName); err == nil {
				sessionID = cookie.Value
			}

			req := c.Request()
			identity, err := guard.Authenticate(req.Context(), sessionID)
			if err != nil {
				return err
			}

			c.SetRequest(req.WithContext(auth.WithIdentity(req.Context(), identity)))
			return next(c)
		}
	}
}

// rateLimit allows perMinute requests per client IP with a full minute of
// burst, like a fixed one-minute window.
func rateLimit(perMinute int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(perMinute) / time.Minute.Seconds()),
		Burst:     perMinute,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(_ echo.Context, _ error) error {
			return errutil.New(errutil.KindInternal, "rate limiter identifier unavailable")
		},
		DenyHandler: func(_ echo.Context, _ string, _ error) error {
			return errutil.New(errutil.KindRateLimited, msgTooManyRequests)
		},
	})
}

// requestLogger writes one access line per request to logger.
func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURI:       true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
			}
			level := slog.LevelInfo
			if v.Status >= http.StatusInternalServerError && v.Error != nil {
				level = slog.LevelError
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "http request", attrs...)
			return nil
		},
	})
}
