// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/holomush/authkit/internal/auth"
	"github.com/holomush/authkit/internal/observability"
	"github.com/holomush/authkit/pkg/errutil"
)

// UnknownUserAgent is recorded when a login request has no User-Agent.
const UnknownUserAgent = "n/a"

// Operation labels for the auth attempts metric.
const (
	opSignup = "signup"
	opLogin  = "login"
	opLogout = "logout"
)

// Authenticator is the subset of auth.Service the routes need.
type Authenticator interface {
	Signup(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, req auth.LoginRequest) (string, error)
	Logout(ctx context.Context, sessionID string) error
	SessionMaxAge() time.Duration
}

type credentialsRequest struct {
	Email    string `json:"email" validate:"required,email,max=128"`
	Password string `json:"password"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type loginResponse struct {
	SessionID string `json:"sessionId"`
}

type aliveResponse struct {
	Alive bool `json:"alive"`
}

type handlers struct {
	svc        Authenticator
	cookieName string
	metrics    *observability.Metrics
}

func (h *handlers) alive(c echo.Context) error {
	return c.JSON(http.StatusOK, aliveResponse{Alive: true})
}

func (h *handlers) signup(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}

	_, err = h.svc.Signup(c.Request().Context(), req.Email, req.Password)
	h.record(opSignup, err)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

func (h *handlers) login(c echo.Context) error {
	req, err := bindCredentials(c)
	if err != nil {
		return err
	}

	userAgent := c.Request().UserAgent()
	if userAgent == "" {
		userAgent = UnknownUserAgent
	}

	sessionID, err := h.svc.Login(c.Request().Context(), auth.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		UserAgent: userAgent,
		IPAddress: c.RealIP(),
	})
	h.record(opLogin, err)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     h.cookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(h.svc.SessionMaxAge().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, loginResponse{SessionID: sessionID})
}

func (h *handlers) me(c echo.Context) error {
	identity, err := identityOf(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, identity.User.Public())
}

func (h *handlers) logout(c echo.Context) error {
	identity, err := identityOf(c)
	if err != nil {
		return err
	}

	err = h.svc.Logout(c.Request().Context(), identity.SessionID)
	h.record(opLogout, err)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     h.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return c.JSON(http.StatusOK, okResponse{OK: true})
}

func (h *handlers) record(operation string, err error) {
	switch {
	case err == nil:
		h.metrics.RecordAuthAttempt(operation, observability.ResultSuccess)
	case errutil.KindOf(err) == errutil.KindInternal:
		h.metrics.RecordAuthAttempt(operation, observability.ResultError)
	default:
		h.metrics.RecordAuthAttempt(operation, observability.ResultFailure)
	}
}

func bindCredentials(c echo.Context) (*credentialsRequest, error) {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return nil, errutil.New(errutil.KindValidation, msgInvalidBody)
	}
	if err := c.Validate(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// identityOf returns the identity attached by requireSession.
func identityOf(c echo.Context) (*auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return nil, errutil.New(errutil.KindPermissionDenied, auth.MsgSessionIDMissing)
	}
	return identity, nil
}
