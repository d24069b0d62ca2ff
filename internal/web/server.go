// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package web

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"

	"github.com/holomush/authkit/internal/observability"
)

// Defaults for Config.
const (
	DefaultAddr       = ":3000"
	DefaultCookieName = "auth_session"
	DefaultRateLimit  = 5
)

// Config configures the HTTP surface.
type Config struct {
	Addr        string
	CookieName  string
	CORSOrigins []string
	// RateLimit is the number of signup and login requests allowed per
	// minute per client IP, counted separately for each route.
	RateLimit int
	// TrustedProxies lists the CIDR ranges whose X-Forwarded-For is
	// believed. When empty the client IP is the connection's peer address.
	TrustedProxies []string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.CookieName == "" {
		c.CookieName = DefaultCookieName
	}
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
	if c.RateLimit <= 0 {
		c.RateLimit = DefaultRateLimit
	}
	return c
}

// Server serves the authentication routes.
type Server struct {
	cfg        Config
	echo       *echo.Echo
	logger     *slog.Logger
	metrics    *observability.Metrics
	registerer prometheus.Registerer
	now        func() time.Time
	trusted    []*net.IPNet

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for access lines and internal errors.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records auth attempts on m.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRegisterer enables HTTP request metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Server) { s.registerer = reg }
}

// WithClock overrides the time source for error timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// NewServer builds the router. svc and guard are required.
func NewServer(cfg Config, svc Authenticator, guard SessionGuard, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("auth service is required")
	}
	if guard == nil {
		return nil, oops.Code("WEB_INVALID_CONFIG").Errorf("session guard is required")
	}

	trusted, err := parseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg.withDefaults(),
		logger:  slog.Default(),
		now:     time.Now,
		trusted: trusted,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = s.newRouter(svc, guard)
	return s, nil
}

func (s *Server) newRouter(svc Authenticator, guard SessionGuard) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()
	e.HTTPErrorHandler = newErrorHandler(s.logger, s.now)
	e.IPExtractor = ipExtractor(s.trusted)

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(s.logger))
	e.Use(middleware.Secure())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.cfg.CORSOrigins,
	}))
	if s.registerer != nil {
		e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
			Namespace:                 observability.Namespace,
			Subsystem:                 "http",
			Registerer:                s.registerer,
			DoNotUseRequestPathFor404: true,
		}))
	}

	h := &handlers{svc: svc, cookieName: s.cfg.CookieName, metrics: s.metrics}

	e.GET("/", h.alive)

	api := e.Group("/api/auth")
	api.POST("/signup", h.signup, rateLimit(s.cfg.RateLimit))
	api.POST("/login", h.login, rateLimit(s.cfg.RateLimit))

	guarded := requireSession(guard, s.cfg.CookieName)
	api.GET("/me", h.me, guarded)
	api.POST("/logout", h.logout, guarded)

	return e
}

func parseTrustedProxies(cidrs []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, oops.Code("WEB_INVALID_CONFIG").With("trusted_proxy", cidr).Wrap(err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

// ipExtractor reads X-Forwarded-For only from the trusted ranges. Echo's
// built-in trust of loopback and private networks is switched off.
func ipExtractor(trusted []*net.IPNet) echo.IPExtractor {
	if len(trusted) == 0 {
		return echo.ExtractIPDirect()
	}
	opts := []echo.TrustOption{
		echo.TrustLoopback(false),
		echo.TrustLinkLocal(false),
		echo.TrustPrivateNet(false),
	}
	for _, n := range trusted {
		opts = append(opts, echo.TrustIPRange(n))
	}
	return echo.ExtractIPFromXFFHeader(opts...)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start begins serving on the configured address. The returned channel
// receives a serve error, if any, and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("WEB_ALREADY_RUNNING").Errorf("http server already running")
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("WEB_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	s.listener = listener

	httpSrv := &http.Server{
		Handler:           s.echo,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpServer = httpSrv

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if serveErr := httpSrv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("listening started", "addr", listener.Addr().String())
	return errCh, nil
}

// Ready reports whether the server is accepting connections.
func (s *Server) Ready() bool {
	return s.running.Load()
}

// Stop gracefully shuts down the server. Stopping a stopped server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return oops.Code("WEB_SHUTDOWN_FAILED").Wrap(err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}
