// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	mongoauth "github.com/holomush/authkit/internal/auth/mongo"
	redisauth "github.com/holomush/authkit/internal/auth/redis"
	"github.com/holomush/authkit/internal/config"
	"github.com/holomush/authkit/internal/mail"
	"github.com/holomush/authkit/internal/observability"
	"github.com/holomush/authkit/internal/store"
	"github.com/holomush/authkit/internal/web"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ConfigLoader loads the validated configuration.
	// Default: loadConfig with the command's flags
	ConfigLoader func() (*config.Config, error)

	// PostgresConnector opens the database pool.
	// Default: store.Connect
	PostgresConnector func(ctx context.Context, url string, logger *slog.Logger) (*pgxpool.Pool, error)

	// RedisConnector opens the redis client.
	// Default: redisauth.Connect
	RedisConnector func(ctx context.Context, cfg redisauth.Config) (*goredis.Client, error)

	// MongoConnector opens the mongo database.
	// Default: mongoauth.Connect
	MongoConnector func(ctx context.Context, cfg mongoauth.Config) (*mongo.Client, *mongo.Database, error)

	// SenderFactory creates the mail sender.
	// Default: mail.NewSMTPSender
	SenderFactory func(cfg mail.SMTPConfig) (mail.Sender, error)

	// HTTPServerFactory creates the API server.
	// Default: web.NewServer
	HTTPServerFactory func(cfg web.Config, svc web.Authenticator, guard web.SessionGuard, opts ...web.Option) (HTTPServer, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer

	// LogWriter receives log output.
	// Default: os.Stderr
	LogWriter io.Writer
}

// HTTPServer interface wraps the methods used from web.Server.
type HTTPServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Ready() bool
	Addr() string
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() *prometheus.Registry
	Metrics() *observability.Metrics
}

func (d *ServeDeps) setDefaults() {
	if d.PostgresConnector == nil {
		d.PostgresConnector = store.Connect
	}
	if d.RedisConnector == nil {
		d.RedisConnector = redisauth.Connect
	}
	if d.MongoConnector == nil {
		d.MongoConnector = mongoauth.Connect
	}
	if d.SenderFactory == nil {
		d.SenderFactory = func(cfg mail.SMTPConfig) (mail.Sender, error) {
			return mail.NewSMTPSender(cfg)
		}
	}
	if d.HTTPServerFactory == nil {
		d.HTTPServerFactory = func(cfg web.Config, svc web.Authenticator, guard web.SessionGuard, opts ...web.Option) (HTTPServer, error) {
			return web.NewServer(cfg, svc, guard, opts...)
		}
	}
	if d.ObservabilityServerFactory == nil {
		d.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker, logger)
		}
	}
}
