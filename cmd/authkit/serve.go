// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/authkit/internal/auth"
	"github.com/holomush/authkit/internal/auth/memory"
	mongoauth "github.com/holomush/authkit/internal/auth/mongo"
	pgauth "github.com/holomush/authkit/internal/auth/postgres"
	redisauth "github.com/holomush/authkit/internal/auth/redis"
	"github.com/holomush/authkit/internal/config"
	"github.com/holomush/authkit/internal/logging"
	"github.com/holomush/authkit/internal/mail"
	"github.com/holomush/authkit/internal/observability"
	"github.com/holomush/authkit/internal/web"
	"github.com/holomush/authkit/pkg/errutil"
)

const (
	serviceName     = "authkit"
	shutdownTimeout = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP authentication server",
		Long: `Start the HTTP server exposing signup, login, logout and the current
user, together with the metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, &ServeDeps{
				ConfigLoader: func() (*config.Config, error) { return loadConfig(cmd.Flags()) },
			})
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// resources holds what serve opened and must release.
type resources struct {
	users    auth.UserRepository
	sessions auth.SessionStore
	redisOpt asynq.RedisConnOpt
	closers  []func()
}

func (r *resources) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// openBackends connects the configured user directory and session store.
func openBackends(ctx context.Context, cfg *config.Config, deps *ServeDeps, logger *slog.Logger) (*resources, error) {
	res := &resources{}

	var pool *pgxpool.Pool
	if cfg.UsesPostgres() {
		var err error
		pool, err = deps.PostgresConnector(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, err
		}
		res.closers = append(res.closers, pool.Close)
		logger.Info("connected to database")
	}

	if cfg.UsesRedis() {
		client, err := deps.RedisConnector(ctx, redisauth.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			res.close()
			return nil, err
		}
		res.closers = append(res.closers, func() { _ = client.Close() })
		res.redisOpt = asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
		if cfg.Session.Backend == config.BackendRedis {
			res.sessions = redisauth.NewSessionStore(client, cfg.Session.MaxAge)
		}
		logger.Info("connected to redis", "addr", cfg.Redis.Addr)
	}

	switch cfg.Users.Backend {
	case config.BackendPostgres:
		res.users = pgauth.NewUserRepository(pool)
	case config.BackendMongo:
		client, db, err := deps.MongoConnector(ctx, mongoauth.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			res.close()
			return nil, err
		}
		res.closers = append(res.closers, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		})
		repo := mongoauth.NewUserRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			res.close()
			return nil, err
		}
		res.users = repo
		logger.Info("connected to mongo", "database", cfg.Mongo.Database)
	default:
		res.users = memory.NewUserRepository()
	}

	switch cfg.Session.Backend {
	case config.BackendPostgres:
		res.sessions = pgauth.NewSessionStore(pool, cfg.Session.MaxAge)
	case config.BackendMemory:
		res.sessions = memory.NewSessionStore(cfg.Session.MaxAge)
	}

	return res, nil
}

// newNotifier wires the welcome mail. It returns a nil notifier when mail is
// disabled and a stop function that is always safe to call.
func newNotifier(cfg *config.Config, res *resources, deps *ServeDeps, logger *slog.Logger) (auth.SignupNotifier, func(), error) {
	noop := func() {}
	if !cfg.Mailer.Enabled {
		return nil, noop, nil
	}

	sender, err := deps.SenderFactory(mail.SMTPConfig{
		Host:     cfg.Mailer.Host,
		Port:     cfg.Mailer.Port,
		Username: cfg.Mailer.Username,
		Password: cfg.Mailer.Password,
		From:     cfg.Mailer.From,
		Secure:   cfg.Mailer.Secure,
	})
	if err != nil {
		return nil, noop, err
	}
	renderer, err := mail.NewRenderer()
	if err != nil {
		return nil, noop, err
	}
	mailer, err := mail.NewMailer(renderer, sender, logger)
	if err != nil {
		return nil, noop, err
	}

	if !cfg.Mailer.Queue {
		return mail.NewDirect(mailer), noop, nil
	}

	client := asynq.NewClient(res.redisOpt)
	worker := mail.NewWorker(res.redisOpt, mailer, logger)
	if err := worker.Start(); err != nil {
		_ = client.Close()
		return nil, noop, err
	}
	logger.Info("mail worker started", "queue", mail.QueueName)

	stop := func() {
		worker.Shutdown()
		_ = client.Close()
	}
	return mail.NewQueue(client), stop, nil
}

// runServeWithDeps starts the server with injectable dependencies.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ConfigLoader == nil {
		deps.ConfigLoader = func() (*config.Config, error) { return loadConfig(cmd.Flags()) }
	}
	deps.setDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := deps.ConfigLoader()
	if err != nil {
		return oops.Code("CONFIG_INVALID").Wrap(err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.Setup(serviceName, version, cfg.Log.Format, level, deps.LogWriter)
	slog.SetDefault(logger)

	logger.Info("starting authkit",
		"addr", cfg.HTTP.Addr,
		"session_backend", cfg.Session.Backend,
		"users_backend", cfg.Users.Backend,
	)

	res, err := openBackends(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer res.close()

	hasher, err := auth.NewHasher(cfg.Hasher.Algorithm, cfg.Hasher.BcryptCost)
	if err != nil {
		return err
	}

	notifier, stopNotifier, err := newNotifier(cfg, res, deps, logger)
	if err != nil {
		return err
	}
	defer stopNotifier()

	svcOpts := []auth.ServiceOption{auth.WithLogger(logger)}
	if notifier != nil {
		svcOpts = append(svcOpts, auth.WithNotifier(notifier))
	}
	svc, err := auth.NewAuthService(res.users, res.sessions, hasher, svcOpts...)
	if err != nil {
		return err
	}
	guard, err := auth.NewGuard(res.sessions, res.users)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		httpServer HTTPServer
		obsServer  ObservabilityServer
		metrics    *observability.Metrics
		registerer prometheus.Registerer
	)
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, func() bool {
			return httpServer != nil && httpServer.Ready()
		}, logger)
		metrics = obsServer.Metrics()
		registerer = obsServer.Registry()
	}

	webOpts := []web.Option{web.WithLogger(logger), web.WithMetrics(metrics)}
	if registerer != nil {
		webOpts = append(webOpts, web.WithRegisterer(registerer))
	}
	httpServer, err = deps.HTTPServerFactory(web.Config{
		Addr:           cfg.HTTP.Addr,
		CookieName:     cfg.Session.Cookie,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
		RateLimit:      cfg.HTTP.RateLimit,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, svc, guard, webOpts...)
	if err != nil {
		return err
	}

	httpErrCh, err := httpServer.Start()
	if err != nil {
		return err
	}
	go monitorServerErrors(ctx, cancel, httpErrCh, "http", logger)

	if obsServer != nil {
		obsErrCh, err := obsServer.Start()
		if err != nil {
			stopServer(httpServer, "http", logger)
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
	}

	var wg sync.WaitGroup
	if sweeper, ok := res.sessions.(auth.Sweeper); ok && cfg.Session.SweepInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			auth.RunSweeper(ctx, sweeper, cfg.Session.SweepInterval, logger, metrics.RecordSwept)
		}()
	}

	cmd.Println("authkit started")
	logger.Info("authkit ready", "addr", httpServer.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	stopServer(httpServer, "http", logger)
	if obsServer != nil {
		stopServer(obsServer, "observability", logger)
	}
	cancel()
	wg.Wait()

	logger.Info("shutdown complete")
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

func stopServer(s stopper, name string, logger *slog.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		errutil.LogError(logger, "error stopping server", err, "server", name)
	}
}

// monitorServerErrors cancels ctx when a server reports a serve error.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			logger.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
