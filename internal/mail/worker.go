// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/samber/oops"

	"github.com/holomush/authkit/pkg/errutil"
)

// Worker consumes welcome mail tasks.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	mailer *Mailer
	logger *slog.Logger
}

// NewWorker creates a Worker reading from redis.
func NewWorker(redis asynq.RedisConnOpt, mailer *Mailer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Worker{
		server: asynq.NewServer(redis, asynq.Config{
			Concurrency: workerWorkers,
			Queues:      map[string]int{QueueName: 1},
			Logger:      &asynqLogger{logger: logger.With("component", "mail-worker")},
		}),
		mux:    asynq.NewServeMux(),
		mailer: mailer,
		logger: logger,
	}
	w.mux.HandleFunc(TaskWelcome, w.HandleWelcome)
	return w
}

// Start begins processing in the background.
func (w *Worker) Start() error {
	if err := w.server.Start(w.mux); err != nil {
		return oops.Code("MAIL_WORKER_START_FAILED").Wrap(err)
	}
	return nil
}

// Shutdown stops fetching tasks and waits for in-flight ones.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// HandleWelcome delivers one welcome mail. Malformed payloads are not retried.
func (w *Worker) HandleWelcome(ctx context.Context, task *asynq.Task) error {
	var p WelcomePayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return oops.Code("MAIL_PAYLOAD_INVALID").
			With("task", task.Type()).
			With("decode_error", err.Error()).
			Wrapf(asynq.SkipRetry, "decode welcome payload")
	}
	if p.Email == "" {
		return oops.Code("MAIL_PAYLOAD_INVALID").
			With("task", task.Type()).
			With("user_id", p.UserID).
			Wrapf(asynq.SkipRetry, "welcome payload has no email")
	}

	if _, err := w.mailer.SendWelcome(ctx, p); err != nil {
		errutil.LogErrorContext(ctx, w.logger, "welcome mail delivery failed", err, "user_id", p.UserID)
		return err
	}
	return nil
}

// asynqLogger routes asynq's internal logging to slog.
type asynqLogger struct {
	logger *slog.Logger
}

func (l *asynqLogger) Debug(args ...any) { l.logger.Debug(fmt.Sprint(args...)) }
func (l *asynqLogger) Info(args ...any)  { l.logger.Info(fmt.Sprint(args...)) }
func (l *asynqLogger) Warn(args ...any)  { l.logger.Warn(fmt.Sprint(args...)) }
func (l *asynqLogger) Error(args ...any) { l.logger.Error(fmt.Sprint(args...)) }

// Fatal mirrors asynq's default logger, which exits the process.
func (l *asynqLogger) Fatal(args ...any) {
	l.logger.Error(fmt.Sprint(args...))
	os.Exit(1)
}
