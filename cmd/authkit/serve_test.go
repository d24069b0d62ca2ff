// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/holomush/authkit/internal/config"
	"github.com/holomush/authkit/internal/mail"
	"github.com/holomush/authkit/internal/web"
	"github.com/holomush/authkit/pkg/errutil"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := config.Load(config.Options{
		EnvFile: filepath.Join(t.TempDir(), "missing.env"),
		Environ: func() []string { return nil },
	})
	require.NoError(t, err)

	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Metrics.Addr = ""
	cfg.Users.Backend = config.BackendMemory
	cfg.Session.Backend = config.BackendMemory
	cfg.Hasher.Algorithm = config.HasherBcrypt
	cfg.Hasher.BcryptCost = bcrypt.MinCost
	require.NoError(t, cfg.Validate())
	return cfg
}

// startedServer reports the HTTP server once it is listening.
type startedServer struct {
	*web.Server
	started chan<- string
}

func (s *startedServer) Start() (<-chan error, error) {
	errCh, err := s.Server.Start()
	if err == nil {
		s.started <- s.Server.Addr()
	}
	return errCh, err
}

type recordingSender struct {
	mu   sync.Mutex
	sent []mail.Message
}

func (r *recordingSender) Send(_ context.Context, msg mail.Message) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return "msg-1", nil
}

func (r *recordingSender) messages() []mail.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]mail.Message(nil), r.sent...)
}

type serveRun struct {
	addr    string
	cancel  context.CancelFunc
	done    chan error
	stopped bool
}

func startServe(t *testing.T, cfg *config.Config, deps *ServeDeps) *serveRun {
	t.Helper()

	started := make(chan string, 1)
	deps.ConfigLoader = func() (*config.Config, error) { return cfg, nil }
	deps.LogWriter = io.Discard
	deps.HTTPServerFactory = func(c web.Config, svc web.Authenticator, guard web.SessionGuard, opts ...web.Option) (HTTPServer, error) {
		s, err := web.NewServer(c, svc, guard, opts...)
		if err != nil {
			return nil, err
		}
		return &startedServer{Server: s, started: started}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := &cobra.Command{}
	cmd.SetOut(io.Discard)

	run := &serveRun{cancel: cancel, done: make(chan error, 1)}
	go func() { run.done <- runServeWithDeps(ctx, cmd, deps) }()

	select {
	case run.addr = <-started:
	case err := <-run.done:
		cancel()
		t.Fatalf("serve exited before listening: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("timed out waiting for server to start")
	}

	t.Cleanup(func() {
		defer slog.SetDefault(slog.New(slog.DiscardHandler))
		cancel()
		if run.stopped {
			return
		}
		select {
		case <-run.done:
		case <-time.After(10 * time.Second):
			t.Error("serve did not shut down")
		}
	})
	return run
}

func (r *serveRun) stop(t *testing.T) {
	t.Helper()
	r.cancel()
	r.stopped = true
	select {
	case err := <-r.done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func postJSON(t *testing.T, client *http.Client, url, body string) *http.Response {
	t.Helper()
	resp, err := client.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestServe_MemoryBackends(t *testing.T) {
	cfg := memoryConfig(t)
	run := startServe(t, cfg, &ServeDeps{})
	base := "http://" + run.addr

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar, Timeout: 5 * time.Second}

	creds := `{"email":"ada@example.com","password":"correct-horse-1"}`

	resp := postJSON(t, client, base+"/api/auth/signup", creds)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = postJSON(t, client, base+"/api/auth/login", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login struct {
		SessionID string `json:"sessionId"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	assert.NotEmpty(t, login.SessionID)

	me, err := client.Get(base + "/api/auth/me")
	require.NoError(t, err)
	defer func() { _ = me.Body.Close() }()
	assert.Equal(t, http.StatusOK, me.StatusCode)
	body, err := io.ReadAll(me.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ada@example.com")
	assert.NotContains(t, string(body), "password")

	run.stop(t)
}

func TestServe_SendsWelcomeMail(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Mailer.Enabled = true
	cfg.Mailer.Host = "smtp.example.com"
	cfg.Mailer.From = "noreply@example.com"
	require.NoError(t, cfg.Validate())

	sender := &recordingSender{}
	run := startServe(t, cfg, &ServeDeps{
		SenderFactory: func(c mail.SMTPConfig) (mail.Sender, error) {
			assert.Equal(t, "smtp.example.com", c.Host)
			return sender, nil
		},
	})

	client := &http.Client{Timeout: 5 * time.Second}
	resp := postJSON(t, client, "http://"+run.addr+"/api/auth/signup", `{"email":"grace@example.com","password":"correct-horse-1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "grace@example.com", msgs[0].To)
	assert.Equal(t, mail.WelcomeSubject, msgs[0].Subject)

	run.stop(t)
}

func TestServe_ConfigLoaderError(t *testing.T) {
	err := runServeWithDeps(context.Background(), &cobra.Command{}, &ServeDeps{
		ConfigLoader: func() (*config.Config, error) { return nil, errors.New("bad yaml") },
		LogWriter:    io.Discard,
	})

	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
}

func TestServe_DatabaseConnectError(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Users.Backend = config.BackendPostgres
	cfg.Database.URL = "postgres://authkit@127.0.0.1:1/authkit"
	require.NoError(t, cfg.Validate())
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.DiscardHandler)) })

	var gotURL string
	err := runServeWithDeps(context.Background(), &cobra.Command{}, &ServeDeps{
		ConfigLoader: func() (*config.Config, error) { return cfg, nil },
		PostgresConnector: func(_ context.Context, url string, _ *slog.Logger) (*pgxpool.Pool, error) {
			gotURL = url
			return nil, oops.Code("DB_CONNECT_FAILED").Errorf("connection refused")
		},
		LogWriter: io.Discard,
	})

	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
	assert.Equal(t, cfg.Database.URL, gotURL)
}

func TestServe_ListenError(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.HTTP.Addr = "127.0.0.1:-1"
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.DiscardHandler)) })

	out := new(bytes.Buffer)
	cmd := &cobra.Command{}
	cmd.SetOut(out)
	err := runServeWithDeps(context.Background(), cmd, &ServeDeps{
		ConfigLoader: func() (*config.Config, error) { return cfg, nil },
		LogWriter:    io.Discard,
	})

	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "WEB_LISTEN_FAILED")
	assert.NotContains(t, out.String(), "authkit started")
}

func TestMonitorServerErrors(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	t.Run("cancels on error", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error, 1)
		errCh <- errors.New("listener closed")

		monitorServerErrors(ctx, cancel, errCh, "http", logger)

		assert.Error(t, ctx.Err())
	})

	t.Run("closed channel leaves context alone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		errCh := make(chan error)
		close(errCh)

		monitorServerErrors(ctx, cancel, errCh, "http", logger)

		assert.NoError(t, ctx.Err())
	})

	t.Run("returns when context is done", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		monitorServerErrors(ctx, cancel, make(chan error), "http", logger)
	})
}
