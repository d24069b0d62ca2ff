// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/authkit/internal/store"
	"github.com/holomush/authkit/pkg/errutil"
)

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "negative parses", input: "-1", wantVersion: -1},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
		{name: "trailing chars are ignored", input: "3abc", wantVersion: 3},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "empty string returns error", input: "", wantErr: true},
		{name: "whitespace only returns error", input: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				assert.Equal(t, 0, version)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}

func TestGetDatabaseURL(t *testing.T) {
	tests := []struct {
		name    string
		envURL  string
		flagURL string
		wantURL string
		wantErr bool
	}{
		{name: "missing", wantErr: true},
		{name: "from DATABASE_URL", envURL: "postgres://env/db", wantURL: "postgres://env/db"},
		{name: "flag wins", envURL: "postgres://env/db", flagURL: "postgres://flag/db", wantURL: "postgres://flag/db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("XDG_CONFIG_HOME", t.TempDir())
			t.Setenv("DATABASE_URL", tt.envURL)
			t.Setenv("AUTHKIT_DATABASE__URL", "")
			configFile = ""

			cmd := NewMigrateCmd()
			if tt.flagURL != "" {
				require.NoError(t, cmd.PersistentFlags().Set("database-url", tt.flagURL))
			}

			url, err := getDatabaseURL(cmd.PersistentFlags())

			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
				assert.Empty(t, url)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, url)
		})
	}
}

type fakeMigrator struct {
	calls   []string
	steps   []int
	forced  []int
	version uint
	dirty   bool
	status  store.Status
	err     error
	closed  bool
}

func (f *fakeMigrator) Up() error   { f.calls = append(f.calls, "up"); return f.err }
func (f *fakeMigrator) Down() error { f.calls = append(f.calls, "down"); return f.err }
func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = append(f.steps, n)
	return f.err
}
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, f.err }
func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.forced = append(f.forced, v)
	return f.err
}
func (f *fakeMigrator) Status() (store.Status, error) { return f.status, f.err }
func (f *fakeMigrator) Close() error                  { f.closed = true; return nil }

func runMigrate(t *testing.T, m *fakeMigrator, args ...string) (string, error) {
	t.Helper()
	cmd := newMigrateCmd(&MigrateDeps{
		DatabaseURLGetter: func() (string, error) { return "postgres://test/db", nil },
		MigratorFactory: func(url string) (Migrator, error) {
			assert.Equal(t, "postgres://test/db", url)
			return m, nil
		},
	})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	err := cmd.Execute()
	return buf.String(), err
}

func TestMigrateCommands(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		migrator   *fakeMigrator
		wantCalls  []string
		wantOutput string
	}{
		{"up", []string{"up"}, &fakeMigrator{}, []string{"up"}, "Migrations completed successfully"},
		{"down one step", []string{"down"}, &fakeMigrator{}, []string{"steps"}, "Rolled back one migration"},
		{"down all", []string{"down", "--all"}, &fakeMigrator{}, []string{"down"}, "All migrations rolled back"},
		{"force", []string{"force", "1"}, &fakeMigrator{}, []string{"force"}, "Forced schema version 1"},
		{"version", []string{"version"}, &fakeMigrator{version: 2}, nil, "2"},
		{"dirty version", []string{"version"}, &fakeMigrator{version: 1, dirty: true}, nil, "1 (dirty)"},
		{
			"status",
			[]string{"status"},
			&fakeMigrator{status: store.Status{
				Version: 1,
				Applied: []store.Migration{{Version: 1, Name: "000001_users"}},
				Pending: []store.Migration{{Version: 2, Name: "000002_sessions"}},
			}},
			nil,
			"Current version: 1\n  [x] 000001_users\n  [ ] 000002_sessions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runMigrate(t, tt.migrator, tt.args...)

			require.NoError(t, err)
			assert.Equal(t, tt.wantCalls, tt.migrator.calls)
			assert.Contains(t, out, tt.wantOutput)
			assert.True(t, tt.migrator.closed)
		})
	}
}

func TestMigrateCommands_Errors(t *testing.T) {
	t.Run("down step is -1", func(t *testing.T) {
		m := &fakeMigrator{}
		_, err := runMigrate(t, m, "down")
		require.NoError(t, err)
		assert.Equal(t, []int{-1}, m.steps)
	})

	t.Run("migrator failure is returned", func(t *testing.T) {
		m := &fakeMigrator{err: errors.New("boom")}
		_, err := runMigrate(t, m, "up")
		require.Error(t, err)
		assert.True(t, m.closed)
	})

	t.Run("bad force version", func(t *testing.T) {
		m := &fakeMigrator{}
		_, err := runMigrate(t, m, "force", "abc")
		errutil.AssertErrorCode(t, err, "INVALID_VERSION")
		assert.Empty(t, m.calls)
	})

	t.Run("factory failure", func(t *testing.T) {
		cmd := newMigrateCmd(&MigrateDeps{
			DatabaseURLGetter: func() (string, error) { return "postgres://test/db", nil },
			MigratorFactory:   func(string) (Migrator, error) { return nil, errors.New("no route to host") },
		})
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"up"})
		err := cmd.Execute()
		errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
	})

	t.Run("missing url", func(t *testing.T) {
		t.Setenv("XDG_CONFIG_HOME", t.TempDir())
		t.Setenv("DATABASE_URL", "")
		t.Setenv("AUTHKIT_DATABASE__URL", "")
		configFile = filepath.Join(t.TempDir(), "absent.yaml")
		t.Cleanup(func() { configFile = "" })

		cmd := NewMigrateCmd()
		cmd.SetOut(new(bytes.Buffer))
		cmd.SetErr(new(bytes.Buffer))
		cmd.SetArgs([]string{"up"})
		require.Error(t, cmd.Execute())
	})
}
