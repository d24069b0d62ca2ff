// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/authkit/internal/auth"
	pgauth "github.com/holomush/authkit/internal/auth/postgres"
	"github.com/holomush/authkit/internal/store"
)

// SessionsDeps contains injectable dependencies for the sessions commands.
type SessionsDeps struct {
	// DatabaseURLGetter returns the database URL.
	// Default: getDatabaseURL with the command's flags
	DatabaseURLGetter func() (string, error)

	// SweeperFactory opens the sweeper and returns a release function.
	// Default: a postgres session store over store.Connect
	SweeperFactory func(ctx context.Context, url string) (auth.Sweeper, func(), error)
}

func (d *SessionsDeps) setDefaults(flags *pflag.FlagSet) {
	if d.DatabaseURLGetter == nil {
		d.DatabaseURLGetter = func() (string, error) { return getDatabaseURL(flags) }
	}
	if d.SweeperFactory == nil {
		d.SweeperFactory = func(ctx context.Context, url string) (auth.Sweeper, func(), error) {
			pool, err := store.Connect(ctx, url, slog.Default())
			if err != nil {
				return nil, nil, err
			}
			return pgauth.NewSessionStore(pool, 0), pool.Close, nil
		}
	}
}

// NewSessionsCmd creates the sessions command group.
func NewSessionsCmd() *cobra.Command {
	return newSessionsCmd(nil)
}

func newSessionsCmd(deps *SessionsDeps) *cobra.Command {
	if deps == nil {
		deps = &SessionsDeps{}
	}

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Maintain stored sessions",
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (default: database.url or DATABASE_URL)")

	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete expired sessions once",
		Long: `Delete every expired session from the PostgreSQL session store. The
memory store lives inside the server process and redis expires keys itself,
so only the postgres backend needs sweeping from outside.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps.setDefaults(cmd.Flags())

			url, err := deps.DatabaseURLGetter()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			sweeper, release, err := deps.SweeperFactory(ctx, url)
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").With("operation", "open session store").Wrap(err)
			}
			defer release()

			n, err := sweeper.DeleteExpired(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Removed %d expired sessions\n", n)
			return nil
		},
	})

	return cmd
}
