// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/authkit/internal/config"
	"github.com/holomush/authkit/internal/store"
)

// Migrator wraps the methods used from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Status() (store.Status, error)
	Close() error
}

// MigrateDeps contains injectable dependencies for the migrate commands.
type MigrateDeps struct {
	// DatabaseURLGetter returns the database URL.
	// Default: getDatabaseURL with the command's flags
	DatabaseURLGetter func() (string, error)

	// MigratorFactory opens a migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(url string) (Migrator, error)
}

func (d *MigrateDeps) setDefaults(flags *pflag.FlagSet) {
	if d.DatabaseURLGetter == nil {
		d.DatabaseURLGetter = func() (string, error) { return getDatabaseURL(flags) }
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(url string) (Migrator, error) { return store.NewMigrator(url) }
	}
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	return newMigrateCmd(nil)
}

func newMigrateCmd(deps *MigrateDeps) *cobra.Command {
	if deps == nil {
		deps = &MigrateDeps{}
	}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
		Long: `Apply, roll back and inspect the embedded PostgreSQL schema used by the
postgres user directory and session store.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL connection URL (default: database.url or DATABASE_URL)")

	var all bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		Long:  `Roll back the most recent migration, or every migration with --all.`,
		Args:  cobra.NoArgs,
		RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, _ []string) error {
			if all {
				if err := m.Down(); err != nil {
					return err
				}
				cmd.Println("All migrations rolled back")
				return nil
			}
			if err := m.Steps(-1); err != nil {
				return err
			}
			cmd.Println("Rolled back one migration")
			return nil
		}),
	}
	down.Flags().BoolVar(&all, "all", false, "roll back every migration (drops all auth data)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, _ []string) error {
				cmd.Println("Running migrations...")
				if err := m.Up(); err != nil {
					return err
				}
				cmd.Println("Migrations completed successfully")
				return nil
			}),
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, _ []string) error {
				st, err := m.Status()
				if err != nil {
					return err
				}
				cmd.Println(formatStatus(st))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the current schema version",
			Args:  cobra.NoArgs,
			RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, _ []string) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				if dirty {
					cmd.Printf("%d (dirty)\n", version)
					return nil
				}
				cmd.Println(version)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Mark a version as applied without running migrations",
			Long: `Record VERSION as the current schema version without running any
migration. Use it to recover from a dirty database after fixing it by hand.`,
			Args: cobra.ExactArgs(1),
			RunE: withMigrator(deps, func(cmd *cobra.Command, m Migrator, args []string) error {
				version, err := parseForceVersion(args[0])
				if err != nil {
					return err
				}
				if err := m.Force(version); err != nil {
					return err
				}
				cmd.Printf("Forced schema version %d\n", version)
				return nil
			}),
		},
	)

	return cmd
}

// withMigrator opens a migrator for the duration of fn.
func withMigrator(deps *MigrateDeps, fn func(cmd *cobra.Command, m Migrator, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		deps.setDefaults(cmd.Flags())

		url, err := deps.DatabaseURLGetter()
		if err != nil {
			return err
		}
		m, err := deps.MigratorFactory(url)
		if err != nil {
			return oops.Code("DB_CONNECT_FAILED").With("operation", "open migrator").Wrap(err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil {
				cmd.PrintErrf("warning: closing migrator: %v\n", closeErr)
			}
		}()
		return fn(cmd, m, args)
	}
}

// getDatabaseURL resolves the database URL from flags and configuration.
func getDatabaseURL(flags *pflag.FlagSet) (string, error) {
	cfg, err := config.Load(config.Options{File: configFile, Flags: flags})
	if err != nil {
		return "", err
	}
	if cfg.Database.URL == "" {
		return "", oops.Code("CONFIG_INVALID").Errorf("database URL is required (--database-url, database.url or DATABASE_URL)")
	}
	return cfg.Database.URL, nil
}

// parseForceVersion reads a migration version argument.
func parseForceVersion(s string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &version); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return version, nil
}

func formatStatus(st store.Status) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current version: %d", st.Version)
	if st.Dirty {
		b.WriteString(" (dirty)")
	}
	for _, m := range st.Applied {
		fmt.Fprintf(&b, "\n  [x] %s", m.Name)
	}
	for _, m := range st.Pending {
		fmt.Fprintf(&b, "\n  [ ] %s", m.Name)
	}
	return b.String()
}
