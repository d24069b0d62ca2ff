// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/holomush/authkit/internal/config"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the authkit CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authkit",
		Short: "authkit - session-based authentication service",
		Long: `authkit serves email and password signup, login and logout over HTTP,
backed by server-side sessions delivered in an HTTP-only cookie.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: $XDG_CONFIG_HOME/authkit/config.yaml)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewSessionsCmd())

	return cmd
}

// loadConfig loads and validates configuration, applying flags last.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(config.Options{File: configFile, Flags: flags})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
