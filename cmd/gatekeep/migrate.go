// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/gatekeep/gatekeep/internal/store"
)

// migrator is the subset of *store.Migrator used by the migrate commands.
type migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL) //nolint:wrapcheck // store errors carry codes
}

// NewMigrateCmd creates the migrate command and its subcommands. Bare
// "migrate" applies all pending migrations.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long:  `Apply, roll back or inspect the identities schema migrations.`,
		RunE:  withMigrator(runMigrateUp),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(runMigrateUp),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops the identities table)",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(runMigrateDown),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(runMigrateVersion),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it (repairs a dirty database)",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			if err := m.Force(v); err != nil {
				return oops.With("operation", "force version").Wrap(err)
			}
			cmd.Printf("Forced schema version to %d\n", v)
			return nil
		}),
	})

	return cmd
}

// withMigrator opens a migrator for the configured database, runs fn and
// closes the migrator.
func withMigrator(fn func(cmd *cobra.Command, m migrator, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, _, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("database_url is required")
		}

		m, err := newMigrator(cfg.DatabaseURL)
		if err != nil {
			return oops.With("operation", "open migrator").Wrap(err)
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()

		return fn(cmd, m, args)
	}
}

func runMigrateUp(cmd *cobra.Command, m migrator, _ []string) error {
	pending, err := m.PendingMigrations()
	if err != nil {
		return err //nolint:wrapcheck // store errors carry codes
	}
	if len(pending) == 0 {
		cmd.Println("No pending migrations")
		return nil
	}

	cmd.Printf("Applying %d migration(s)...\n", len(pending))
	if err := m.Up(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}
	cmd.Println("Migrations completed successfully")
	return nil
}

func runMigrateDown(cmd *cobra.Command, m migrator, _ []string) error {
	if err := m.Down(); err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "roll back migrations").Wrap(err)
	}
	cmd.Println("All migrations rolled back")
	return nil
}

func runMigrateVersion(cmd *cobra.Command, m migrator, _ []string) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err //nolint:wrapcheck // store errors carry codes
	}
	pending, err := m.PendingMigrations()
	if err != nil {
		return err //nolint:wrapcheck // store errors carry codes
	}

	state := "clean"
	if dirty {
		state = "dirty"
	}
	cmd.Printf("Version: %d (%s)\n", v, state)
	cmd.Printf("Pending: %d\n", len(pending))
	return nil
}

// parseForceVersion reads a leading integer from s.
func parseForceVersion(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	return v, nil
}
