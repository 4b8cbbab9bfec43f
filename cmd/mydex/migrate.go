// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package main

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the credential store schema",
		Long:  `Apply, roll back or inspect the embedded credential store migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withMigrator(func(m Migrator) error {
				pending, err := m.PendingMigrations()
				if err != nil {
					return err //nolint:wrapcheck // carries migration codes
				}
				if len(pending) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No pending migrations")
					return nil
				}
				cmd.Printf("Applying %d migration(s)...\n", len(pending))
				if err := m.Up(); err != nil {
					return err //nolint:wrapcheck // carries MIGRATION_UP_FAILED
				}
				return printVersion(cmd, m)
			})
		},
	})

	var yes bool
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back all migrations (drops every account)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return oops.Code("CONFIRMATION_REQUIRED").
					Errorf("rolling back drops all credential data; pass --yes to confirm")
			}
			return c.withMigrator(func(m Migrator) error {
				if err := m.Down(); err != nil {
					return err //nolint:wrapcheck // carries MIGRATION_DOWN_FAILED
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All migrations rolled back")
				return nil
			})
		},
	}
	down.Flags().BoolVar(&yes, "yes", false, "confirm the rollback")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withMigrator(func(m Migrator) error {
				if err := printVersion(cmd, m); err != nil {
					return err
				}
				pending, err := m.PendingMigrations()
				if err != nil {
					return err //nolint:wrapcheck // carries migration codes
				}
				if len(pending) > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "Pending: %s\n", joinVersions(pending))
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it (dirty state recovery)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := parseForceVersion(args[0])
			if err != nil {
				return err
			}
			return c.withMigrator(func(m Migrator) error {
				if err := m.Force(v); err != nil {
					return err //nolint:wrapcheck // carries MIGRATION_FORCE_FAILED
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forced schema version to %d\n", v)
				return nil
			})
		},
	})

	return cmd
}

func (c *cli) withMigrator(fn func(Migrator) error) (err error) {
	if err := c.cfg.RequireDatabase(); err != nil {
		return err //nolint:wrapcheck // carries CONFIG_INVALID
	}
	m, err := c.deps.MigratorFactory(c.cfg.Database.URL)
	if err != nil {
		return oops.With("operation", "create migrator").Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			c.logger.Warn("failed to close migrator", "error", closeErr)
		}
	}()
	return fn(m)
}

func printVersion(cmd *cobra.Command, m Migrator) error {
	version, dirty, err := m.Version()
	if err != nil {
		return err //nolint:wrapcheck // carries MIGRATION_VERSION_FAILED
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Schema version: %d\n", version)
	return nil
}

// parseForceVersion parses a migration version for force.
func parseForceVersion(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(strings.TrimSpace(s), "%d", &v); err != nil {
		return 0, oops.Code("INVALID_VERSION").With("input", s).Wrap(err)
	}
	if v < 0 {
		return 0, oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", v)
	}
	return v, nil
}

func joinVersions(versions []uint) string {
	parts := make([]string, len(versions))
	for i, v := range versions {
		parts[i] = fmt.Sprintf("%06d", v)
	}
	return strings.Join(parts, ", ")
}
