// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/mydex/mydex/internal/access"
	"github.com/mydex/mydex/internal/auth"
	"github.com/mydex/mydex/internal/compute"
	"github.com/mydex/mydex/internal/config"
	"github.com/mydex/mydex/internal/logging"
	"github.com/mydex/mydex/internal/observability"
)

// cli carries state shared by subcommands after the root pre-run.
type cli struct {
	deps   Deps
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd creates the root command for the mydex CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmdWithDeps(Deps{})
}

func newRootCmdWithDeps(deps Deps) *cobra.Command {
	c := &cli{deps: deps.withDefaults()}

	cmd := &cobra.Command{
		Use:   "mydex",
		Short: "mydex - account authentication and authorization tools",
		Long: `mydex manages the credential store behind the Pokédex site:
schema migrations, password hashing, login checks and permission lookups.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
	}

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newMigrateCmd(c))
	cmd.AddCommand(newHashPasswordCmd(c))
	cmd.AddCommand(newCheckLoginCmd(c))
	cmd.AddCommand(newPermissionsCmd(c))
	cmd.AddCommand(newServeCmd(c))

	return cmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return oops.With("operation", "load configuration").Wrap(err)
	}
	c.cfg = cfg
	c.logger = logging.SetDefault(logging.Options{
		Service: "mydex",
		Version: version,
		Format:  cfg.Log.Format,
		Level:   cfg.LogLevel(),
		Writer:  cmd.ErrOrStderr(),
	})
	c.logger.Debug("configuration loaded", "config", cfg)
	return nil
}

// services is the wired application: store, verification pool and the
// authentication and authorization services on top of them.
type services struct {
	store    CredentialStore
	pool     *compute.Pool
	auth     *auth.Service
	access   *access.Service
	registry *prometheus.Registry
}

func (c *cli) openServices(ctx context.Context) (*services, error) {
	if err := c.cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	st, err := c.deps.OpenStore(ctx, c.cfg, c.logger)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "open credential store").Wrap(err)
	}

	pool, err := compute.NewPool(c.cfg.Compute.Workers, c.cfg.Compute.QueueSize)
	if err != nil {
		st.Close()
		return nil, oops.With("operation", "start verification pool").Wrap(err)
	}

	s := &services{store: st, pool: pool, registry: observability.NewRegistry()}
	if err := s.wire(c.cfg, c.logger); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *services) wire(cfg *config.Config, logger *slog.Logger) error {
	if err := compute.RegisterMetrics(s.registry, "verify", s.pool); err != nil {
		return err //nolint:wrapcheck // carries COMPUTE_METRICS_REGISTER
	}

	hasher, err := auth.NewArgon2idHasherWithParams(cfg.Argon2Params())
	if err != nil {
		return err //nolint:wrapcheck // carries AUTH_INVALID_PARAMS
	}

	s.auth, err = auth.NewService(s.store.Accounts(), hasher, s.pool,
		auth.WithLogger(logger.With("component", "auth")),
		auth.WithMetrics(auth.NewMetrics(s.registry)),
		auth.WithTimingEqualization(cfg.Auth.EqualizeTiming),
	)
	if err != nil {
		return err //nolint:wrapcheck // carries AUTH_INVALID_SERVICE
	}

	s.access, err = access.NewService(s.store.Permissions(), logger.With("component", "access"))
	if err != nil {
		return err //nolint:wrapcheck // carries ACCESS_INVALID_SERVICE
	}
	return nil
}

// Close stops the pool and then the store.
func (s *services) Close() {
	s.pool.Close()
	s.store.Close()
}
