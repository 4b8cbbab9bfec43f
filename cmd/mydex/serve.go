// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/mydex/mydex/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the verification pool with metrics and health endpoints",
		Long: `Connect to the credential store, start the password verification pool
and serve /metrics, /healthz/liveness and /healthz/readiness until interrupted.
Readiness tracks the database connection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	svc, err := c.openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	c.logger.InfoContext(ctx, "starting mydex", "config", c.cfg)

	var errCh <-chan error
	if c.cfg.Metrics.Addr != "" {
		server := observability.NewServer(c.cfg.Metrics.Addr, svc.registry, svc.store.Ping, c.logger)
		errCh, err = server.Start()
		if err != nil {
			return oops.With("operation", "start observability server").Wrap(err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()
			if stopErr := server.Stop(shutdownCtx); stopErr != nil {
				c.logger.Warn("error stopping observability server", "error", stopErr)
			}
		}()
	}

	select {
	case <-ctx.Done():
		c.logger.Info("shutting down")
		return nil
	case serveErr, ok := <-errCh:
		if !ok {
			return nil
		}
		return oops.Code("OBSERVABILITY_FAILED").Wrap(serveErr)
	}
}
