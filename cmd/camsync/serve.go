// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/tomtom215/camsync/internal/api"
	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/supervisor"
	"github.com/tomtom215/camsync/internal/supervisor/services"
)

func newServeCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the sync scheduler and status server under supervision",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(gf, false, nil)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	scheduler := services.NewSchedulerService(a.runner, a.cfg.Sync.Interval)
	tree.AddSyncService(scheduler)

	if a.cfg.Server.Enabled {
		handler := api.NewHandler(api.Options{
			Status:   a.runner,
			Trigger:  scheduler,
			LockPath: a.cfg.Lock.Path,
			Breaker:  a.client.BreakerState,
			Version:  version,
		})
		srv := services.NewStatusServer(a.cfg.Server, api.NewRouter(handler))
		tree.AddAPIService(services.NewHTTPServerService(srv, a.cfg.Server.ShutdownTimeout))
		logging.Info().Str("addr", srv.Addr).Msg("Status server enabled")
	}

	logging.Info().
		Dur("interval", a.cfg.Sync.Interval).
		Str("version", version).
		Msg("Starting camsync daemon")

	err := tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		logging.Warn().Int("count", len(report)).Msg("Services did not stop within the shutdown timeout")
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		logging.Info().Msg("camsync daemon stopped")
		return nil
	}
	return err
}
