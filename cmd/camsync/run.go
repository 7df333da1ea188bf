// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/camsync/internal/runguard"
	"github.com/tomtom215/camsync/internal/sync"
)

type runFlags struct {
	reinit bool
	camera string
	dryRun bool
	report bool
}

// overrides maps only the flags the user actually set, so config file and
// environment values survive otherwise.
func (f *runFlags) overrides(cmd *cobra.Command) map[string]interface{} {
	o := make(map[string]interface{})
	if cmd.Flags().Changed("reinit") {
		o["sync.reinit"] = f.reinit
	}
	if cmd.Flags().Changed("camera") {
		o["sync.only_camera"] = f.camera
	}
	if cmd.Flags().Changed("dry-run") {
		o["sync.dry_run"] = f.dryRun
	}
	return o
}

func newRunCommand(gf *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Perform one guarded sync run",
		Long: `Perform one sync run under the run lock.

If another run holds the lock the command logs that and exits 0.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(gf, false, f.overrides(cmd))
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

			report, err := runOnce(ctx, a.runner)
			if err != nil {
				return err
			}
			if f.report {
				return printReport(cmd, report)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&f.reinit, "reinit", false, "seed the ledger from the remote listing without downloading")
	cmd.Flags().StringVar(&f.camera, "camera", "", "restrict the run to one camera serial")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "list what would be synced without writing anything")
	cmd.Flags().BoolVar(&f.report, "report", false, "print the run report as JSON")
	return cmd
}

type syncRunner interface {
	Run(ctx context.Context) (sync.Report, error)
}

// runOnce runs the sync and maps a held lock to success.
func runOnce(ctx context.Context, r syncRunner) (sync.Report, error) {
	report, err := r.Run(ctx)
	if errors.Is(err, runguard.ErrAlreadyRunning) {
		return report, nil
	}
	return report, err
}

func printReport(cmd *cobra.Command, report sync.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
