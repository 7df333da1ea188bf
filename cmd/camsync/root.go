// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tomtom215/camsync/internal/config"
	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/metrics"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "camsync",
		Short:         "Incremental sync of Arlo recordings to local or cloud storage",
		SilenceUsage:  true,
		SilenceErrors: false,
		Version:       version,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default: $CONFIG_PATH or ./camsync.yaml)")

	root.AddCommand(
		newRunCommand(flags),
		newServeCommand(flags),
		newLedgerCommand(flags),
		newUnlockCommand(flags),
		newVersionCommand(),
	)
	return root
}

// loadConfig loads configuration and initializes logging from it.
func loadConfig(flags *globalFlags, offline bool, overrides map[string]interface{}) (*config.Config, error) {
	cfg, err := config.LoadWithKoanf(config.LoadOptions{
		Path:      flags.configPath,
		Overrides: overrides,
		Offline:   offline,
	})
	if err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Caller:     cfg.Logging.Caller,
		Timestamp:  true,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	metrics.AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "camsync %s (commit %s, built %s, %s)\n",
				version, commit, buildDate, runtime.Version())
		},
	}
}
