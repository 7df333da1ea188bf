// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tomtom215/camsync/internal/config"
	"github.com/tomtom215/camsync/internal/ledger"
	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/runguard"
)

func newLedgerCommand(gf *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect or reset the dedup ledger",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the ledger entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(gf, true, nil)
			if err != nil {
				return err
			}
			return showLedger(cmd.Context(), cfg.Ledger, cmd.OutOrStdout())
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Empty the ledger so the next run downloads everything in the window",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(gf, true, nil)
			if err != nil {
				return err
			}
			n, err := resetLedger(cmd.Context(), cfg, newGuard(cfg.Lock))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d entries\n", n)
			return nil
		},
	})
	return cmd
}

func loadLedger(ctx context.Context, cfg config.LedgerConfig) (*ledger.Ledger, error) {
	store, err := ledger.OpenStore(cfg)
	if err != nil {
		if store == nil || !errors.Is(err, ledger.ErrLedgerCorrupt) {
			return nil, err
		}
		logging.Warn().Err(err).Msg("Ledger store was damaged, starting empty")
	}
	l, err := ledger.Load(ctx, store)
	if err != nil {
		if !errors.Is(err, ledger.ErrLedgerCorrupt) {
			_ = store.Close()
			return nil, err
		}
		logging.Warn().Err(err).Msg("Ledger is corrupt, treating it as empty")
	}
	return l, nil
}

func showLedger(ctx context.Context, cfg config.LedgerConfig, out io.Writer) error {
	l, err := loadLedger(ctx, cfg)
	if err != nil {
		return err
	}
	defer l.Close()

	snap := l.Snapshot()
	fmt.Fprintf(out, "%d entries\n", len(snap))
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TAG\tCAMERA\tDATE")
	for _, tag := range l.Tags() {
		e := snap[tag]
		fmt.Fprintf(tw, "%s\t%s\t%s\n", tag, e.Camera, e.Date)
	}
	return tw.Flush()
}

// resetLedger empties the ledger while holding the run lock so it cannot
// race a sync run.
func resetLedger(ctx context.Context, cfg *config.Config, guard Locker) (int, error) {
	if err := guard.Acquire(ctx); err != nil {
		return 0, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if err := guard.Release(); err != nil {
			logging.Warn().Err(err).Msg("Failed to release run lock")
		}
	}()

	l, err := loadLedger(ctx, cfg.Ledger)
	if err != nil {
		return 0, err
	}
	defer l.Close()

	n := l.Len()
	l.Reset()
	if err := l.PersistFinal(ctx); err != nil {
		return 0, err
	}
	logging.Info().Int("removed", n).Msg("Ledger reset")
	return n, nil
}

// Locker is the subset of runguard.Guard used by maintenance commands.
type Locker interface {
	Acquire(ctx context.Context) error
	Release() error
}

var _ Locker = (*runguard.Guard)(nil)
