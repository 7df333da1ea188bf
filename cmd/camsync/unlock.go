// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/camsync/internal/runguard"
)

func newUnlockCommand(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock",
		Short: "Show the run lock owner and age",
		Long: `Show who holds the run lock and for how long.

The lock is never removed here: a stale lock is reclaimed by the next run
once it is older than lock.stale_after.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(gf, true, nil)
			if err != nil {
				return err
			}
			return describeLock(cmd.OutOrStdout(), cfg.Lock.Path, cfg.Lock.StaleAfter, time.Now())
		},
	}
}

func describeLock(out io.Writer, path string, staleAfter time.Duration, now time.Time) error {
	rec, err := runguard.Inspect(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		fmt.Fprintf(out, "%s: not held\n", path)
		return nil
	case err != nil:
		return err
	}

	age := rec.Age(now).Truncate(time.Second)
	fmt.Fprintf(out, "%s: held by pid %d", path, rec.PID)
	if rec.Hostname != "" {
		fmt.Fprintf(out, " on %s", rec.Hostname)
	}
	fmt.Fprintf(out, " since %s (%s)\n", rec.AcquiredAt.UTC().Format(time.RFC3339), age)
	if age > staleAfter {
		fmt.Fprintf(out, "lock is stale; the next run will reclaim it\n")
	}
	return nil
}
