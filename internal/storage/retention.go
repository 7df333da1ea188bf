// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/models"
)

// ExpireBefore removes top-level date directories (YYYYMMDD) dated strictly
// before cutoffDate, then prunes empty directories left under the root.
// Entries whose names are not dates are never touched. It returns the number
// of date directories removed.
func (l *Local) ExpireBefore(ctx context.Context, cutoffDate string) (int, error) {
	cutoff, err := time.Parse(models.DateLayout, cutoffDate)
	if err != nil {
		return 0, fmt.Errorf("invalid cutoff date %q: %w", cutoffDate, err)
	}

	entries, err := os.ReadDir(l.root)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", l.root, err)
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if !e.IsDir() {
			continue
		}
		day, err := time.Parse(models.DateLayout, e.Name())
		if err != nil {
			continue
		}

		dir := filepath.Join(l.root, e.Name())
		if day.Before(cutoff) {
			if err := os.RemoveAll(dir); err != nil {
				errs = append(errs, fmt.Errorf("remove %s: %w", dir, err))
				continue
			}
			removed++
			logging.Debug().Str("dir", e.Name()).Msg("Expired recording directory")
			continue
		}
		if err := removeEmptyDirs(dir); err != nil {
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}

// removeEmptyDirs removes dir's empty subdirectories and then dir itself if
// it ended up empty.
func removeEmptyDirs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list %s: %w", dir, err)
	}
	empty := true
	for _, e := range entries {
		if !e.IsDir() {
			empty = false
			continue
		}
		sub := filepath.Join(dir, e.Name())
		if err := removeEmptyDirs(sub); err != nil {
			return err
		}
		if _, err := os.Stat(sub); err == nil {
			empty = false
		}
	}
	if empty {
		if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}
	return nil
}
