// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package merger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/camsync/internal/grouper"
	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/metrics"
	"github.com/tomtom215/camsync/internal/models"
	"github.com/tomtom215/camsync/internal/storage"
)

// Unit failures. None of them is fatal to a run: the unit is left unmarked
// and retried next time.
var (
	ErrFetchFailed   = errors.New("fetch failed")
	ErrBackupFailed  = errors.New("backup failed")
	ErrCombineFailed = errors.New("combine failed")
)

// Fetcher opens the content of a remote item.
type Fetcher interface {
	Open(ctx context.Context, item models.RemoteItem) (io.ReadCloser, error)
}

// Combiner joins local media files, given oldest first, into output.
type Combiner interface {
	Combine(ctx context.Context, inputs []string, output string) error
}

// CombinerFunc adapts a function to Combiner.
type CombinerFunc func(ctx context.Context, inputs []string, output string) error

// Combine implements Combiner.
func (f CombinerFunc) Combine(ctx context.Context, inputs []string, output string) error {
	return f(ctx, inputs, output)
}

// Options configure a Merger.
type Options struct {
	// ScratchDir holds per-group staging directories. Defaults to
	// os.TempDir()/camsync.
	ScratchDir string
	// Timeout bounds one Combine call. Zero means no extra bound.
	Timeout time.Duration
}

// Output describes a merged artifact.
type Output struct {
	Dir      string
	File     string
	Duration int // Seconds covered, oldest start to newest end
	Result   storage.Result
}

// Merger turns a merge group into one backed-up file.
type Merger struct {
	fetch    Fetcher
	backend  storage.Backend
	combiner Combiner
	opts     Options
}

// New creates a Merger.
func New(fetch Fetcher, backend storage.Backend, combiner Combiner, opts Options) *Merger {
	if opts.ScratchDir == "" {
		opts.ScratchDir = filepath.Join(os.TempDir(), "camsync")
	}
	return &Merger{fetch: fetch, backend: backend, combiner: combiner, opts: opts}
}

// Target returns where a group's merged artifact is stored.
func Target(cam models.Camera, group []models.RemoteItem) (dir, file string, duration int) {
	oldest, newest := grouper.Span(group)
	duration = models.TotalDuration(oldest, newest)
	start := oldest.StartTime()
	return models.OutputDir(cam, start),
		models.OutputName(cam, start, duration, models.ExtensionFor(oldest.ContentType)),
		duration
}

// Merge stages every member of group (newest-first, at least two items),
// combines them oldest to newest and backs up the result. The scratch
// directory is removed on every path. The caller marks member tags only
// when Merge returns nil.
func (m *Merger) Merge(ctx context.Context, cam models.Camera, group []models.RemoteItem) (Output, error) {
	if len(group) < 2 {
		return Output{}, fmt.Errorf("merge needs at least 2 items, got %d", len(group))
	}

	dir, file, duration := Target(cam, group)
	log := logging.Ctx(ctx).With().
		Str("camera", cam.SerialID).
		Int("items", len(group)).
		Str("output", file).
		Logger()

	scratch, err := storage.NewLocal(filepath.Join(m.opts.ScratchDir, "group-"+uuid.NewString()))
	if err != nil {
		return Output{}, fmt.Errorf("%w: scratch: %w", ErrCombineFailed, err)
	}
	defer func() {
		if err := os.RemoveAll(scratch.Root()); err != nil {
			log.Warn().Err(err).Str("scratch", scratch.Root()).Msg("Failed to remove merge scratch")
		}
	}()

	staged, err := m.stage(ctx, scratch, group)
	if err != nil {
		return Output{}, err
	}

	// Combine strictly oldest to newest.
	slices.Reverse(staged)
	output := filepath.Join(scratch.Root(), "combined"+filepath.Ext(file))

	cctx := ctx
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}
	start := time.Now()
	err = m.combiner.Combine(cctx, staged, output)
	metrics.CombineDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrCombineFailed, err)
	}

	f, err := os.Open(output) //nolint:gosec // output is inside our scratch dir
	if err != nil {
		return Output{}, fmt.Errorf("%w: combined output missing: %w", ErrCombineFailed, err)
	}
	defer func() { _ = f.Close() }()

	res, err := m.backend.Backup(ctx, f, dir, file)
	if err != nil {
		return Output{}, fmt.Errorf("%w: %w", ErrBackupFailed, err)
	}

	log.Debug().
		Int("duration_s", duration).
		Int64("bytes", res.Bytes).
		Bool("skipped", res.Skipped).
		Msg("Merged group backed up")
	return Output{Dir: dir, File: file, Duration: duration, Result: res}, nil
}

// stage downloads every member into scratch and returns the staged paths in
// group order.
func (m *Merger) stage(ctx context.Context, scratch *storage.Local, group []models.RemoteItem) ([]string, error) {
	paths := make([]string, 0, len(group))
	used := make(map[string]bool, len(group))

	for i, item := range group {
		name := item.FileName()
		if used[name] {
			name = fmt.Sprintf("%d_%s", i, name)
		}
		used[name] = true

		if err := m.stageOne(ctx, scratch, item, name); err != nil {
			return nil, err
		}
		p, err := scratch.Path("", name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (m *Merger) stageOne(ctx context.Context, scratch *storage.Local, item models.RemoteItem, name string) error {
	rc, err := m.fetch.Open(ctx, item)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFetchFailed, item.Tag(), err)
	}
	defer func() { _ = rc.Close() }()

	if _, err := scratch.Backup(ctx, rc, "", name); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFetchFailed, item.Tag(), err)
	}
	return nil
}
