// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Local stores artifacts under a filesystem root as root/dir/file.
type Local struct {
	root string
}

// NewLocal returns a Local rooted at root, creating it if needed.
func NewLocal(root string) (*Local, error) {
	if root == "" {
		return nil, fmt.Errorf("local storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve local root: %w", err)
	}
	//nolint:gosec // G301: recordings are meant to be browsable
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create local root: %w", err)
	}
	return &Local{root: abs}, nil
}

// Name implements Backend.
func (l *Local) Name() string { return BackendLocal }

// Root returns the absolute root directory.
func (l *Local) Root() string { return l.root }

// Path returns the filesystem path for (dir, file).
func (l *Local) Path(dir, file string) (string, error) {
	if err := checkIdentity(dir, file); err != nil {
		return "", err
	}
	return filepath.Join(l.root, filepath.FromSlash(dir), file), nil
}

// Exists reports whether (dir, file) has been written.
func (l *Local) Exists(dir, file string) (bool, error) {
	p, err := l.Path(dir, file)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Open reads back a previously written artifact.
func (l *Local) Open(dir, file string) (io.ReadCloser, error) {
	p, err := l.Path(dir, file)
	if err != nil {
		return nil, err
	}
	return os.Open(p) //nolint:gosec // path validated by checkIdentity
}

// Backup implements Backend. An existing destination is left untouched and
// reported as skipped. New content is written to a temp file beside the
// destination and renamed into place, so the destination never holds a
// partial write.
func (l *Local) Backup(ctx context.Context, r io.Reader, dir, file string) (Result, error) {
	dest, err := l.Path(dir, file)
	if err != nil {
		return Result{}, err
	}
	switch _, err := os.Stat(dest); {
	case err == nil:
		return Result{Location: dest, Skipped: true}, nil
	case !errors.Is(err, os.ErrNotExist):
		return Result{}, fmt.Errorf("stat %s: %w", dest, err)
	}

	destDir := filepath.Dir(dest)
	//nolint:gosec // G301: recordings are meant to be browsable
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create %s: %w", destDir, err)
	}

	tmp, err := os.CreateTemp(destDir, "."+file+".*.part")
	if err != nil {
		return Result{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	n, err := io.Copy(tmp, ctxReader{ctx: ctx, r: r})
	if err != nil {
		_ = tmp.Close()
		return Result{}, fmt.Errorf("write %s: %w", file, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Result{}, fmt.Errorf("sync %s: %w", file, err)
	}
	if err := tmp.Close(); err != nil {
		return Result{}, fmt.Errorf("close %s: %w", file, err)
	}
	//nolint:gosec // G302: recordings are meant to be browsable
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return Result{}, fmt.Errorf("chmod %s: %w", file, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return Result{}, fmt.Errorf("commit %s: %w", file, err)
	}
	committed = true

	return Result{Location: dest, Bytes: n}, nil
}

// Close implements Backend.
func (l *Local) Close() error { return nil }

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
