// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package ledger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// fileFormatVersion is bumped when the on-disk layout changes.
const fileFormatVersion = 1

type fileLedger struct {
	Version int      `json:"version"`
	Entries Snapshot `json:"entries"`
}

// FileStore keeps the ledger in a single JSON file. Saves go through a temp
// file in the same directory followed by a rename.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path. The parent directory is
// created if needed.
func NewFileStore(path string) (*FileStore, error) {
	//nolint:gosec // G301: ledger directory is shared with the lock file
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Path returns the ledger file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load(_ context.Context) (Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrLedgerCorrupt, s.path)
	}

	var fl fileLedger
	if err := json.Unmarshal(data, &fl); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrLedgerCorrupt, s.path, err)
	}
	if fl.Version != fileFormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrLedgerCorrupt, fl.Version)
	}
	if fl.Entries == nil {
		fl.Entries = Snapshot{}
	}
	return fl.Entries, nil
}

// Save implements Store.
func (s *FileStore) Save(_ context.Context, snap Snapshot) error {
	data, err := json.Marshal(fileLedger{Version: fileFormatVersion, Entries: snap})
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	committed = true

	// Persist the rename itself. Not every platform supports syncing a
	// directory, so failure here is ignored.
	if d, err := os.Open(dir); err == nil { //nolint:gosec // dir derived from configured path
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}
