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
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/camsync/internal/models"
)

// Key prefix for ledger entries. Each tag is stored as its own key.
const prefixEntry = "ledger:entry:"

// BadgerStore keeps the ledger in an embedded BadgerDB. Each Save replaces
// the stored entries inside a single transaction.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a BadgerDB ledger at path. An empty path
// opens an in-memory database, which is only useful for tests.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.SyncWrites = true

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// corruptOpenMarkers identify badger open failures caused by damaged files,
// as opposed to locking or permission problems. Badger does not export the
// manifest errors, so they are matched by message.
var corruptOpenMarkers = []string{
	"manifest has bad magic",
	"manifest has checksum mismatch",
	"manifest has unsupported version",
	"checksum mismatch",
}

func isCorruptOpen(err error) bool {
	if errors.Is(err, badger.ErrTruncateNeeded) {
		return true
	}
	if errors.Is(err, os.ErrPermission) {
		return false
	}
	msg := err.Error()
	for _, m := range corruptOpenMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// openBadgerRecovering opens the badger ledger at path. A directory badger
// refuses to open because its files are damaged is renamed to
// "<path>.corrupt-<timestamp>" and an empty store is created in its place;
// the store is returned together with an error wrapping ErrLedgerCorrupt.
func openBadgerRecovering(path string) (*BadgerStore, error) {
	s, err := NewBadgerStore(path)
	if err == nil || path == "" || !isCorruptOpen(err) {
		return s, err
	}

	aside := fmt.Sprintf("%s.corrupt-%s", path, time.Now().UTC().Format("20060102T150405.000"))
	if rerr := os.Rename(path, aside); rerr != nil {
		return nil, fmt.Errorf("%w: move damaged store aside: %w (open: %w)", ErrLedgerCorrupt, rerr, err)
	}
	s, rerr := NewBadgerStore(path)
	if rerr != nil {
		return nil, fmt.Errorf("recreate ledger store after corruption: %w", rerr)
	}
	return s, fmt.Errorf("%w: damaged badger store moved to %s: %w", ErrLedgerCorrupt, aside, err)
}

// Load implements Store.
func (s *BadgerStore) Load(_ context.Context) (Snapshot, error) {
	snap := Snapshot{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEntry)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			tag := models.Tag(item.Key()[len(prefixEntry):])

			var e Entry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("%w: entry %s: %w", ErrLedgerCorrupt, tag, err)
			}
			snap[tag] = e
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// Save implements Store.
func (s *BadgerStore) Save(_ context.Context, snap Snapshot) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		// Drop keys that are no longer in the snapshot.
		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEntry)
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := snap[models.Tag(key[len(prefixEntry):])]; !ok {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("delete entry: %w", err)
			}
		}

		for tag, e := range snap {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("marshal entry: %w", err)
			}
			if err := txn.SetEntry(badger.NewEntry([]byte(prefixEntry+string(tag)), data)); err != nil {
				return fmt.Errorf("set entry: %w", err)
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		return fmt.Errorf("ledger snapshot of %d entries exceeds one transaction: %w", len(snap), err)
	}
	return err
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
