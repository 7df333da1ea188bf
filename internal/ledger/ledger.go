// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tomtom215/camsync/internal/models"
)

// ErrLedgerCorrupt is returned alongside an empty, usable Ledger when the
// persisted state could not be read or decoded. Callers log it and proceed.
var ErrLedgerCorrupt = errors.New("ledger corrupt")

// Entry is what the ledger remembers about a synced Tag.
type Entry struct {
	Date   string `json:"date"`             // Run date (YYYYMMDD) the tag was last seen
	Camera string `json:"camera,omitempty"` // Camera serial, used to carry entries forward
}

// Snapshot is a point-in-time copy of the ledger contents.
type Snapshot map[models.Tag]Entry

// Store persists ledger snapshots.
//
// Load must return an empty snapshot and a nil error when nothing has been
// persisted yet. Save must replace the persisted state atomically: a crash
// mid-save leaves either the previous or the new snapshot, never a mix.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}

// Ledger records which remote items have been durably written. It is safe
// for concurrent use.
type Ledger struct {
	mu      sync.RWMutex
	entries map[models.Tag]Entry
	dirty   bool

	// saveMu serializes snapshot-and-save so an older snapshot can never
	// overwrite a newer one.
	saveMu sync.Mutex
	store  Store
}

// Load reads the persisted ledger from store.
//
// A missing ledger yields an empty Ledger and nil. Unreadable or corrupt
// state yields an empty Ledger and an error wrapping ErrLedgerCorrupt; the
// returned Ledger is always usable.
func Load(ctx context.Context, store Store) (*Ledger, error) {
	l := &Ledger{
		entries: make(map[models.Tag]Entry),
		store:   store,
	}

	snap, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, ErrLedgerCorrupt) {
			return l, err
		}
		return l, fmt.Errorf("%w: %w", ErrLedgerCorrupt, err)
	}
	for tag, e := range snap {
		l.entries[tag] = e
	}
	return l, nil
}

// MarkSynced records tag as synced on date. Calling it again for the same
// tag only refreshes the entry.
func (l *Ledger) MarkSynced(tag models.Tag, camera, date string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[tag] = Entry{Date: date, Camera: camera}
	l.dirty = true
}

// IsSynced reports whether tag has been synced.
func (l *Ledger) IsSynced(tag models.Tag) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[tag]
	return ok
}

// Carry re-dates every entry of camera to date so that Prune keeps them.
// It is used when a camera could not be listed: absence from a failed
// listing says nothing about the upstream window. Returns the number of
// entries touched.
func (l *Ledger) Carry(camera, date string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for tag, e := range l.entries {
		if e.Camera == camera && e.Date != date {
			e.Date = date
			l.entries[tag] = e
			n++
		}
	}
	if n > 0 {
		l.dirty = true
	}
	return n
}

// Prune removes every entry whose date differs from currentDate and returns
// how many were removed. It must only run after the sync loop has finished.
func (l *Ledger) Prune(currentDate string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for tag, e := range l.entries {
		if e.Date != currentDate {
			delete(l.entries, tag)
			n++
		}
	}
	if n > 0 {
		l.dirty = true
	}
	return n
}

// Reset forgets every entry.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[models.Tag]Entry)
	l.dirty = true
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Snapshot returns a copy of the current entries.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() Snapshot {
	snap := make(Snapshot, len(l.entries))
	for tag, e := range l.entries {
		snap[tag] = e
	}
	return snap
}

// Tags returns all tags in sorted order.
func (l *Ledger) Tags() []models.Tag {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tags := make([]models.Tag, 0, len(l.entries))
	for tag := range l.entries {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Checkpoint persists the current state. The in-memory ledger stays
// writable while the snapshot is being saved.
func (l *Ledger) Checkpoint(ctx context.Context) error {
	return l.save(ctx, false)
}

// PersistFinal performs the end-of-run write. Unlike Checkpoint it always
// writes, even when nothing changed, so the store reflects a clean shutdown.
func (l *Ledger) PersistFinal(ctx context.Context) error {
	return l.save(ctx, true)
}

func (l *Ledger) save(ctx context.Context, force bool) error {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.Lock()
	if !l.dirty && !force {
		l.mu.Unlock()
		return nil
	}
	snap := l.snapshotLocked()
	l.dirty = false
	l.mu.Unlock()

	if err := l.store.Save(ctx, snap); err != nil {
		l.mu.Lock()
		l.dirty = true
		l.mu.Unlock()
		return fmt.Errorf("persist ledger: %w", err)
	}
	return nil
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}
