// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/camsync/internal/ledger"
	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/metrics"
	"github.com/tomtom215/camsync/internal/runguard"
	"github.com/tomtom215/camsync/internal/storage"
)

// Locker is the cross-process run guard.
type Locker interface {
	Acquire(ctx context.Context) error
	Release() error
}

// StoreOpener opens the ledger store for one run.
type StoreOpener func() (ledger.Store, error)

// Status is the runner's view for status endpoints.
type Status struct {
	Running   bool      `json:"running"`
	LastRun   *Report   `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	LastEnd   time.Time `json:"last_end,omitempty"`
}

// Runner performs guarded runs: acquire the lock, load the ledger, run the
// engine, persist and release. The ledger store is opened per run so no
// file or database handle outlives the lock.
type Runner struct {
	guard     Locker
	openStore StoreOpener
	source    Source
	backend   storage.Backend
	merger    GroupMerger
	opts      Options

	running atomic.Bool

	mu      sync.RWMutex
	last    *Report
	lastErr error
	lastEnd time.Time
}

// NewRunner creates a Runner.
func NewRunner(guard Locker, openStore StoreOpener, source Source, backend storage.Backend, m GroupMerger, opts Options) *Runner {
	return &Runner{
		guard:     guard,
		openStore: openStore,
		source:    source,
		backend:   backend,
		merger:    m,
		opts:      opts,
	}
}

// Run performs one guarded run. runguard.ErrAlreadyRunning means another
// instance holds the lock and nothing was done.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	ctx = logging.ContextWithNewRunID(ctx)
	log := logging.Ctx(ctx)

	if err := r.guard.Acquire(ctx); err != nil {
		if errors.Is(err, runguard.ErrAlreadyRunning) {
			metrics.RecordRunSkipped()
			log.Info().Msg("Another sync run is in progress, skipping")
		}
		return Report{}, err
	}
	defer func() {
		if err := r.guard.Release(); err != nil {
			log.Warn().Err(err).Msg("Failed to release run lock")
		}
	}()

	r.running.Store(true)
	defer r.running.Store(false)

	report, err := r.runLocked(ctx)
	r.record(report, err)
	return report, err
}

func (r *Runner) runLocked(ctx context.Context) (Report, error) {
	store, err := r.openStore()
	if err != nil {
		if store == nil || !errors.Is(err, ledger.ErrLedgerCorrupt) {
			return Report{}, fmt.Errorf("open ledger store: %w", err)
		}
		logging.Ctx(ctx).Warn().Err(err).Msg("Ledger store was damaged, starting empty")
	}
	l, err := ledger.Load(ctx, store)
	if err != nil {
		// The ledger is still usable; a corrupt one only costs re-uploads.
		logging.Ctx(ctx).Warn().Err(err).Msg("Ledger unreadable, starting empty")
	}
	defer func() {
		if err := l.Close(); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Failed to close ledger store")
		}
	}()

	return New(r.source, r.backend, l, r.merger, r.opts).Run(ctx)
}

func (r *Runner) record(report Report, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &report
	r.lastErr = err
	r.lastEnd = time.Now()
}

// Status returns the latest run outcome.
func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Status{Running: r.running.Load(), LastEnd: r.lastEnd}
	if r.last != nil {
		rep := *r.last
		st.LastRun = &rep
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}
