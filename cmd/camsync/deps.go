// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package main

import (
	"context"
	"fmt"

	"github.com/tomtom215/camsync/internal/arlo"
	"github.com/tomtom215/camsync/internal/config"
	"github.com/tomtom215/camsync/internal/ledger"
	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/merger"
	"github.com/tomtom215/camsync/internal/runguard"
	"github.com/tomtom215/camsync/internal/storage"
	"github.com/tomtom215/camsync/internal/sync"
)

// app holds the wired components for one process.
type app struct {
	cfg     *config.Config
	guard   *runguard.Guard
	client  *arlo.Client
	backend storage.Backend
	runner  *sync.Runner
}

func newGuard(cfg config.LockConfig) *runguard.Guard {
	return runguard.New(runguard.Options{
		Path:          cfg.Path,
		StaleAfter:    cfg.StaleAfter,
		TerminateWait: cfg.TerminateWait,
		Procs:         runguard.NewProcessController(),
	})
}

// buildApp wires the remote client, storage backend, merger and runner.
// The backend is built once here and injected everywhere it is needed.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	backend, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage backend: %w", err)
	}

	client := arlo.New(arlo.OptionsFromConfig(cfg.Arlo))
	guard := newGuard(cfg.Lock)

	var m sync.GroupMerger
	if cfg.Merge.Enabled {
		m = merger.New(client, backend, merger.NewFFmpegCombiner(cfg.Merge.FFmpegPath), merger.Options{
			ScratchDir: cfg.Merge.ScratchDir,
			Timeout:    cfg.Merge.Timeout,
		})
	}

	openStore := func() (ledger.Store, error) {
		return ledger.OpenStore(cfg.Ledger)
	}

	logging.Info().
		Str("backend", backend.Name()).
		Str("ledger", cfg.Ledger.Backend).
		Bool("merge", cfg.Merge.Enabled).
		Int("cameras", len(cfg.Cameras)).
		Str("account", logging.SanitizeEmail(cfg.Arlo.Email)).
		Msg("Configuration loaded")

	return &app{
		cfg:     cfg,
		guard:   guard,
		client:  client,
		backend: backend,
		runner:  sync.NewRunner(guard, openStore, client, backend, m, sync.OptionsFromConfig(cfg)),
	}, nil
}

func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		logging.Warn().Err(err).Msg("Error closing storage backend")
	}
}
