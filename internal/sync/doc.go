// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

/*
Package sync runs incremental backups of remote camera recordings.

An Engine pulls the recording listing of every camera for the lookback
window, groups clips that were recorded close together, and writes each
unit (a single clip or a merged group) to the configured storage backend.
Synced recordings are remembered in the ledger so the next run skips them.

Run Lifecycle:

 1. Resolve cameras: the account's cameras, overlaid with configured names
    and gap thresholds. Unknown cameras are synced unless disabled.
 2. For each camera, newest first: skip synced units, seed (re-init mode),
    or back up and mark. The ledger is checkpointed every
    CheckpointInterval marked units.
 3. Prune ledger entries not seen today, persist, expire old local dates.

Failure Isolation:

A failing unit is counted and retried next run; its tags are never marked.
A camera whose listing fails, or whose processing panics, is counted as
failed and its ledger entries are carried to today's date so the prune at
the end of the run keeps them.

Cameras are processed by up to CameraWorkers goroutines (errgroup). The
ledger is safe for concurrent use and the checkpoint counter is atomic.

Guarded Runs:

Runner wraps the engine with the single-instance run lock and opens the
ledger store for the duration of one run. Both the CLI and the daemon
scheduler call Runner.Run.

Usage Example:

	runner := sync.NewRunner(guard, openStore, client, backend, m, sync.OptionsFromConfig(cfg))
	report, err := runner.Run(ctx)
	if errors.Is(err, runguard.ErrAlreadyRunning) {
	    return nil
	}
*/
package sync
