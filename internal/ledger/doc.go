// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

// Package ledger remembers which remote recordings have already been backed
// up, so repeated runs never download the same clip twice.
//
// Entries are keyed by models.Tag and carry the run date on which the tag was
// last confirmed. After a run, Prune drops every entry not confirmed today;
// because the remote library is listed with a lookback window, this keeps the
// ledger bounded to the window.
//
// Two stores are available:
//
//   - FileStore: one JSON document, replaced via temp file and rename
//   - BadgerStore: embedded BadgerDB, replaced within one transaction
//
// Ledger state is periodically checkpointed during a run and written a final
// time at the end. A crash loses at most the items since the last checkpoint,
// which are then re-downloaded and skipped by the storage backend.
package ledger
