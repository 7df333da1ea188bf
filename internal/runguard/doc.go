// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

// Package runguard ensures at most one sync run is active on a host.
//
// The lock is a JSON record {pid, acquired_at, hostname} created with
// O_CREATE|O_EXCL. On contention the existing record decides the outcome:
//
//   - unreadable record: ErrLockUnreadable, nothing is touched
//   - owner not running: the lock is reclaimed
//   - owner running and younger than StaleAfter: ErrAlreadyRunning
//   - owner running and stale: terminate, wait, kill, wait; reclaim if it
//     exited, otherwise ErrLockReclaimFailed
//
// Every transition is logged and counted in camsync_lock_events_total.
package runguard
