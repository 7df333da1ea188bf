// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

/*
Package services adapts daemon components to suture.Service.

  - SchedulerService: immediate, periodic and on-demand guarded sync runs
  - HTTPServerService: the status server with graceful shutdown

Each service blocks in Serve until its context is cancelled and returns an
error only when suture should restart it.
*/
package services
