// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

/*
Package api serves the daemon's local status endpoints with a chi router.

Routes:

	GET  /healthz   liveness and uptime
	GET  /metrics   Prometheus exposition
	GET  /status    last sync report, lock owner and breaker state
	POST /run       queue an immediate sync run (202 Accepted)

JSON responses use the models.APIResponse envelope. The server is meant to
listen on loopback or a private network; it has no authentication.
*/
package api
