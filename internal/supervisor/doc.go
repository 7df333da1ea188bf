// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

/*
Package supervisor runs the camsync daemon under a suture v4 supervisor tree.

	camsync
	├── sync-layer
	│   └── SchedulerService (immediate run, then every sync.interval)
	└── api-layer
	    └── HTTPServerService (/healthz, /metrics, /status, POST /run)

Failed services restart with suture's backoff. Supervisor events are logged
through sutureslog, fed by the zerolog-backed slog adapter.

# Usage Example

	tree := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	scheduler := services.NewSchedulerService(runner, cfg.Sync.Interval)
	tree.AddSyncService(scheduler)
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)
*/
package supervisor
