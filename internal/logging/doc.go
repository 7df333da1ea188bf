// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

// Package logging provides centralized zerolog-based structured logging for Camsync.
//
// A single global logger is configured once at startup and used by every
// package through package-level helpers. There is no per-component logger
// plumbing; components add fields instead.
//
// # Quick Start
//
//	import "github.com/tomtom215/camsync/internal/logging"
//
//	logging.Init(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	defer logging.Close()
//
//	logging.Info().Str("camera", serial).Int("items", n).Msg("Listed camera library")
//	logging.Err(err).Msg("Checkpoint failed")
//
// # Run Correlation
//
// Every sync run gets a short run ID stored in its context. Use Ctx to log
// with it attached:
//
//	ctx = logging.ContextWithNewRunID(ctx)
//	logging.Ctx(ctx).Info().Msg("Sync run started")
//	// {"level":"info","run_id":"1f0c2a9b","message":"Sync run started"}
//
// # File Output
//
// When Config.File is set, log entries are additionally written as JSON to a
// size-rotated file managed by lumberjack. Console output keeps its own format.
//
// # Supervisor Integration
//
// The daemon's suture tree logs through sutureslog, which needs an
// *slog.Logger. NewSlogLogger returns one backed by the global zerolog logger.
//
// # Sensitive Data
//
// Account credentials and presigned URLs must never reach the logs verbatim.
// Use SanitizeEmail, SanitizeToken and SanitizeURL.
package logging
