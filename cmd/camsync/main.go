// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

// Package main is the entry point for the camsync command.
//
// Camsync copies recordings from an Arlo account to a storage backend
// (local disk, S3 or GCS). Each run lists a lookback window of recordings per
// camera, skips everything already recorded in the dedup ledger, optionally
// merges clips that follow each other closely into one file, and persists
// the ledger. A file-based run lock keeps overlapping runs (cron, systemd
// timers, the daemon scheduler) from working at the same time.
//
// # Commands
//
//	camsync run [--reinit] [--camera SERIAL] [--dry-run]   one guarded run
//	camsync serve                                          scheduler + status server
//	camsync ledger show | reset                            inspect or empty the ledger
//	camsync unlock                                         show the run lock owner
//	camsync version
//
// # Exit Codes
//
// run exits 0 when the sync finished or another instance already holds the
// lock, and 1 on any fatal error (configuration, lock, camera enumeration).
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the running sync. The ledger is still persisted
// and the run lock released before the process exits.
package main

import (
	"os"
)

// Set at build time:
//
//	go build -ldflags "-X main.version=v1.2.0 -X main.commit=$(git rev-parse --short HEAD)" ./cmd/camsync
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
