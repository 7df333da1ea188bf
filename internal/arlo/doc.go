// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

// Package arlo is the client for the Arlo cloud recording library.
//
// The client logs in lazily with the account email and password, lists the
// account's cameras and its recording library for a date range, and streams
// individual recordings through their presigned URLs. It satisfies the sync
// engine's Source interface.
//
// # Resilience
//
// Every request waits on a token-bucket rate limiter (golang.org/x/time/rate)
// and runs inside the "arlo-api" circuit breaker (sony/gobreaker). A 401
// response triggers one fresh login and a retry. While the breaker is open,
// calls fail fast with ErrUnavailable.
//
// # Caching
//
// Library listings are memoized per date range so the per-camera Items calls
// of one run share a single listing. Call ResetCache before each run:
// presigned URLs expire.
package arlo
