// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

/*
Package middleware provides HTTP middleware for the daemon status server.

Both middlewares use the func(http.Handler) http.Handler shape and plug
directly into chi's r.Use:

  - RequestID: X-Request-ID propagation and a request-scoped logger
  - PrometheusMetrics: request count and latency per chi route pattern

Example:

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
*/
package middleware
