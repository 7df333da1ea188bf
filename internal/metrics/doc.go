// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

/*
Package metrics provides Prometheus metrics for Camsync.

All collectors are registered with the default registry through promauto and
exposed by the daemon at /metrics:

	curl http://127.0.0.1:9273/metrics

# Sync Metrics

  - camsync_units_total{result}: units processed, skipped, failed or seeded
  - camsync_merged_groups_total: merge groups written
  - camsync_backup_bytes_total{backend}: bytes written per backend
  - camsync_run_duration_seconds: run duration histogram
  - camsync_runs_total{outcome}: success, error, skipped
  - camsync_last_success_timestamp_seconds
  - camsync_ledger_entries: ledger size after the last run
  - camsync_camera_failures_total{camera}
  - camsync_lock_events_total{event}: run lock transitions

# Remote Service Metrics

  - camsync_remote_requests_total{endpoint,status_code}
  - camsync_remote_request_duration_seconds{endpoint}
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name,result}
  - circuit_breaker_consecutive_failures{name}
  - circuit_breaker_state_transitions_total{name,from_state,to_state}

# Usage

	metrics.RecordRun(metrics.RunStats{Processed: 12, Duration: d}, nil)
	metrics.RecordLockEvent(metrics.LockReclaimedStale)

Example alert:

	time() - camsync_last_success_timestamp_seconds > 3 * 3600
*/
package metrics
