// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Unit results for UnitsTotal.
const (
	ResultProcessed = "processed"
	ResultSkipped   = "skipped"
	ResultFailed    = "failed"
	ResultSeeded    = "seeded"
)

// Lock events for LockEvents.
const (
	LockAcquired       = "acquired"
	LockContended      = "contended"
	LockReclaimedDead  = "reclaimed_dead"
	LockReclaimedStale = "reclaimed_stale"
	LockReclaimFailed  = "reclaim_failed"
	LockUnreadable     = "unreadable"
	LockReleased       = "released"
)

var (
	// Sync Run Metrics
	UnitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camsync_units_total",
			Help: "Total number of sync units (single clips or merge groups) by result",
		},
		[]string{"result"}, // processed, skipped, failed, seeded
	)

	MergedGroupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "camsync_merged_groups_total",
			Help: "Total number of merge groups combined and backed up",
		},
	)

	BackupBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camsync_backup_bytes_total",
			Help: "Total bytes written to the storage backend",
		},
		[]string{"backend"},
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "camsync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800, 3600}, // Runs with downloads take minutes
		},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camsync_runs_total",
			Help: "Total number of sync runs by outcome",
		},
		[]string{"outcome"}, // success, error, skipped
	)

	LastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "camsync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful sync run",
		},
	)

	LedgerEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "camsync_ledger_entries",
			Help: "Number of entries in the dedup ledger after the last run",
		},
	)

	CameraFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camsync_camera_failures_total",
			Help: "Total number of cameras skipped because listing or processing failed",
		},
		[]string{"camera"},
	)

	LockEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camsync_lock_events_total",
			Help: "Run lock state transitions",
		},
		[]string{"event"},
	)

	// Remote API Metrics
	RemoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camsync_remote_requests_total",
			Help: "Total number of requests to the recording service",
		},
		[]string{"endpoint", "status_code"},
	)

	RemoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "camsync_remote_request_duration_seconds",
			Help:    "Recording service request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	// Combine Metrics
	CombineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "camsync_combine_duration_seconds",
			Help:    "Duration of clip combine invocations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		},
	)

	// Status API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of status API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Status API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Application Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "camsync_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RunStats is the subset of a sync report that feeds the run metrics.
type RunStats struct {
	Processed  int
	Merged     int
	Skipped    int
	Failed     int
	Seeded     int
	LedgerSize int
	Duration   time.Duration
}

// RecordRun records the outcome of one sync run. A non-nil err marks the run
// as failed and leaves the last-success timestamp untouched.
func RecordRun(stats RunStats, err error) {
	RunDuration.Observe(stats.Duration.Seconds())
	UnitsTotal.WithLabelValues(ResultProcessed).Add(float64(stats.Processed))
	UnitsTotal.WithLabelValues(ResultSkipped).Add(float64(stats.Skipped))
	UnitsTotal.WithLabelValues(ResultFailed).Add(float64(stats.Failed))
	UnitsTotal.WithLabelValues(ResultSeeded).Add(float64(stats.Seeded))
	MergedGroupsTotal.Add(float64(stats.Merged))
	LedgerEntries.Set(float64(stats.LedgerSize))

	if err != nil {
		RunsTotal.WithLabelValues("error").Inc()
		return
	}
	RunsTotal.WithLabelValues("success").Inc()
	LastSuccess.Set(float64(time.Now().Unix()))
}

// RecordRunSkipped counts a run that did not start because another instance
// holds the lock.
func RecordRunSkipped() {
	RunsTotal.WithLabelValues("skipped").Inc()
}

// RecordBackup records bytes written to a backend.
func RecordBackup(backend string, bytes int64) {
	if bytes > 0 {
		BackupBytesTotal.WithLabelValues(backend).Add(float64(bytes))
	}
}

// RecordCameraFailure counts a skipped camera.
func RecordCameraFailure(camera string) {
	CameraFailures.WithLabelValues(camera).Inc()
}

// RecordLockEvent counts a run lock transition.
func RecordLockEvent(event string) {
	LockEvents.WithLabelValues(event).Inc()
}

// RecordRemoteRequest records one request to the recording service.
// statusCode is 0 when no response was received.
func RecordRemoteRequest(endpoint string, statusCode int, duration time.Duration) {
	code := "error"
	if statusCode > 0 {
		code = strconv.Itoa(statusCode)
	}
	RemoteRequestsTotal.WithLabelValues(endpoint, code).Inc()
	RemoteRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordAPIRequest records a status API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
