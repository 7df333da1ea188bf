// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package api

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/models"
	"github.com/tomtom215/camsync/internal/runguard"
	"github.com/tomtom215/camsync/internal/sync"
)

// StatusSource reports the latest run.
type StatusSource interface {
	Status() sync.Status
}

// Trigger queues an immediate run. It reports false when a run is already
// queued.
type Trigger interface {
	Trigger() bool
}

// Options configure a Handler. Every field except Status is optional.
type Options struct {
	Status   StatusSource
	Trigger  Trigger
	LockPath string
	Breaker  func() string
	Version  string
}

// Handler serves the status endpoints.
type Handler struct {
	opts      Options
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(opts Options) *Handler {
	return &Handler{opts: opts, startTime: time.Now()}
}

// statusResponse is the /status payload.
type statusResponse struct {
	sync.Status
	Lock    *lockStatus `json:"lock,omitempty"`
	Breaker string      `json:"breaker,omitempty"`
}

type lockStatus struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname,omitempty"`
	AcquiredAt time.Time `json:"acquired_at"`
	AgeSeconds float64   `json:"age_seconds"`
}

// Health handles liveness checks.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// Status returns the last run report, the lock owner and the remote API
// breaker state.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: h.opts.Status.Status()}

	if h.opts.LockPath != "" {
		rec, err := runguard.Inspect(h.opts.LockPath)
		if err == nil {
			resp.Lock = &lockStatus{
				PID:        rec.PID,
				Hostname:   rec.Hostname,
				AcquiredAt: rec.AcquiredAt,
				AgeSeconds: rec.Age(time.Now()).Seconds(),
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("Failed to inspect run lock")
		}
	}
	if h.opts.Breaker != nil {
		resp.Breaker = h.opts.Breaker()
	}

	h.respondJSON(w, http.StatusOK, resp)
}

// TriggerRun queues an immediate sync run.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	if h.opts.Trigger == nil {
		respondError(w, http.StatusServiceUnavailable, "NO_SCHEDULER", "Runs cannot be triggered", nil)
		return
	}
	queued := h.opts.Trigger.Trigger()
	logging.Ctx(r.Context()).Info().Bool("queued", queued).Msg("Sync run requested")
	h.respondJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}

func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, &models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: models.Metadata{Timestamp: time.Now(), Version: h.opts.Version},
	})
}

func writeJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Str("error", sanitizeLogValue(err.Error())).Msg("API error")
	}
	writeJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}

// sanitizeLogValue escapes control characters so values cannot forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
