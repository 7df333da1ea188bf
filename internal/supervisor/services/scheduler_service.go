// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/runguard"
	"github.com/tomtom215/camsync/internal/sync"
)

// Runner performs one guarded sync run. Satisfied by *sync.Runner.
type Runner interface {
	Run(ctx context.Context) (sync.Report, error)
}

// SchedulerService runs a sync immediately, then once per interval, and
// whenever Trigger is called.
//
// Lock contention skips the tick. Unreadable or unreclaimable locks are
// returned to suture, which restarts the service with backoff. Any other
// run error is logged and the schedule continues.
type SchedulerService struct {
	runner   Runner
	interval time.Duration
	trigger  chan struct{}
	name     string
}

// NewSchedulerService creates the scheduler. A non-positive interval means
// one hour.
func NewSchedulerService(runner Runner, interval time.Duration) *SchedulerService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &SchedulerService{
		runner:   runner,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		name:     "sync-scheduler",
	}
}

// Trigger queues an immediate run. It returns false when one is already
// queued.
func (s *SchedulerService) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Serve implements suture.Service.
func (s *SchedulerService) Serve(ctx context.Context) error {
	if err := s.runOnce(ctx, "startup"); err != nil {
		return err
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.runOnce(ctx, "schedule"); err != nil {
				return err
			}
		case <-s.trigger:
			if err := s.runOnce(ctx, "trigger"); err != nil {
				return err
			}
		}
	}
}

func (s *SchedulerService) runOnce(ctx context.Context, reason string) error {
	report, err := s.runner.Run(ctx)
	switch {
	case err == nil:
		logging.Debug().Str("reason", reason).Str("run_id", report.RunID).Msg("Scheduled sync finished")
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, runguard.ErrAlreadyRunning):
		logging.Info().Str("reason", reason).Msg("Sync already running elsewhere, skipping tick")
		return nil
	case errors.Is(err, runguard.ErrLockUnreadable), errors.Is(err, runguard.ErrLockReclaimFailed):
		return fmt.Errorf("sync run lock: %w", err)
	default:
		logging.Warn().Err(err).Str("reason", reason).Msg("Sync run did not complete")
		return nil
	}
}

// String implements fmt.Stringer; suture uses it in event logs.
func (s *SchedulerService) String() string {
	return s.name
}
