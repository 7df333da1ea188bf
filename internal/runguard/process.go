// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package runguard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessController inspects and signals other processes.
type ProcessController interface {
	Alive(ctx context.Context, pid int) (bool, error)
	// StartedAt reports when pid was created, so a recycled pid can be told
	// apart from the process that wrote a lock record.
	StartedAt(ctx context.Context, pid int) (time.Time, error)
	Terminate(ctx context.Context, pid int) error
	Kill(ctx context.Context, pid int) error
}

// NewProcessController returns the gopsutil-backed controller.
func NewProcessController() ProcessController {
	return psController{}
}

type psController struct{}

func (psController) Alive(ctx context.Context, pid int) (bool, error) {
	p32, err := toPID(pid)
	if err != nil {
		return false, err
	}
	exists, err := process.PidExistsWithContext(ctx, p32)
	if err != nil || !exists {
		return exists, err
	}

	// A zombie has exited and only waits to be reaped.
	p, err := process.NewProcessWithContext(ctx, p32)
	if errors.Is(err, process.ErrorProcessNotRunning) {
		return false, nil
	}
	if err != nil {
		return true, nil
	}
	status, err := p.StatusWithContext(ctx)
	if err == nil && slices.Contains(status, process.Zombie) {
		return false, nil
	}
	return true, nil
}

func (psController) StartedAt(ctx context.Context, pid int) (time.Time, error) {
	p, err := lookup(ctx, pid)
	if err != nil {
		return time.Time{}, err
	}
	ms, err := p.CreateTimeWithContext(ctx)
	if err != nil {
		return time.Time{}, fmt.Errorf("create time of %d: %w", pid, err)
	}
	return time.UnixMilli(ms), nil
}

func (psController) Terminate(ctx context.Context, pid int) error {
	p, err := lookup(ctx, pid)
	if err != nil {
		return err
	}
	return p.TerminateWithContext(ctx)
}

func (psController) Kill(ctx context.Context, pid int) error {
	p, err := lookup(ctx, pid)
	if err != nil {
		return err
	}
	return p.KillWithContext(ctx)
}

func lookup(ctx context.Context, pid int) (*process.Process, error) {
	p32, err := toPID(pid)
	if err != nil {
		return nil, err
	}
	p, err := process.NewProcessWithContext(ctx, p32)
	if err != nil {
		return nil, fmt.Errorf("find process %d: %w", pid, err)
	}
	return p, nil
}

func toPID(pid int) (int32, error) {
	if pid <= 0 || pid > math.MaxInt32 {
		return 0, fmt.Errorf("invalid pid %d", pid)
	}
	return int32(pid), nil
}
