// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package runguard

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/camsync/internal/logging"
	"github.com/tomtom215/camsync/internal/metrics"
)

var (
	// ErrAlreadyRunning means a live, non-stale run holds the lock. It is an
	// expected condition, not a failure.
	ErrAlreadyRunning = errors.New("another sync run is in progress")

	// ErrLockUnreadable means a lock record exists but cannot be parsed. The
	// guard refuses to guess who owns it.
	ErrLockUnreadable = errors.New("run lock is unreadable")

	// ErrLockReclaimFailed means a stale owner could not be terminated.
	ErrLockReclaimFailed = errors.New("failed to reclaim stale run lock")
)

// State is the guard's lifecycle state.
type State int

const (
	Unlocked State = iota
	Acquiring
	Held
	Released
)

func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Acquiring:
		return "acquiring"
	case Held:
		return "held"
	case Released:
		return "released"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Record is the persisted lock owner.
type Record struct {
	PID        int       `json:"pid"`
	AcquiredAt time.Time `json:"acquired_at"`
	Hostname   string    `json:"hostname,omitempty"`
}

// Age returns how long the record has been held at now.
func (r Record) Age(now time.Time) time.Duration {
	return now.Sub(r.AcquiredAt)
}

// Options configure a Guard.
type Options struct {
	Path          string
	StaleAfter    time.Duration
	TerminateWait time.Duration

	// Procs defaults to the gopsutil-backed controller.
	Procs ProcessController
	// Now defaults to time.Now.
	Now func() time.Time
	// PollInterval is how often liveness is re-checked while waiting for a
	// terminated owner to exit. Defaults to 200ms.
	PollInterval time.Duration
}

// Guard is a cross-process single-instance lock backed by a file.
type Guard struct {
	opts Options
	pid  int
	host string

	mu    sync.Mutex
	state State
	held  Record
}

// New creates a Guard in the Unlocked state.
func New(opts Options) *Guard {
	if opts.Procs == nil {
		opts.Procs = NewProcessController()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 200 * time.Millisecond
	}
	host, _ := os.Hostname()
	return &Guard{opts: opts, pid: os.Getpid(), host: host}
}

// State returns the current lifecycle state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Acquire takes the lock. It returns ErrAlreadyRunning when a live, fresh
// owner holds it, ErrLockUnreadable for an unparsable record, and
// ErrLockReclaimFailed when a stale owner survives termination.
func (g *Guard) Acquire(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == Held {
		return nil
	}
	g.state = Acquiring

	err := g.acquire(ctx)
	if err != nil {
		g.state = Unlocked
		return err
	}
	g.state = Held
	metrics.RecordLockEvent(metrics.LockAcquired)
	logging.Ctx(ctx).Info().
		Str("path", g.opts.Path).
		Int("pid", g.pid).
		Msg("Run lock acquired")
	return nil
}

func (g *Guard) acquire(ctx context.Context) error {
	//nolint:gosec // G301: lock directory is shared with the ledger
	if err := os.MkdirAll(filepath.Dir(g.opts.Path), 0o755); err != nil {
		return fmt.Errorf("prepare lock directory: %w", err)
	}

	// One create attempt, then at most one reclaim and a second attempt. A
	// second contention means someone else won the race.
	for attempt := 0; attempt < 2; attempt++ {
		created, err := g.tryCreate()
		if err != nil {
			return err
		}
		if created {
			return nil
		}

		owner, err := readRecord(g.opts.Path)
		if errors.Is(err, os.ErrNotExist) {
			continue // released between our create and read
		}
		if err != nil {
			metrics.RecordLockEvent(metrics.LockUnreadable)
			return fmt.Errorf("%w: %s: %w", ErrLockUnreadable, g.opts.Path, err)
		}

		if attempt > 0 {
			metrics.RecordLockEvent(metrics.LockContended)
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, owner.PID)
		}
		if err := g.resolve(ctx, owner); err != nil {
			return err
		}
	}
	metrics.RecordLockEvent(metrics.LockContended)
	return ErrAlreadyRunning
}

// resolve decides what to do about an existing owner. A nil return means the
// record was removed and acquisition may be retried.
func (g *Guard) resolve(ctx context.Context, owner Record) error {
	log := logging.Ctx(ctx).With().
		Int("owner_pid", owner.PID).
		Str("owner_host", owner.Hostname).
		Time("acquired_at", owner.AcquiredAt).
		Logger()

	age := owner.Age(g.opts.Now())

	// A pid recorded on another host says nothing about processes here.
	if g.foreignHost(owner) {
		if age > g.opts.StaleAfter {
			log.Warn().
				Dur("age", age).
				Msg("Run lock from another host is stale; remove it on that host or by hand")
		}
		metrics.RecordLockEvent(metrics.LockContended)
		return fmt.Errorf("%w (pid %d on %s, held for %s)", ErrAlreadyRunning, owner.PID, owner.Hostname, age.Round(time.Second))
	}

	alive := owner.PID != g.pid && g.alive(ctx, owner.PID)
	if alive && g.pidReused(ctx, owner) {
		log.Warn().Msg("Run lock pid now belongs to a newer process")
		alive = false
	}
	if !alive {
		log.Warn().Msg("Run lock owner is gone, reclaiming")
		metrics.RecordLockEvent(metrics.LockReclaimedDead)
		return g.removeIfUnchanged(owner)
	}

	if age <= g.opts.StaleAfter {
		metrics.RecordLockEvent(metrics.LockContended)
		return fmt.Errorf("%w (pid %d, held for %s)", ErrAlreadyRunning, owner.PID, age.Round(time.Second))
	}

	log.Warn().
		Dur("age", age).
		Dur("stale_after", g.opts.StaleAfter).
		Msg("Run lock is stale, terminating owner")

	if err := g.reclaim(ctx, owner.PID); err != nil {
		metrics.RecordLockEvent(metrics.LockReclaimFailed)
		log.Error().Err(err).Msg("Stale run lock reclaim failed")
		return err
	}
	metrics.RecordLockEvent(metrics.LockReclaimedStale)
	log.Warn().Msg("Stale run lock owner terminated, reclaiming")
	return g.removeIfUnchanged(owner)
}

// foreignHost reports whether owner was written on a different host. Records
// without a hostname are treated as local.
func (g *Guard) foreignHost(owner Record) bool {
	return owner.Hostname != "" && g.host != "" && owner.Hostname != g.host
}

// pidStartSlack absorbs the coarse clock behind process create times.
const pidStartSlack = 2 * time.Second

// pidReused reports whether the process now running as owner.PID started
// after the lock was written, meaning the recorded owner exited and its pid
// was recycled. An unknown start time is not evidence of reuse.
func (g *Guard) pidReused(ctx context.Context, owner Record) bool {
	started, err := g.opts.Procs.StartedAt(ctx, owner.PID)
	if err != nil || started.IsZero() {
		return false
	}
	return started.After(owner.AcquiredAt.Add(pidStartSlack))
}

// reclaim terminates pid, escalating to kill, and verifies it is gone.
func (g *Guard) reclaim(ctx context.Context, pid int) error {
	if err := g.opts.Procs.Terminate(ctx, pid); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int("pid", pid).Msg("Terminate signal failed")
	}
	if g.waitGone(ctx, pid) {
		return nil
	}

	logging.Ctx(ctx).Warn().Int("pid", pid).Msg("Owner ignored terminate, killing")
	if err := g.opts.Procs.Kill(ctx, pid); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int("pid", pid).Msg("Kill signal failed")
	}
	if g.waitGone(ctx, pid) {
		return nil
	}
	return fmt.Errorf("%w: pid %d still alive after %s", ErrLockReclaimFailed, pid, 2*g.opts.TerminateWait)
}

// waitGone polls until pid exits or TerminateWait elapses.
func (g *Guard) waitGone(ctx context.Context, pid int) bool {
	deadline := time.NewTimer(g.opts.TerminateWait)
	defer deadline.Stop()
	tick := time.NewTicker(g.opts.PollInterval)
	defer tick.Stop()

	for {
		if !g.alive(ctx, pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return !g.alive(ctx, pid)
		case <-tick.C:
		}
	}
}

// alive treats liveness check errors as alive so an unknown owner is never reclaimed.
func (g *Guard) alive(ctx context.Context, pid int) bool {
	ok, err := g.opts.Procs.Alive(ctx, pid)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int("pid", pid).Msg("Process liveness check failed")
		return true
	}
	return ok
}

// tryCreate atomically creates the lock record. It reports false when a
// record already exists.
func (g *Guard) tryCreate() (bool, error) {
	rec := Record{PID: g.pid, AcquiredAt: g.opts.Now().UTC(), Hostname: g.host}
	data, err := json.Marshal(rec)
	if err != nil {
		return false, fmt.Errorf("encode lock record: %w", err)
	}

	f, err := os.OpenFile(g.opts.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create run lock: %w", err)
	}

	_, werr := f.Write(append(data, '\n'))
	serr := f.Sync()
	cerr := f.Close()
	if err := errors.Join(werr, serr, cerr); err != nil {
		_ = os.Remove(g.opts.Path)
		return false, fmt.Errorf("write run lock: %w", err)
	}
	g.held = rec
	return true, nil
}

// removeIfUnchanged removes the lock only if it still holds owner, so a
// record written by a faster contender is left alone.
func (g *Guard) removeIfUnchanged(owner Record) error {
	current, err := readRecord(g.opts.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLockUnreadable, err)
	}
	if current.PID != owner.PID || !current.AcquiredAt.Equal(owner.AcquiredAt) {
		metrics.RecordLockEvent(metrics.LockContended)
		return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, current.PID)
	}
	if err := os.Remove(g.opts.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale run lock: %w", err)
	}
	return nil
}

// Release removes the lock record if this guard holds it. It is safe to call
// on every exit path, any number of times.
func (g *Guard) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != Held {
		return nil
	}
	g.state = Released

	current, err := readRecord(g.opts.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return fmt.Errorf("read run lock on release: %w", err)
	case current.PID != g.held.PID || !current.AcquiredAt.Equal(g.held.AcquiredAt):
		logging.Warn().
			Int("owner_pid", current.PID).
			Msg("Run lock was taken over, leaving it in place")
		return nil
	}

	if err := os.Remove(g.opts.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove run lock: %w", err)
	}
	metrics.RecordLockEvent(metrics.LockReleased)
	logging.Info().Str("path", g.opts.Path).Msg("Run lock released")
	return nil
}

// Inspect reads the lock record at path without taking any action.
func Inspect(path string) (Record, error) {
	rec, err := readRecord(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Record{}, fmt.Errorf("%w: %w", ErrLockUnreadable, err)
	}
	return rec, err
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path) //nolint:gosec // configured lock path
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode lock record: %w", err)
	}
	if rec.PID <= 0 || rec.AcquiredAt.IsZero() {
		return Record{}, fmt.Errorf("lock record missing pid or timestamp")
	}
	return rec, nil
}
