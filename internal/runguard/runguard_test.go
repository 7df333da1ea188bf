// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package runguard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// fakeProcs simulates processes. A pid in alive is running; dieOn controls
// which signal, if any, makes it exit.
type fakeProcs struct {
	mu         sync.Mutex
	alive      map[int]bool
	dieOn      map[int]string // "terminate", "kill", or "" for unkillable
	aliveErr   error
	started    map[int]time.Time // zero means unknown
	terminated []int
	killed     []int
}

func newFakeProcs() *fakeProcs {
	return &fakeProcs{alive: map[int]bool{}, dieOn: map[int]string{}, started: map[int]time.Time{}}
}

func (f *fakeProcs) Alive(_ context.Context, pid int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.aliveErr != nil {
		return false, f.aliveErr
	}
	return f.alive[pid], nil
}

func (f *fakeProcs) StartedAt(_ context.Context, pid int) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started[pid], nil
}

func (f *fakeProcs) Terminate(_ context.Context, pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated = append(f.terminated, pid)
	if f.dieOn[pid] == "terminate" {
		f.alive[pid] = false
	}
	return nil
}

func (f *fakeProcs) Kill(_ context.Context, pid int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, pid)
	if f.dieOn[pid] == "terminate" || f.dieOn[pid] == "kill" {
		f.alive[pid] = false
		return nil
	}
	return errors.New("operation not permitted")
}

var baseTime = time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)

func newTestGuard(t *testing.T, procs *fakeProcs) (*Guard, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run", "camsync.lock")
	g := New(Options{
		Path:          path,
		StaleAfter:    6 * time.Hour,
		TerminateWait: 40 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
		Procs:         procs,
		Now:           func() time.Time { return baseTime },
	})
	return g, path
}

func writeLock(t *testing.T, path string, rec Record) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestAcquireRelease_Fresh(t *testing.T) {
	g, path := newTestGuard(t, newFakeProcs())

	if g.State() != Unlocked {
		t.Fatalf("initial state = %v", g.State())
	}
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if g.State() != Held {
		t.Errorf("state = %v, want held", g.State())
	}

	rec, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if rec.PID != os.Getpid() || !rec.AcquiredAt.Equal(baseTime) {
		t.Errorf("record = %+v", rec)
	}

	// Acquire while held is a no-op.
	if err := g.Acquire(context.Background()); err != nil {
		t.Errorf("re-Acquire() error = %v", err)
	}

	if err := g.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("lock file still present after release: %v", err)
	}
	if err := g.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}
	if g.State() != Released {
		t.Errorf("state = %v, want released", g.State())
	}
}

func TestAcquire_Contention(t *testing.T) {
	const owner = 4242

	tests := []struct {
		name          string
		age           time.Duration
		alive         bool
		dieOn         string
		aliveErr      error
		wantErr       error
		wantTerminate bool
		wantKill      bool
	}{
		{
			name:    "live fresh owner",
			age:     time.Hour,
			alive:   true,
			wantErr: ErrAlreadyRunning,
		},
		{
			name:  "dead owner reclaimed",
			age:   time.Minute,
			alive: false,
		},
		{
			name:  "dead stale owner reclaimed without signals",
			age:   24 * time.Hour,
			alive: false,
		},
		{
			name:          "live stale owner exits on terminate",
			age:           7 * time.Hour,
			alive:         true,
			dieOn:         "terminate",
			wantTerminate: true,
		},
		{
			name:          "live stale owner needs kill",
			age:           7 * time.Hour,
			alive:         true,
			dieOn:         "kill",
			wantTerminate: true,
			wantKill:      true,
		},
		{
			name:          "unkillable stale owner",
			age:           7 * time.Hour,
			alive:         true,
			wantErr:       ErrLockReclaimFailed,
			wantTerminate: true,
			wantKill:      true,
		},
		{
			name:     "liveness check failure treated as alive",
			age:      time.Minute,
			aliveErr: errors.New("permission denied"),
			wantErr:  ErrAlreadyRunning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			procs := newFakeProcs()
			procs.alive[owner] = tt.alive
			procs.dieOn[owner] = tt.dieOn
			procs.aliveErr = tt.aliveErr

			g, path := newTestGuard(t, procs)
			writeLock(t, path, Record{PID: owner, AcquiredAt: baseTime.Add(-tt.age)})

			err := g.Acquire(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Acquire() error = %v, want %v", err, tt.wantErr)
			}

			rec, inspectErr := Inspect(path)
			if inspectErr != nil {
				t.Fatalf("Inspect() error = %v", inspectErr)
			}
			if tt.wantErr == nil {
				if rec.PID != os.Getpid() {
					t.Errorf("lock owner = %d, want us", rec.PID)
				}
				if g.State() != Held {
					t.Errorf("state = %v, want held", g.State())
				}
			} else {
				if rec.PID != owner {
					t.Errorf("lock owner = %d, want untouched %d", rec.PID, owner)
				}
				if g.State() != Unlocked {
					t.Errorf("state = %v, want unlocked", g.State())
				}
			}

			if got := len(procs.terminated) > 0; got != tt.wantTerminate {
				t.Errorf("terminated = %v, want %v", procs.terminated, tt.wantTerminate)
			}
			if got := len(procs.killed) > 0; got != tt.wantKill {
				t.Errorf("killed = %v, want %v", procs.killed, tt.wantKill)
			}
		})
	}
}

func TestAcquire_OtherHostOwner(t *testing.T) {
	const owner = 4242

	tests := []struct {
		name  string
		age   time.Duration
		alive bool
	}{
		{name: "fresh", age: time.Minute, alive: true},
		{name: "pid unused here", age: time.Minute, alive: false},
		{name: "stale", age: 24 * time.Hour, alive: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			procs := newFakeProcs()
			procs.alive[owner] = tt.alive
			procs.dieOn[owner] = "terminate"

			g, path := newTestGuard(t, procs)
			g.host = "nas-a"
			writeLock(t, path, Record{PID: owner, AcquiredAt: baseTime.Add(-tt.age), Hostname: "nas-b"})

			if err := g.Acquire(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
				t.Fatalf("Acquire() error = %v, want ErrAlreadyRunning", err)
			}
			if len(procs.terminated) != 0 || len(procs.killed) != 0 {
				t.Errorf("signalled a local pid for another host's lock: terminated=%v killed=%v", procs.terminated, procs.killed)
			}
			rec, err := Inspect(path)
			if err != nil || rec.Hostname != "nas-b" {
				t.Errorf("lock = %+v, %v; want the other host's record untouched", rec, err)
			}
		})
	}
}

func TestAcquire_SameHostRecordIsLocal(t *testing.T) {
	const owner = 4242
	procs := newFakeProcs()

	g, path := newTestGuard(t, procs)
	g.host = "nas-a"
	writeLock(t, path, Record{PID: owner, AcquiredAt: baseTime.Add(-time.Minute), Hostname: "nas-a"})

	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v, want dead owner reclaimed", err)
	}
}

func TestAcquire_RecycledPID(t *testing.T) {
	const owner = 4242
	acquired := baseTime.Add(-7 * time.Hour)

	tests := []struct {
		name          string
		started       time.Time
		wantErr       error
		wantTerminate bool
	}{
		{
			name:    "pid started after the lock was written",
			started: acquired.Add(time.Hour),
		},
		{
			name:          "original owner still running",
			started:       acquired.Add(-time.Second),
			wantTerminate: true,
		},
		{
			name:          "start time within clock slack",
			started:       acquired.Add(time.Second),
			wantTerminate: true,
		},
		{
			name:          "start time unknown",
			wantTerminate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			procs := newFakeProcs()
			procs.alive[owner] = true
			procs.dieOn[owner] = "terminate"
			procs.started[owner] = tt.started

			g, path := newTestGuard(t, procs)
			writeLock(t, path, Record{PID: owner, AcquiredAt: acquired})

			if err := g.Acquire(context.Background()); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Acquire() error = %v, want %v", err, tt.wantErr)
			}
			if got := len(procs.terminated) > 0; got != tt.wantTerminate {
				t.Errorf("terminated = %v, want %v", procs.terminated, tt.wantTerminate)
			}
			if rec, err := Inspect(path); err != nil || rec.PID != os.Getpid() {
				t.Errorf("lock = %+v, %v; want ours", rec, err)
			}
		})
	}
}

func TestAcquire_Unreadable(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"garbage", "not json at all"},
		{"missing pid", `{"acquired_at":"2026-10-18T00:00:00Z"}`},
		{"missing timestamp", `{"pid":12}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, path := newTestGuard(t, newFakeProcs())
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				t.Fatal(err)
			}
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}

			if err := g.Acquire(context.Background()); !errors.Is(err, ErrLockUnreadable) {
				t.Fatalf("Acquire() error = %v, want ErrLockUnreadable", err)
			}
			data, _ := os.ReadFile(path)
			if string(data) != tt.content {
				t.Error("unreadable lock was modified")
			}
		})
	}
}

func TestAcquire_OwnPIDReclaimed(t *testing.T) {
	procs := newFakeProcs()
	procs.alive[os.Getpid()] = true

	g, path := newTestGuard(t, procs)
	writeLock(t, path, Record{PID: os.Getpid(), AcquiredAt: baseTime.Add(-time.Minute)})

	if err := g.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	if len(procs.terminated) != 0 {
		t.Error("must never signal our own pid")
	}
}

func TestRelease_LeavesForeignLock(t *testing.T) {
	g, path := newTestGuard(t, newFakeProcs())
	if err := g.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	// Another instance reclaimed our lock while we were stuck.
	foreign := Record{PID: 9999, AcquiredAt: baseTime.Add(time.Hour)}
	writeLock(t, path, foreign)

	if err := g.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	rec, err := Inspect(path)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if rec.PID != foreign.PID {
		t.Errorf("foreign lock removed: %+v", rec)
	}
}

func TestInspect_Missing(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "none.lock"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Inspect() error = %v, want ErrNotExist", err)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[State]string{
		Unlocked: "unlocked", Acquiring: "acquiring", Held: "held", Released: "released", State(9): "state(9)",
	} {
		if got := s.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(s), got, want)
		}
	}
}
