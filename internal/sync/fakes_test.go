// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package sync

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/camsync/internal/ledger"
	"github.com/tomtom215/camsync/internal/merger"
	"github.com/tomtom215/camsync/internal/models"
	"github.com/tomtom215/camsync/internal/storage"
)

var (
	testNow   = time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	testToday = "20260102"
	clipBase  = time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC).Unix()
)

// clip builds an item starting offset seconds after 10:00 UTC on the test day.
func clip(camera, id string, offset int64, dur int) models.RemoteItem {
	return models.RemoteItem{
		CameraID:        camera,
		ItemID:          id,
		CaptureStart:    (clipBase + offset) * 1000,
		DurationSeconds: dur,
		FetchURL:        "http://cdn/" + camera + "/" + id,
		Name:            id,
		ContentType:     "video/mp4",
	}
}

type fakeSource struct {
	mu         sync.Mutex
	cameras    []models.Camera
	camerasErr error
	items      map[string][]models.RemoteItem
	itemsErr   map[string]error
	panicOn    string
	openErr    map[models.Tag]error
	listed     []string
	opened     int
	resets     int
}

func newFakeSource(cameras ...models.Camera) *fakeSource {
	return &fakeSource{
		cameras:  cameras,
		items:    make(map[string][]models.RemoteItem),
		itemsErr: make(map[string]error),
		openErr:  make(map[models.Tag]error),
	}
}

func (f *fakeSource) Cameras(_ context.Context) ([]models.Camera, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.camerasErr != nil {
		return nil, f.camerasErr
	}
	return append([]models.Camera(nil), f.cameras...), nil
}

func (f *fakeSource) Items(_ context.Context, camera string, _, _ time.Time) ([]models.RemoteItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listed = append(f.listed, camera)
	if camera == f.panicOn {
		panic("listing exploded")
	}
	if err := f.itemsErr[camera]; err != nil {
		return nil, err
	}
	return append([]models.RemoteItem(nil), f.items[camera]...), nil
}

func (f *fakeSource) Open(_ context.Context, item models.RemoteItem) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.openErr[item.Tag()]; err != nil {
		return nil, err
	}
	f.opened++
	return io.NopCloser(bytes.NewReader([]byte("clip:" + string(item.Tag())))), nil
}

func (f *fakeSource) ResetCache() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeSource) listedCameras() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.listed...)
}

type fakeBackend struct {
	mu       sync.Mutex
	files    map[string][]byte
	writes   int
	failFile string
	onBackup func(call int)

	expireCutoffs []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{files: make(map[string][]byte)}
}

func (b *fakeBackend) Name() string { return "fake" }
func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) Backup(_ context.Context, r io.Reader, dir, file string) (storage.Result, error) {
	b.mu.Lock()
	b.writes++
	call := b.writes
	hook := b.onBackup
	b.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if file == b.failFile {
		return storage.Result{}, errors.New("disk full")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.Result{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.files[path.Join(dir, file)] = data
	return storage.Result{Location: path.Join(dir, file), Bytes: int64(len(data))}, nil
}

func (b *fakeBackend) ExpireBefore(_ context.Context, cutoff string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.expireCutoffs = append(b.expireCutoffs, cutoff)
	return 2, nil
}

func (b *fakeBackend) writeCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func (b *fakeBackend) has(p string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[p]
	return ok
}

// fakeMerger stands in for merger.Merger.
type fakeMerger struct {
	mu     sync.Mutex
	groups [][]models.RemoteItem
	err    error
}

func (m *fakeMerger) Merge(_ context.Context, cam models.Camera, group []models.RemoteItem) (merger.Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups = append(m.groups, group)
	if m.err != nil {
		return merger.Output{}, m.err
	}
	dir, file, dur := merger.Target(cam, group)
	return merger.Output{Dir: dir, File: file, Duration: dur, Result: storage.Result{Location: dir + "/" + file, Bytes: 100}}, nil
}

// memStore keeps ledger snapshots in memory.
type memStore struct {
	mu    sync.Mutex
	snap  ledger.Snapshot
	saves int
}

func (s *memStore) Load(_ context.Context) (ledger.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(ledger.Snapshot, len(s.snap))
	for k, v := range s.snap {
		out[k] = v
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, snap ledger.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap = snap
	s.saves++
	return nil
}

func (s *memStore) Close() error { return nil }

func newLedger(t *testing.T) (*ledger.Ledger, *memStore) {
	t.Helper()
	store := &memStore{}
	l, err := ledger.Load(context.Background(), store)
	if err != nil {
		t.Fatalf("ledger.Load: %v", err)
	}
	return l, store
}

func intPtr(v int) *int { return &v }

func baseOptions(cams ...models.Camera) Options {
	return Options{
		Cameras:               cams,
		LookbackDays:          1,
		CheckpointInterval:    25,
		CameraWorkers:         1,
		ItemTimeout:           time.Minute,
		IncludeUnknownCameras: true,
		Now:                   func() time.Time { return testNow },
	}
}
