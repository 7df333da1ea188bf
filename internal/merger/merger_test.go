// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package merger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/camsync/internal/models"
	"github.com/tomtom215/camsync/internal/storage"
)

type fakeFetcher struct {
	fail map[string]bool
}

func (f *fakeFetcher) Open(_ context.Context, item models.RemoteItem) (io.ReadCloser, error) {
	if f.fail[item.ItemID] {
		return nil, errors.New("403 url expired")
	}
	return io.NopCloser(strings.NewReader("<" + item.ItemID + ">")), nil
}

type backupCall struct {
	dir, file string
	data      string
}

type fakeBackend struct {
	mu    sync.Mutex
	calls []backupCall
	err   error
}

func (b *fakeBackend) Backup(_ context.Context, r io.Reader, dir, file string) (storage.Result, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return storage.Result{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return storage.Result{}, b.err
	}
	b.calls = append(b.calls, backupCall{dir: dir, file: file, data: string(data)})
	return storage.Result{Location: dir + "/" + file, Bytes: int64(len(data))}, nil
}

func (b *fakeBackend) Name() string { return "fake" }
func (b *fakeBackend) Close() error { return nil }

// concatCombiner writes its inputs back to back and records them.
type concatCombiner struct {
	inputs []string
	err    error
}

func (c *concatCombiner) Combine(_ context.Context, inputs []string, output string) error {
	c.inputs = inputs
	if c.err != nil {
		return c.err
	}
	var buf bytes.Buffer
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return err
		}
		buf.Write(data)
	}
	return os.WriteFile(output, buf.Bytes(), 0o600)
}

// group returns a newest-first group of n 10s clips spaced 2s apart.
func group(n int) []models.RemoteItem {
	const newest = int64(1_792_300_000) // 2026-10-18 UTC
	items := make([]models.RemoteItem, n)
	for i := range items {
		items[i] = models.RemoteItem{
			CameraID:        "CAM1",
			ItemID:          fmt.Sprintf("clip%d", i),
			Name:            fmt.Sprintf("clip%d.mp4", i),
			CaptureStart:    (newest - int64(i)*12) * 1000,
			DurationSeconds: 10,
			ContentType:     "video/mp4",
		}
	}
	return items
}

var testCamera = models.Camera{SerialID: "CAM1", DisplayName: "Driveway"}

func scratchEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("scratch not cleaned: %d entries left", len(entries))
	}
}

func TestMerge_Success(t *testing.T) {
	scratch := t.TempDir()
	backend := &fakeBackend{}
	combiner := &concatCombiner{}
	m := New(&fakeFetcher{}, backend, combiner, Options{ScratchDir: scratch})

	g := group(3)
	out, err := m.Merge(context.Background(), testCamera, g)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	// Combined strictly oldest to newest.
	var order []string
	for _, in := range combiner.inputs {
		order = append(order, in[strings.LastIndex(in, string(os.PathSeparator))+1:])
	}
	if strings.Join(order, ",") != "clip2.mp4,clip1.mp4,clip0.mp4" {
		t.Errorf("combine order = %v", order)
	}

	if len(backend.calls) != 1 {
		t.Fatalf("backend calls = %d, want 1", len(backend.calls))
	}
	call := backend.calls[0]
	oldest := g[2]
	wantDir := models.OutputDir(testCamera, oldest.StartTime())
	wantFile := models.OutputName(testCamera, oldest.StartTime(), 34, ".mp4")
	if call.dir != wantDir || call.file != wantFile {
		t.Errorf("backup target = %s/%s, want %s/%s", call.dir, call.file, wantDir, wantFile)
	}
	if call.data != "<clip2><clip1><clip0>" {
		t.Errorf("backup data = %q", call.data)
	}
	if out.Duration != 34 || out.File != wantFile {
		t.Errorf("Output = %+v", out)
	}

	scratchEmpty(t, scratch)
}

func TestMerge_Failures(t *testing.T) {
	tests := []struct {
		name       string
		fetchFail  map[string]bool
		combineErr error
		backupErr  error
		wantErr    error
	}{
		{
			name:       "combine fails",
			combineErr: errors.New("exit status 1"),
			wantErr:    ErrCombineFailed,
		},
		{
			name:      "one member cannot be fetched",
			fetchFail: map[string]bool{"clip1": true},
			wantErr:   ErrFetchFailed,
		},
		{
			name:      "backend rejects upload",
			backupErr: errors.New("access denied"),
			wantErr:   ErrBackupFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scratch := t.TempDir()
			backend := &fakeBackend{err: tt.backupErr}
			m := New(&fakeFetcher{fail: tt.fetchFail}, backend, &concatCombiner{err: tt.combineErr}, Options{ScratchDir: scratch})

			_, err := m.Merge(context.Background(), testCamera, group(3))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Merge() error = %v, want %v", err, tt.wantErr)
			}
			if len(backend.calls) != 0 {
				t.Errorf("backend written despite failure: %+v", backend.calls)
			}
			scratchEmpty(t, scratch)
		})
	}
}

func TestMerge_RejectsSingleton(t *testing.T) {
	m := New(&fakeFetcher{}, &fakeBackend{}, &concatCombiner{}, Options{ScratchDir: t.TempDir()})
	if _, err := m.Merge(context.Background(), testCamera, group(1)); err == nil {
		t.Error("expected error for single-item group")
	}
}

func TestMerge_DuplicateNamesStagedSeparately(t *testing.T) {
	g := group(2)
	g[0].Name, g[1].Name = "same.mp4", "same.mp4"

	backend := &fakeBackend{}
	m := New(&fakeFetcher{}, backend, &concatCombiner{}, Options{ScratchDir: t.TempDir()})
	if _, err := m.Merge(context.Background(), testCamera, g); err != nil {
		t.Fatal(err)
	}
	if got := backend.calls[0].data; got != "<clip1><clip0>" {
		t.Errorf("data = %q, want both clips", got)
	}
}

func TestMerge_CombineTimeout(t *testing.T) {
	blocking := CombinerFunc(func(ctx context.Context, _ []string, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	m := New(&fakeFetcher{}, &fakeBackend{}, blocking, Options{ScratchDir: t.TempDir(), Timeout: 20 * time.Millisecond})

	_, err := m.Merge(context.Background(), testCamera, group(2))
	if !errors.Is(err, ErrCombineFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Merge() error = %v, want combine deadline", err)
	}
}
