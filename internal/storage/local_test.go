// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocal_Backup(t *testing.T) {
	l, err := NewLocal(filepath.Join(t.TempDir(), "recordings"))
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	ctx := context.Background()

	res, err := l.Backup(ctx, strings.NewReader("clip-bytes"), "20261018/Driveway", "Driveway_20261018_071502_45s.mp4")
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if res.Skipped || res.Bytes != int64(len("clip-bytes")) {
		t.Errorf("Result = %+v", res)
	}
	want := filepath.Join(l.Root(), "20261018", "Driveway", "Driveway_20261018_071502_45s.mp4")
	if res.Location != want {
		t.Errorf("Location = %q, want %q", res.Location, want)
	}

	// Second write with the same identity is skipped and keeps the original.
	res, err = l.Backup(ctx, strings.NewReader("other"), "20261018/Driveway", "Driveway_20261018_071502_45s.mp4")
	if err != nil {
		t.Fatalf("second Backup() error = %v", err)
	}
	if !res.Skipped || res.Bytes != 0 {
		t.Errorf("second Result = %+v, want skipped", res)
	}

	rc, err := l.Open("20261018/Driveway", "Driveway_20261018_071502_45s.mp4")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "clip-bytes" {
		t.Errorf("content = %q", data)
	}

	ok, err := l.Exists("20261018/Driveway", "missing.mp4")
	if err != nil || ok {
		t.Errorf("Exists(missing) = %v, %v", ok, err)
	}
}

func TestLocal_BackupReportsStatErrors(t *testing.T) {
	root := t.TempDir()
	l, err := NewLocal(root)
	if err != nil {
		t.Fatalf("NewLocal() error = %v", err)
	}
	// A regular file where the date directory should be makes Stat fail
	// with something other than "not exist".
	if err := os.WriteFile(filepath.Join(root, "20261018"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err = l.Backup(context.Background(), strings.NewReader("clip"), "20261018/Driveway_CAM1", "a.mp4")
	if err == nil {
		t.Fatal("Backup() succeeded over an unreadable destination")
	}
	if !strings.HasPrefix(err.Error(), "stat ") {
		t.Errorf("Backup() error = %v, want the stat failure reported", err)
	}
	if errors.Is(err, os.ErrNotExist) {
		t.Errorf("Backup() error = %v, must not look like a missing file", err)
	}
}

type failingReader struct{ after int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("connection reset")
	}
	n := min(len(p), f.after)
	for i := range p[:n] {
		p[i] = 'x'
	}
	f.after -= n
	return n, nil
}

func TestLocal_FailedWriteLeavesNothing(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	_, err = l.Backup(context.Background(), &failingReader{after: 100}, "d", "clip.mp4")
	if err == nil {
		t.Fatal("expected error")
	}

	entries, _ := os.ReadDir(filepath.Join(l.Root(), "d"))
	if len(entries) != 0 {
		t.Errorf("partial files left behind: %d entries", len(entries))
	}

	// A retry must not be skipped as already present.
	res, err := l.Backup(context.Background(), strings.NewReader("ok"), "d", "clip.mp4")
	if err != nil || res.Skipped {
		t.Errorf("retry Backup() = %+v, %v", res, err)
	}
}

func TestLocal_CancelledContext(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := l.Backup(ctx, strings.NewReader("data"), "d", "clip.mp4"); !errors.Is(err, context.Canceled) {
		t.Errorf("Backup() error = %v, want context.Canceled", err)
	}
}

func TestLocal_RejectsEscapes(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		dir  string
		file string
	}{
		{"parent dir", "../outside", "clip.mp4"},
		{"nested parent", "a/../../b", "clip.mp4"},
		{"absolute dir", "/etc", "clip.mp4"},
		{"slash in file", "d", "x/clip.mp4"},
		{"empty file", "d", ""},
		{"dotdot file", "d", ".."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := l.Backup(context.Background(), strings.NewReader("x"), tt.dir, tt.file); err == nil {
				t.Error("expected identity error")
			}
		})
	}
}

func TestLocal_ExpireBefore(t *testing.T) {
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	write := func(dir, file string) {
		t.Helper()
		if _, err := l.Backup(ctx, strings.NewReader("x"), dir, file); err != nil {
			t.Fatal(err)
		}
	}
	write("20260801/Driveway", "a.mp4")
	write("20260815/Porch", "b.mp4")
	write("20261018/Driveway", "c.mp4")
	write("notes", "keep.txt")

	// An empty camera directory inside a kept date.
	if err := os.MkdirAll(filepath.Join(l.Root(), "20261018", "Garage"), 0o755); err != nil {
		t.Fatal(err)
	}

	removed, err := l.ExpireBefore(ctx, "20260901")
	if err != nil {
		t.Fatalf("ExpireBefore() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	for _, gone := range []string{"20260801", "20260815", filepath.Join("20261018", "Garage")} {
		if _, err := os.Stat(filepath.Join(l.Root(), gone)); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("%s should be gone", gone)
		}
	}
	for _, kept := range []string{filepath.Join("20261018", "Driveway", "c.mp4"), filepath.Join("notes", "keep.txt")} {
		if _, err := os.Stat(filepath.Join(l.Root(), kept)); err != nil {
			t.Errorf("%s should be kept: %v", kept, err)
		}
	}

	if _, err := l.ExpireBefore(ctx, "yesterday"); err == nil {
		t.Error("expected error for bad cutoff")
	}
}
