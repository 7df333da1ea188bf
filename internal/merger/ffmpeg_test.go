// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package merger

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestBuildArgs(t *testing.T) {
	got := strings.Join(buildArgs("/s/concat.txt", "/s/out.mp4"), " ")
	want := "-hide_banner -loglevel warning -y -f concat -safe 0 -i /s/concat.txt -c copy /s/out.mp4"
	if got != want {
		t.Errorf("args = %q\nwant   %q", got, want)
	}
}

func TestWriteConcatList(t *testing.T) {
	dir := t.TempDir()
	list := filepath.Join(dir, "concat.txt")
	inputs := []string{filepath.Join(dir, "a.mp4"), filepath.Join(dir, "it's.mp4")}

	if err := writeConcatList(list, inputs); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(list)
	if err != nil {
		t.Fatal(err)
	}
	want := "file '" + inputs[0] + "'\n" +
		"file '" + filepath.Join(dir, `it'\''s.mp4`) + "'\n"
	if string(data) != want {
		t.Errorf("list =\n%s\nwant\n%s", data, want)
	}
}

// fakeFFmpeg writes a shell script standing in for ffmpeg.
func fakeFFmpeg(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o700); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFFmpegCombiner_Success(t *testing.T) {
	// The output path is the last argument.
	bin := fakeFFmpeg(t, `for last; do :; done; echo merged > "$last"`)
	dir := t.TempDir()
	out := filepath.Join(dir, "combined.mp4")

	err := NewFFmpegCombiner(bin).Combine(context.Background(), []string{filepath.Join(dir, "a.mp4")}, out)
	if err != nil {
		t.Fatalf("Combine() error = %v", err)
	}
	if data, _ := os.ReadFile(out); strings.TrimSpace(string(data)) != "merged" {
		t.Errorf("output = %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "concat.txt")); !os.IsNotExist(err) {
		t.Error("concat list not removed")
	}
}

func TestFFmpegCombiner_ErrorIncludesStderrTail(t *testing.T) {
	bin := fakeFFmpeg(t, `i=0; while [ $i -lt 80 ]; do echo "line $i" >&2; i=$((i+1)); done; exit 1`)
	dir := t.TempDir()

	err := NewFFmpegCombiner(bin).Combine(context.Background(), []string{filepath.Join(dir, "a.mp4")}, filepath.Join(dir, "o.mp4"))
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "line 79") {
		t.Errorf("error missing last stderr line: %s", msg)
	}
	if strings.Contains(msg, "line 29 |") {
		t.Errorf("error should keep only the last %d lines: %s", stderrTailLines, msg)
	}
}

func TestFFmpegCombiner_Errors(t *testing.T) {
	dir := t.TempDir()
	c := NewFFmpegCombiner(filepath.Join(dir, "no-such-ffmpeg"))

	if err := c.Combine(context.Background(), nil, filepath.Join(dir, "o.mp4")); err == nil {
		t.Error("expected error for no inputs")
	}
	if err := c.Combine(context.Background(), []string{"a.mp4"}, filepath.Join(dir, "o.mp4")); err == nil {
		t.Error("expected error for missing binary")
	}
	if NewFFmpegCombiner("").path != "ffmpeg" {
		t.Error("empty path should default to ffmpeg")
	}
}
