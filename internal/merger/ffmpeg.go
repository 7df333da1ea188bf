// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package merger

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ixugo/goddd/pkg/queue"
)

// stderrTailLines is how much ffmpeg output is kept for error reports.
const stderrTailLines = 50

// FFmpegCombiner joins clips with ffmpeg's concat demuxer. Streams are
// copied, never re-encoded.
type FFmpegCombiner struct {
	path string
}

// NewFFmpegCombiner returns a combiner running the ffmpeg binary at path
// (looked up in PATH when it has no separator).
func NewFFmpegCombiner(path string) *FFmpegCombiner {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpegCombiner{path: path}
}

// Combine implements Combiner.
func (c *FFmpegCombiner) Combine(ctx context.Context, inputs []string, output string) error {
	if len(inputs) == 0 {
		return fmt.Errorf("no inputs")
	}

	list := filepath.Join(filepath.Dir(output), "concat.txt")
	if err := writeConcatList(list, inputs); err != nil {
		return err
	}
	defer func() { _ = os.Remove(list) }()

	args := buildArgs(list, output)
	cmd := exec.CommandContext(ctx, c.path, args...) //nolint:gosec // binary path is operator config
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	tail := queue.NewCirQueue[string](stderrTailLines)
	scan := bufio.NewScanner(stderr)
	for scan.Scan() {
		tail.Push(scan.Text())
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg: %w", ctx.Err())
		}
		lines := tail.Range()
		if len(lines) == 0 {
			return fmt.Errorf("ffmpeg: %w", err)
		}
		return fmt.Errorf("ffmpeg: %w: %s", err, strings.Join(lines, " | "))
	}
	return nil
}

func buildArgs(list, output string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "warning",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", list,
		"-c", "copy",
		output,
	}
}

// writeConcatList writes an ffconcat file list. Single quotes in paths are
// escaped as the demuxer expects.
func writeConcatList(path string, inputs []string) error {
	var b strings.Builder
	for _, in := range inputs {
		abs, err := filepath.Abs(in)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", in, err)
		}
		b.WriteString("file '")
		b.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		b.WriteString("'\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	return nil
}
