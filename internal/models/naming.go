// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package models

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// DateLayout is the layout of ledger dates and output date directories.
const DateLayout = "20060102"

// OutputDir is the logical directory for clips captured by cam at start:
// "YYYYMMDD/<name>_<serial>", or "YYYYMMDD/<serial>" for unnamed cameras.
// The serial keeps cameras that share a display name apart.
func OutputDir(cam Camera, start time.Time) string {
	return path.Join(start.UTC().Format(DateLayout), CameraDir(cam))
}

// CameraDir is the per-camera directory element of OutputDir.
func CameraDir(cam Camera) string {
	serial := SanitizeName(cam.SerialID)
	if cam.DisplayName == "" {
		return serial
	}
	name := SanitizeName(cam.DisplayName)
	if name == serial {
		return serial
	}
	return name + "_" + serial
}

// OutputName is the logical file name for a clip or merged group beginning
// at start and lasting durationSeconds.
//
//	Driveway_20261018_071502_45s.mp4
func OutputName(cam Camera, start time.Time, durationSeconds int, ext string) string {
	if ext == "" {
		ext = ".mp4"
	}
	return fmt.Sprintf("%s_%s_%ds%s",
		SanitizeName(cam.Label()),
		start.UTC().Format("20060102_150405"),
		durationSeconds,
		ext,
	)
}

// TotalDuration is the span covered by a group, from the oldest item's start
// to the newest item's end, in seconds.
func TotalDuration(oldest, newest RemoteItem) int {
	return int(newest.StartSeconds()-oldest.StartSeconds()) + newest.DurationSeconds
}

// ExtensionFor maps a clip content type to a file extension.
func ExtensionFor(contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "video/quicktime":
		return ".mov"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	default:
		return ".mp4"
	}
}

// SanitizeName makes s safe to use as a single path element on every
// supported backend.
func SanitizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "unnamed"
	}
	return out
}
