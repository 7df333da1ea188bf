// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package models

import (
	"path"
	"sort"
	"time"
)

// Tag is the ledger key for a recording: camera serial followed by item ID.
// Two items with the same Tag are the same physical clip.
type Tag string

// RemoteItem is one recorded clip as listed by the remote library.
// Values are immutable once listed; FetchURL is time-limited.
type RemoteItem struct {
	CameraID        string `json:"camera_id"`
	ItemID          string `json:"item_id"`
	CaptureStart    int64  `json:"capture_start"` // Epoch milliseconds
	DurationSeconds int    `json:"duration_seconds"`
	FetchURL        string `json:"-"`
	Name            string `json:"name"`
	ContentType     string `json:"content_type,omitempty"`
}

// Tag returns the item's ledger key.
func (i RemoteItem) Tag() Tag {
	return Tag(i.CameraID + i.ItemID)
}

// StartTime returns the capture start in UTC.
func (i RemoteItem) StartTime() time.Time {
	return time.UnixMilli(i.CaptureStart).UTC()
}

// StartSeconds returns the capture start in whole epoch seconds.
func (i RemoteItem) StartSeconds() int64 {
	return i.CaptureStart / 1000
}

// EndSeconds returns the capture end in whole epoch seconds.
func (i RemoteItem) EndSeconds() int64 {
	return i.StartSeconds() + int64(i.DurationSeconds)
}

// FileName is the item's original file name, used to address staged copies.
func (i RemoteItem) FileName() string {
	name := i.Name
	if name == "" {
		name = i.ItemID
	}
	name = SanitizeName(name)
	if path.Ext(name) == "" {
		name += ExtensionFor(i.ContentType)
	}
	return name
}

// Camera is a camera as the sync engine sees it. A nil MaxGapSeconds
// disables clip merging for the camera.
type Camera struct {
	SerialID      string `json:"serial_id"`
	DisplayName   string `json:"display_name"`
	MaxGapSeconds *int   `json:"max_gap_seconds,omitempty"`
}

// Label returns the display name, falling back to the serial.
func (c Camera) Label() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.SerialID
}

// SortNewestFirst orders items by capture start, newest first. Ties keep
// their listing order.
func SortNewestFirst(items []RemoteItem) {
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].CaptureStart > items[b].CaptureStart
	})
}
