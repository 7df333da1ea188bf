// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package models

import (
	"testing"
	"time"
)

func TestRemoteItemTag(t *testing.T) {
	item := RemoteItem{CameraID: "CAM1", ItemID: "1697612400000"}
	if got := item.Tag(); got != "CAM11697612400000" {
		t.Errorf("Tag() = %q", got)
	}
}

func TestRemoteItemFileName(t *testing.T) {
	tests := []struct {
		name string
		item RemoteItem
		want string
	}{
		{"plain name", RemoteItem{Name: "1697612400000"}, "1697612400000.mp4"},
		{"keeps extension", RemoteItem{Name: "clip.mov"}, "clip.mov"},
		{"falls back to item id", RemoteItem{ItemID: "abc"}, "abc.mp4"},
		{"content type", RemoteItem{Name: "snap", ContentType: "image/jpeg"}, "snap.jpg"},
		{"path separators", RemoteItem{Name: "front/door 1"}, "front_door_1.mp4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.FileName(); got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSortNewestFirst(t *testing.T) {
	items := []RemoteItem{
		{ItemID: "a", CaptureStart: 1000},
		{ItemID: "c", CaptureStart: 3000},
		{ItemID: "b", CaptureStart: 2000},
	}
	SortNewestFirst(items)
	if items[0].ItemID != "c" || items[1].ItemID != "b" || items[2].ItemID != "a" {
		t.Errorf("SortNewestFirst() order = %v", items)
	}
}

func TestOutputNaming(t *testing.T) {
	cam := Camera{SerialID: "CAM1", DisplayName: "Front Door"}
	start := time.Date(2026, 10, 18, 7, 15, 2, 0, time.UTC)

	if got := OutputDir(cam, start); got != "20261018/Front_Door_CAM1" {
		t.Errorf("OutputDir() = %q", got)
	}
	if got := OutputName(cam, start, 45, ".mp4"); got != "Front_Door_20261018_071502_45s.mp4" {
		t.Errorf("OutputName() = %q", got)
	}

	bare := Camera{SerialID: "CAM1"}
	if got := OutputDir(bare, start); got != "20261018/CAM1" {
		t.Errorf("OutputDir(no display name) = %q", got)
	}
}

func TestCameraDirDistinguishesSharedNames(t *testing.T) {
	tests := []struct {
		name string
		cam  Camera
		want string
	}{
		{"named", Camera{SerialID: "CAMA", DisplayName: "Front Door"}, "Front_Door_CAMA"},
		{"same name other serial", Camera{SerialID: "CAMB", DisplayName: "Front Door"}, "Front_Door_CAMB"},
		{"name sanitizes to the same element", Camera{SerialID: "CAMC", DisplayName: "Front/Door"}, "Front_Door_CAMC"},
		{"unnamed", Camera{SerialID: "CAMA"}, "CAMA"},
		{"name equal to serial", Camera{SerialID: "CAMA", DisplayName: "CAMA"}, "CAMA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CameraDir(tt.cam); got != tt.want {
				t.Errorf("CameraDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTotalDuration(t *testing.T) {
	oldest := RemoteItem{CaptureStart: 100_000, DurationSeconds: 10}
	newest := RemoteItem{CaptureStart: 130_000, DurationSeconds: 12}
	if got := TotalDuration(oldest, newest); got != 42 {
		t.Errorf("TotalDuration() = %d, want 42", got)
	}
}
