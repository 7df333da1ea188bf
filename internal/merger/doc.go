// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

// Package merger combines a group of adjacent clips into one file and backs
// it up.
//
// Each group gets its own scratch directory (a storage.Local under
// Options.ScratchDir). Members are downloaded there under their original
// names, handed to the Combiner oldest first, and the combined file is
// written to the backend under the oldest member's date and camera:
//
//	20261018/Driveway_CAM1/Driveway_20261018_071502_95s.mp4
//
// Any failure returns an error wrapping ErrFetchFailed, ErrCombineFailed or
// ErrBackupFailed and leaves nothing behind in scratch.
package merger
