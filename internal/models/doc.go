// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

/*
Package models defines the data structures shared across camsync.

Key Components:

  - RemoteItem: one recording as listed by the remote library
  - Tag: the stable dedup identity of a RemoteItem, used as the ledger key
  - Camera: serial, display name and optional merge gap
  - APIResponse: the JSON envelope of the status server

Output Naming:

Backed-up files are stored under a date directory and a sanitized camera
directory, with capture times in UTC:

	20260102/Driveway_5DB17C7BA1234/Driveway_20260102_071503_42s.mp4

A merged group uses the oldest member's capture time and the total span
from the oldest start to the newest end. See OutputDir and OutputName.

Thread Safety:

All types are plain values. Slices passed to SortNewestFirst are sorted in
place and must not be shared with concurrent readers.
*/
package models
