// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

// Package grouper partitions one camera's clips into merge groups.
//
// Items arrive newest-first. A group grows toward older items while the gap
// between the most recently accepted item's start and the next item's end
// stays within the camera's threshold:
//
//	gap = running.start - (next.start + next.duration)
//
// running advances to each accepted item, so a long chain of short gaps
// keeps extending even when its total span is large. Overlapping clips
// produce negative gaps and always join.
package grouper

import (
	"github.com/tomtom215/camsync/internal/models"
)

// Group partitions items, which must be ordered newest-first, into
// contiguous groups. A nil maxGap disables grouping and every item becomes a
// singleton. The result covers items exactly once and preserves order.
func Group(items []models.RemoteItem, maxGap *int) [][]models.RemoteItem {
	if len(items) == 0 {
		return nil
	}

	groups := make([][]models.RemoteItem, 0, len(items))
	if maxGap == nil {
		for i := range items {
			groups = append(groups, items[i:i+1:i+1])
		}
		return groups
	}

	limit := int64(*maxGap)
	for i := 0; i < len(items); {
		running := items[i].StartSeconds()
		j := i + 1
		for ; j < len(items); j++ {
			if Gap(running, items[j]) > limit {
				break
			}
			running = items[j].StartSeconds()
		}
		groups = append(groups, items[i:j:j])
		i = j
	}
	return groups
}

// Gap returns the seconds between next's end and runningStart.
func Gap(runningStart int64, next models.RemoteItem) int64 {
	return runningStart - next.EndSeconds()
}

// Span returns the oldest and newest item of a newest-first group.
func Span(group []models.RemoteItem) (oldest, newest models.RemoteItem) {
	return group[len(group)-1], group[0]
}
