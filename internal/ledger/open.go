// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package ledger

import (
	"fmt"

	"github.com/tomtom215/camsync/internal/config"
)

// OpenStore opens the store selected by cfg. When the persisted state is too
// damaged to open, a fresh empty store is returned together with an error
// wrapping ErrLedgerCorrupt; callers warn and carry on with it.
func OpenStore(cfg config.LedgerConfig) (Store, error) {
	switch cfg.Backend {
	case "file", "":
		return NewFileStore(cfg.Path)
	case "badger":
		s, err := openBadgerRecovering(cfg.Path)
		if s == nil {
			return nil, err
		}
		return s, err
	default:
		return nil, fmt.Errorf("unsupported ledger backend: %s", cfg.Backend)
	}
}
