// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

// Package config provides layered configuration for Camsync using Koanf v2.
//
// # Sources
//
// Configuration is assembled from four layers, later layers winning:
//
//  1. Built-in defaults (defaultConfig)
//  2. A YAML file: --config, CONFIG_PATH, or the first of DefaultConfigPaths
//  3. Mapped environment variables (ARLO_EMAIL, STORAGE_BACKEND, LOCK_STALE_AFTER, ...)
//  4. Caller overrides, used by the CLI for flags such as --reinit
//
// Unmapped environment variables are ignored.
//
// # Example File
//
//	arlo:
//	  email: owner@example.com
//	  password: secret
//	cameras:
//	  - serial_id: 5DB17C7BA1234
//	    display_name: Driveway
//	    max_gap_seconds: 10     # merge clips closer than 10s
//	  - serial_id: 5DB17C7BA5678
//	    display_name: Porch      # no gap: every clip stays separate
//	storage:
//	  backend: s3
//	  s3:
//	    bucket: camera-archive
//	    region: eu-west-1
//	lock:
//	  stale_after: 6h
//
// Cameras may also be given as CAMSYNC_CAMERAS="serial:name[:gap],...", which
// replaces the file's camera list.
//
// # Validation
//
// Camera entries are checked with go-playground/validator struct tags; the
// remaining sections use explicit checks so error messages name the
// environment variable to fix. Commands that never contact the remote service
// load with LoadOptions.Offline to skip the credential requirement.
package config
