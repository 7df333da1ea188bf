// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package config

import (
	"time"
)

// Config holds all application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in defaults for all optional settings
//  2. Config File: Optional YAML file (camsync.yaml, config.yaml, /etc/camsync/config.yaml)
//  3. Environment Variables: Override any mapped setting
//  4. Command Line: Flags applied by the CLI as overrides
//
// Example:
//
//	cfg, err := config.LoadWithKoanf(config.LoadOptions{Path: configFlag})
//	if err != nil {
//	    return err
//	}
//	backend, err := storage.New(ctx, cfg.Storage)
type Config struct {
	Arlo    ArloConfig     `koanf:"arlo"`
	Cameras []CameraConfig `koanf:"cameras" validate:"dive"`
	Sync    SyncConfig     `koanf:"sync"`
	Ledger  LedgerConfig   `koanf:"ledger"`
	Lock    LockConfig     `koanf:"lock"`
	Storage StorageConfig  `koanf:"storage"`
	Merge   MergeConfig    `koanf:"merge"`
	Server  ServerConfig   `koanf:"server"`
	Logging LoggingConfig  `koanf:"logging"`
}

// ArloConfig holds remote service credentials and client tuning.
type ArloConfig struct {
	Email           string        `koanf:"email"`
	Password        string        `koanf:"password"`
	BaseURL         string        `koanf:"base_url"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	DownloadTimeout time.Duration `koanf:"download_timeout"`
	RateLimit       float64       `koanf:"rate_limit"` // Requests per second, 0 = unlimited
	RateBurst       int           `koanf:"rate_burst"`
}

// CameraConfig describes one camera. MaxGapSeconds enables clip merging for
// that camera; leaving it unset keeps every clip as its own file.
type CameraConfig struct {
	SerialID      string `koanf:"serial_id" validate:"required,alphanum,max=64"`
	DisplayName   string `koanf:"display_name" validate:"omitempty,max=64"`
	MaxGapSeconds *int   `koanf:"max_gap_seconds" validate:"omitempty,gte=0,lte=3600"`
}

// SyncConfig controls a single sync run and the daemon schedule.
type SyncConfig struct {
	LookbackDays          int           `koanf:"lookback_days"`
	CheckpointInterval    int           `koanf:"checkpoint_interval"`
	Reinit                bool          `koanf:"reinit"`      // Seed the ledger without downloading
	OnlyCamera            string        `koanf:"only_camera"` // Restrict a run to one camera serial
	DryRun                bool          `koanf:"dry_run"`
	CameraWorkers         int           `koanf:"camera_workers"`
	ItemTimeout           time.Duration `koanf:"item_timeout"`
	Interval              time.Duration `koanf:"interval"`
	IncludeUnknownCameras bool          `koanf:"include_unknown_cameras"`
}

// LedgerConfig selects where the dedup ledger is persisted.
type LedgerConfig struct {
	Backend string `koanf:"backend"` // "file" or "badger"
	Path    string `koanf:"path"`
}

// LockConfig controls the single-instance run lock.
type LockConfig struct {
	Path          string        `koanf:"path"`
	StaleAfter    time.Duration `koanf:"stale_after"`
	TerminateWait time.Duration `koanf:"terminate_wait"`
}

// StorageConfig selects and configures the backup destination.
type StorageConfig struct {
	Backend string             `koanf:"backend"` // "local", "s3" or "gcs"
	Local   LocalStorageConfig `koanf:"local"`
	S3      S3StorageConfig    `koanf:"s3"`
	GCS     GCSStorageConfig   `koanf:"gcs"`
}

// LocalStorageConfig configures the filesystem backend.
type LocalStorageConfig struct {
	Root       string `koanf:"root"`
	RetainDays int    `koanf:"retain_days"` // 0 disables retention cleanup
}

// S3StorageConfig configures the S3 backend.
type S3StorageConfig struct {
	Bucket   string `koanf:"bucket"`
	Region   string `koanf:"region"`
	Endpoint string `koanf:"endpoint"` // Optional, for MinIO/LocalStack
	Prefix   string `koanf:"prefix"`
}

// GCSStorageConfig configures the Google Cloud Storage backend.
type GCSStorageConfig struct {
	Bucket string `koanf:"bucket"`
	Prefix string `koanf:"prefix"`
}

// MergeConfig controls clip merging.
type MergeConfig struct {
	Enabled    bool          `koanf:"enabled"`
	FFmpegPath string        `koanf:"ffmpeg_path"`
	ScratchDir string        `koanf:"scratch_dir"`
	Timeout    time.Duration `koanf:"timeout"`
}

// ServerConfig holds the daemon status server settings.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Caller     bool   `koanf:"caller"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxBackups int    `koanf:"max_backups"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

// CameraByID returns the configured camera with the given serial.
func (c *Config) CameraByID(serial string) (CameraConfig, bool) {
	for _, cam := range c.Cameras {
		if cam.SerialID == serial {
			return cam, true
		}
	}
	return CameraConfig{}, false
}
