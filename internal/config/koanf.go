// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"camsync.yaml",
	"camsync.yml",
	"config.yaml",
	"/etc/camsync/config.yaml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// CamerasEnvVar holds a compact camera list: "serial:name[:gap],serial:name".
const CamerasEnvVar = "CAMSYNC_CAMERAS"

// LoadOptions tune LoadWithKoanf.
type LoadOptions struct {
	// Path is an explicit config file. It must exist when set.
	Path string

	// Overrides are applied last, keyed by koanf path ("sync.reinit").
	Overrides map[string]interface{}

	// Offline skips the credential check for commands that never contact
	// the remote service.
	Offline bool
}

// defaultConfig returns a Config struct with all default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Arlo: ArloConfig{
			BaseURL:         "https://my.arlo.com/hmsweb",
			RequestTimeout:  30 * time.Second,
			DownloadTimeout: 10 * time.Minute,
			RateLimit:       0, // Unlimited
			RateBurst:       1,
		},
		Sync: SyncConfig{
			LookbackDays:          1,
			CheckpointInterval:    25,
			CameraWorkers:         1,
			ItemTimeout:           15 * time.Minute,
			Interval:              time.Hour,
			IncludeUnknownCameras: true,
		},
		Ledger: LedgerConfig{
			Backend: "file",
			Path:    "/data/camsync/ledger.json",
		},
		Lock: LockConfig{
			Path:          "/data/camsync/camsync.lock",
			StaleAfter:    6 * time.Hour,
			TerminateWait: 10 * time.Second,
		},
		Storage: StorageConfig{
			Backend: "local",
			Local: LocalStorageConfig{
				Root:       "/data/recordings",
				RetainDays: 60,
			},
			S3: S3StorageConfig{
				Region: "us-east-1",
			},
		},
		Merge: MergeConfig{
			Enabled:    true,
			FFmpegPath: "ffmpeg",
			ScratchDir: "", // Defaults to os.TempDir()/camsync
			Timeout:    10 * time.Minute,
		},
		Server: ServerConfig{
			Enabled:         true,
			Host:            "127.0.0.1",
			Port:            9273,
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			Caller:     false,
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any mapped setting
//  4. Overrides: Values set by the caller, typically CLI flags
//
// The result is validated before it is returned.
func LoadWithKoanf(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional unless explicitly requested)
	configPath, err := findConfigFile(opts.Path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Environment variables
	// ARLO_EMAIL -> arlo.email, STORAGE_BACKEND -> storage.backend
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}
	if err := processCameraEnv(k, os.Getenv(CamerasEnvVar)); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", CamerasEnvVar, err)
	}

	// Layer 4: Caller overrides
	for path, val := range opts.Overrides {
		if err := k.Set(path, val); err != nil {
			return nil, fmt.Errorf("failed to set override %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.validate(!opts.Offline); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile resolves the config file to load. An explicit path must
// exist; otherwise CONFIG_PATH and the default paths are searched and a
// missing file is not an error.
func findConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}

	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", nil
}

// processCameraEnv parses the compact camera list into the cameras slice.
// It replaces any cameras from the config file.
func processCameraEnv(k *koanf.Koanf, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var cameras []interface{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) > 3 {
			return fmt.Errorf("camera entry %q has too many fields", entry)
		}

		cam := map[string]interface{}{"serial_id": strings.TrimSpace(parts[0])}
		if len(parts) > 1 {
			cam["display_name"] = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			gap, err := strconv.Atoi(strings.TrimSpace(parts[2]))
			if err != nil {
				return fmt.Errorf("camera entry %q: invalid max gap: %w", entry, err)
			}
			cam["max_gap_seconds"] = gap
		}
		cameras = append(cameras, cam)
	}

	return k.Set("cameras", cameras)
}

// envTransformFunc transforms environment variable names to koanf config paths.
// Only mapped variables are honored so unrelated environment variables never
// leak into the configuration.
//
// Examples:
//   - ARLO_EMAIL -> arlo.email
//   - LOCK_STALE_AFTER -> lock.stale_after
//   - S3_BUCKET -> storage.s3.bucket
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Arlo mappings
		"arlo_email":            "arlo.email",
		"arlo_password":         "arlo.password",
		"arlo_base_url":         "arlo.base_url",
		"arlo_request_timeout":  "arlo.request_timeout",
		"arlo_download_timeout": "arlo.download_timeout",
		"arlo_rate_limit":       "arlo.rate_limit",
		"arlo_rate_burst":       "arlo.rate_burst",

		// Sync mappings
		"sync_lookback_days":        "sync.lookback_days",
		"sync_checkpoint_interval":  "sync.checkpoint_interval",
		"sync_reinit":               "sync.reinit",
		"sync_only_camera":          "sync.only_camera",
		"sync_dry_run":              "sync.dry_run",
		"sync_camera_workers":       "sync.camera_workers",
		"sync_item_timeout":         "sync.item_timeout",
		"sync_interval":             "sync.interval",
		"sync_include_unknown":      "sync.include_unknown_cameras",
		"camsync_reinit":            "sync.reinit",
		"camsync_debug_camera_only": "sync.only_camera",

		// Ledger mappings
		"ledger_backend": "ledger.backend",
		"ledger_path":    "ledger.path",

		// Lock mappings
		"lock_path":           "lock.path",
		"lock_stale_after":    "lock.stale_after",
		"lock_terminate_wait": "lock.terminate_wait",

		// Storage mappings
		"storage_backend":    "storage.backend",
		"local_root":         "storage.local.root",
		"local_retain_days":  "storage.local.retain_days",
		"s3_bucket":          "storage.s3.bucket",
		"s3_region":          "storage.s3.region",
		"s3_endpoint":        "storage.s3.endpoint",
		"s3_prefix":          "storage.s3.prefix",
		"gcs_bucket":         "storage.gcs.bucket",
		"gcs_prefix":         "storage.gcs.prefix",

		// Merge mappings
		"merge_enabled":     "merge.enabled",
		"merge_ffmpeg_path": "merge.ffmpeg_path",
		"merge_scratch_dir": "merge.scratch_dir",
		"merge_timeout":     "merge.timeout",

		// Server mappings
		"http_enabled":          "server.enabled",
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_shutdown_timeout": "server.shutdown_timeout",

		// Logging mappings
		"log_level":       "logging.level",
		"log_format":      "logging.format",
		"log_caller":      "logging.caller",
		"log_file":        "logging.file",
		"log_max_size_mb": "logging.max_size_mb",
		"log_max_backups": "logging.max_backups",
		"log_max_age":     "logging.max_age_days",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	return ""
}

// GetKoanfInstance returns a new Koanf instance for advanced usage, such as
// tests that exercise individual loading layers.
func GetKoanfInstance() *koanf.Koanf {
	return koanf.New(".")
}
