// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	structValidator *validator.Validate
	validatorOnce   sync.Once
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		structValidator = validator.New(validator.WithRequiredStructEnabled())
	})
	return structValidator
}

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	return c.validate(true)
}

// validate runs every check. Credentials are only required for commands that
// talk to the remote service.
func (c *Config) validate(needCredentials bool) error {
	if err := c.validateCameras(); err != nil {
		return err
	}
	if err := c.validateArlo(needCredentials); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateLedger(); err != nil {
		return err
	}
	if err := c.validateLock(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateServer(); err != nil {
		return err
	}
	return c.validateLogging()
}

// validateCameras checks camera entries against their struct tags and
// rejects duplicate serials.
func (c *Config) validateCameras() error {
	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%s failed %q validation (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("camera validation failed: %w", err)
	}

	seen := make(map[string]bool, len(c.Cameras))
	for _, cam := range c.Cameras {
		if seen[cam.SerialID] {
			return fmt.Errorf("camera %s is configured more than once", cam.SerialID)
		}
		seen[cam.SerialID] = true
	}
	return nil
}

func (c *Config) validateArlo(needCredentials bool) error {
	if needCredentials && (c.Arlo.Email == "" || c.Arlo.Password == "") {
		return fmt.Errorf("ARLO_EMAIL and ARLO_PASSWORD are required")
	}
	if err := validateHTTPURL(c.Arlo.BaseURL); err != nil {
		return fmt.Errorf("ARLO_BASE_URL is invalid: %w", err)
	}
	if c.Arlo.RequestTimeout <= 0 || c.Arlo.DownloadTimeout <= 0 {
		return fmt.Errorf("arlo timeouts must be positive")
	}
	if c.Arlo.RateLimit < 0 {
		return fmt.Errorf("ARLO_RATE_LIMIT must be >= 0, got %v", c.Arlo.RateLimit)
	}
	if c.Arlo.RateLimit > 0 && c.Arlo.RateBurst < 1 {
		return fmt.Errorf("ARLO_RATE_BURST must be >= 1 when a rate limit is set")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.LookbackDays < 0 || c.Sync.LookbackDays > 30 {
		return fmt.Errorf("SYNC_LOOKBACK_DAYS must be between 0 and 30, got %d", c.Sync.LookbackDays)
	}
	if c.Sync.CheckpointInterval < 1 {
		return fmt.Errorf("SYNC_CHECKPOINT_INTERVAL must be >= 1, got %d", c.Sync.CheckpointInterval)
	}
	if c.Sync.CameraWorkers < 1 {
		return fmt.Errorf("SYNC_CAMERA_WORKERS must be >= 1, got %d", c.Sync.CameraWorkers)
	}
	if c.Sync.ItemTimeout <= 0 {
		return fmt.Errorf("SYNC_ITEM_TIMEOUT must be positive")
	}
	if c.Sync.Interval < time.Minute {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1m, got %v", c.Sync.Interval)
	}
	return nil
}

func (c *Config) validateLedger() error {
	switch c.Ledger.Backend {
	case "file", "badger":
	default:
		return fmt.Errorf("LEDGER_BACKEND must be 'file' or 'badger', got %q", c.Ledger.Backend)
	}
	if c.Ledger.Path == "" {
		return fmt.Errorf("LEDGER_PATH is required")
	}
	return nil
}

func (c *Config) validateLock() error {
	if c.Lock.Path == "" {
		return fmt.Errorf("LOCK_PATH is required")
	}
	if c.Lock.StaleAfter < time.Minute {
		return fmt.Errorf("LOCK_STALE_AFTER must be at least 1m, got %v", c.Lock.StaleAfter)
	}
	if c.Lock.TerminateWait <= 0 {
		return fmt.Errorf("LOCK_TERMINATE_WAIT must be positive")
	}
	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "local":
		if c.Storage.Local.Root == "" {
			return fmt.Errorf("LOCAL_ROOT is required for local storage")
		}
		if c.Storage.Local.RetainDays < 0 {
			return fmt.Errorf("LOCAL_RETAIN_DAYS must be >= 0")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for s3 storage")
		}
		if c.Storage.S3.Endpoint != "" {
			if err := validateHTTPURL(c.Storage.S3.Endpoint); err != nil {
				return fmt.Errorf("S3_ENDPOINT is invalid: %w", err)
			}
		}
	case "gcs":
		if c.Storage.GCS.Bucket == "" {
			return fmt.Errorf("GCS_BUCKET is required for gcs storage")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be one of local, s3, gcs; got %q", c.Storage.Backend)
	}

	if c.Merge.Enabled && c.Merge.Timeout <= 0 {
		return fmt.Errorf("MERGE_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
