// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/tomtom215/camsync/internal/config"
)

// Backend names.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
	BackendGCS   = "gcs"
)

// Result describes a completed Backup.
type Result struct {
	Location string // Backend-specific address: file path, s3:// or gs:// URI
	Bytes    int64  // Bytes written, 0 when skipped
	Skipped  bool   // Destination already existed
}

// Backend persists a byte stream under a logical (dir, file) identity.
// Writing the same identity twice is allowed; the last write wins.
type Backend interface {
	Backup(ctx context.Context, r io.Reader, dir, file string) (Result, error)
	Name() string
	Close() error
}

// Retainer is implemented by backends that can expire old date directories.
type Retainer interface {
	ExpireBefore(ctx context.Context, cutoffDate string) (int, error)
}

// New builds the configured backend. It is called once at startup and the
// result is injected into the sync engine.
func New(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		return NewLocal(cfg.Local.Root)
	case BackendS3:
		return NewS3(ctx, S3Config{
			Bucket:   cfg.S3.Bucket,
			Region:   cfg.S3.Region,
			Endpoint: cfg.S3.Endpoint,
			Prefix:   cfg.S3.Prefix,
		})
	case BackendGCS:
		return NewGCS(ctx, GCSConfig{
			Bucket: cfg.GCS.Bucket,
			Prefix: cfg.GCS.Prefix,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Backend)
	}
}

// objectKey joins prefix, dir and file into a slash-separated object key
// and rejects identities that would escape the prefix.
func objectKey(prefix, dir, file string) (string, error) {
	if err := checkIdentity(dir, file); err != nil {
		return "", err
	}
	key := path.Join(strings.Trim(prefix, "/"), dir, file)
	return strings.TrimPrefix(key, "/"), nil
}

func checkIdentity(dir, file string) error {
	if file == "" || strings.ContainsAny(file, `/\`) || file == "." || file == ".." {
		return fmt.Errorf("invalid file name %q", file)
	}
	if dir == "" {
		return nil
	}
	clean := path.Clean(dir)
	if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid directory %q", dir)
	}
	return nil
}

// contentTypeFor maps an output file name to its MIME type.
func contentTypeFor(file string) string {
	switch strings.ToLower(path.Ext(file)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
