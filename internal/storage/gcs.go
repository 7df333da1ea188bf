// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package storage

import (
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCSConfig holds configuration for the GCS backend.
type GCSConfig struct {
	Bucket string
	Prefix string // Optional key prefix
}

// objectWriterFunc opens a writer for one object. The upload is committed by
// Close and abandoned by cancelling ctx.
type objectWriterFunc func(ctx context.Context, object, contentType string) io.WriteCloser

// GCS uploads artifacts to a Google Cloud Storage bucket under
// prefix/dir/file.
type GCS struct {
	client    *gcs.Client
	newWriter objectWriterFunc
	bucket    string
	prefix    string
}

// NewGCS creates a GCS backend. Credentials come from Application Default
// Credentials.
func NewGCS(ctx context.Context, cfg GCSConfig) (*GCS, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	bucket := client.Bucket(cfg.Bucket)
	g := &GCS{
		client: client,
		newWriter: func(ctx context.Context, object, contentType string) io.WriteCloser {
			w := bucket.Object(object).NewWriter(ctx)
			w.ContentType = contentType
			return w
		},
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}
	return g, nil
}

// Name implements Backend.
func (g *GCS) Name() string { return BackendGCS }

// Backup implements Backend.
func (g *GCS) Backup(ctx context.Context, r io.Reader, dir, file string) (Result, error) {
	object, err := objectKey(g.prefix, dir, file)
	if err != nil {
		return Result{}, err
	}

	// Cancelling the writer's context discards a half-written object.
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w := g.newWriter(wctx, object, contentTypeFor(file))
	n, err := io.Copy(w, ctxReader{ctx: ctx, r: r})
	if err != nil {
		cancel()
		_ = w.Close()
		return Result{}, fmt.Errorf("gcs write %s failed: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("gcs close %s failed: %w", object, err)
	}

	return Result{Location: fmt.Sprintf("gs://%s/%s", g.bucket, object), Bytes: n}, nil
}

// Close implements Backend.
func (g *GCS) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
