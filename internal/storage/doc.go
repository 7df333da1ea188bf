// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

// Package storage provides the backup destinations for synced recordings.
//
// Every backend receives a byte stream and a logical (dir, file) pair, for
// example ("20261018/Driveway_CAM1", "Driveway_20261018_071502_45s.mp4"):
//
//   - Local writes root/dir/file via temp file and rename, and skips
//     destinations that already exist. It also serves as merge scratch space
//     and supports read-back with Open.
//   - S3 uploads to s3://bucket/prefix/dir/file with aws-sdk-go-v2. A custom
//     endpoint enables MinIO or LocalStack.
//   - GCS uploads to gs://bucket/prefix/dir/file.
//
// Local additionally implements Retainer for date-directory expiry.
package storage
