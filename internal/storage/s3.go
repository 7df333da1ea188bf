// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Config holds configuration for the S3 backend.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string // Optional custom endpoint (for MinIO, LocalStack, etc.)
	Prefix   string // Optional key prefix
}

// s3Putter is the slice of the S3 client the backend needs.
type s3Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 uploads artifacts to an S3 bucket under prefix/dir/file.
type S3 struct {
	client s3Putter
	bucket string
	prefix string
}

// NewS3 creates an S3 backend using the default AWS credential chain.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // Required for MinIO/LocalStack
		}
	})

	return newS3WithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3WithClient(client s3Putter, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// Name implements Backend.
func (s *S3) Name() string { return BackendS3 }

// Backup implements Backend. The stream is spooled to a temp file first so
// the upload has a known length and can be retried by the SDK.
func (s *S3) Backup(ctx context.Context, r io.Reader, dir, file string) (Result, error) {
	key, err := objectKey(s.prefix, dir, file)
	if err != nil {
		return Result{}, err
	}

	spool, err := os.CreateTemp("", "camsync-upload-*")
	if err != nil {
		return Result{}, fmt.Errorf("create upload spool: %w", err)
	}
	defer func() {
		_ = spool.Close()
		_ = os.Remove(spool.Name())
	}()

	n, err := io.Copy(spool, ctxReader{ctx: ctx, r: r})
	if err != nil {
		return Result{}, fmt.Errorf("spool %s: %w", file, err)
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return Result{}, fmt.Errorf("rewind spool: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          spool,
		ContentLength: aws.Int64(n),
		ContentType:   aws.String(contentTypeFor(file)),
	})
	if err != nil {
		return Result{}, fmt.Errorf("s3 put %s failed: %w", key, err)
	}

	return Result{Location: fmt.Sprintf("s3://%s/%s", s.bucket, key), Bytes: n}, nil
}

// Close implements Backend.
func (s *S3) Close() error { return nil }
