// Camsync - Surveillance Recording Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/camsync

package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  []byte
	err   error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = data
	return &s3.PutObjectOutput{}, nil
}

func TestS3_Backup(t *testing.T) {
	fake := &fakePutter{}
	b := newS3WithClient(fake, "camera-archive", "/backups/")

	res, err := b.Backup(context.Background(), strings.NewReader("mp4-data"), "20261018/Porch", "Porch_20261018_010203_9s.mp4")
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	wantKey := "backups/20261018/Porch/Porch_20261018_010203_9s.mp4"
	if got := aws.ToString(fake.input.Key); got != wantKey {
		t.Errorf("Key = %q, want %q", got, wantKey)
	}
	if got := aws.ToString(fake.input.Bucket); got != "camera-archive" {
		t.Errorf("Bucket = %q", got)
	}
	if got := aws.ToString(fake.input.ContentType); got != "video/mp4" {
		t.Errorf("ContentType = %q", got)
	}
	if got := aws.ToInt64(fake.input.ContentLength); got != 8 {
		t.Errorf("ContentLength = %d, want 8", got)
	}
	if string(fake.body) != "mp4-data" {
		t.Errorf("body = %q", fake.body)
	}
	if res.Location != "s3://camera-archive/"+wantKey || res.Bytes != 8 {
		t.Errorf("Result = %+v", res)
	}
}

func TestS3_PutError(t *testing.T) {
	b := newS3WithClient(&fakePutter{err: errors.New("503 SlowDown")}, "bucket", "")
	if _, err := b.Backup(context.Background(), strings.NewReader("x"), "d", "f.mp4"); err == nil {
		t.Fatal("expected error")
	}
}

type fakeObjectWriter struct {
	buf      bytes.Buffer
	ctx      context.Context
	closed   bool
	closeErr error
}

func (w *fakeObjectWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *fakeObjectWriter) Close() error {
	w.closed = true
	return w.closeErr
}

func TestGCS_Backup(t *testing.T) {
	tests := []struct {
		name      string
		reader    io.Reader
		closeErr  error
		wantErr   bool
		wantAbort bool
	}{
		{name: "success", reader: strings.NewReader("jpeg")},
		{name: "close fails", reader: strings.NewReader("jpeg"), closeErr: errors.New("precondition failed"), wantErr: true},
		{name: "read fails", reader: &failingReader{after: 2}, wantErr: true, wantAbort: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w *fakeObjectWriter
			var gotObject, gotType string
			g := &GCS{
				bucket: "archive",
				prefix: "cams",
				newWriter: func(ctx context.Context, object, contentType string) io.WriteCloser {
					gotObject, gotType = object, contentType
					w = &fakeObjectWriter{ctx: ctx, closeErr: tt.closeErr}
					return w
				},
			}

			res, err := g.Backup(context.Background(), tt.reader, "20261018/Porch", "snap.jpg")
			if (err != nil) != tt.wantErr {
				t.Fatalf("Backup() error = %v, wantErr %v", err, tt.wantErr)
			}
			if gotObject != "cams/20261018/Porch/snap.jpg" || gotType != "image/jpeg" {
				t.Errorf("object = %q type = %q", gotObject, gotType)
			}
			if !w.closed {
				t.Error("writer not closed")
			}
			if tt.wantAbort && w.ctx.Err() == nil {
				t.Error("writer context should be cancelled on failed copy")
			}
			if !tt.wantErr && (res.Location != "gs://archive/cams/20261018/Porch/snap.jpg" || res.Bytes != 4) {
				t.Errorf("Result = %+v", res)
			}
		})
	}

	if err := (&GCS{}).Close(); err != nil {
		t.Errorf("Close() on clientless GCS = %v", err)
	}
}
