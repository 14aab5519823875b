// Package minio implements the MinIO backend using the native MinIO client.
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yi-nology/filebridge/pkg/storage"
)

const (
	// partSize matches the MinIO minimum multipart part size for streamed
	// puts of unknown length.
	partSize = 5 * 1024 * 1024

	defaultOperationTimeout = 15 * time.Second
)

// Config holds MinIO backend configuration. AccessKey and SecretKey are
// optional; when absent the client picks up ambient MinIO environment
// credentials.
type Config struct {
	Endpoint         string
	Bucket           string
	AccessKey        string
	SecretKey        string
	UseSSL           bool
	OperationTimeout time.Duration
}

// Backend implements storage.Backend, storage.StreamUploader and
// storage.URLSigner using minio-go.
type Backend struct {
	client    *minio.Client
	bucket    string
	opTimeout time.Duration
}

// New creates a MinIO backend and ensures the bucket exists. Endpoint and
// bucket are required; missing fields fail construction immediately.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.Endpoint == "" {
		return nil, storage.ConfigError("minio", "endpoint")
	}
	if cfg.Bucket == "" {
		return nil, storage.ConfigError("minio", "bucket")
	}

	opts := &minio.Options{Secure: cfg.UseSSL}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts.Creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		opts.Creds = credentials.NewEnvMinio()
	}

	client, err := minio.New(cfg.Endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}

	opTimeout := cfg.OperationTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOperationTimeout
	}

	return &Backend{client: client, bucket: cfg.Bucket, opTimeout: opTimeout}, nil
}

// Exists checks object presence via StatObject. Only a confirmed NoSuchKey
// response collapses to false.
func (b *Backend) Exists(ctx context.Context, scope storage.Scope, fileID string) (bool, error) {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return false, err
	}

	ctx, cancel := b.withOpTimeout(ctx)
	defer cancel()

	_, err = b.client.StatObject(ctx, b.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return true, nil
}

// Upload transmits data as one put with a known length.
func (b *Backend) Upload(ctx context.Context, scope storage.Scope, fileID string, data []byte, contentType string) error {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return err
	}

	_, err = b.client.PutObject(ctx, b.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

// StreamUpload streams r with an unknown length; minio-go negotiates multipart
// parts internally at the configured part size. A failed multipart upload is
// aborted by the client and leaves no observable object.
func (b *Backend) StreamUpload(ctx context.Context, scope storage.Scope, fileID string, r io.Reader, contentType string) error {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return err
	}

	_, err = b.client.PutObject(ctx, b.bucket, key, r, -1, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    partSize,
	})
	if err != nil {
		return fmt.Errorf("stream upload: %w", err)
	}
	return nil
}

// Download returns the object body. GetObject is lazy, so a Stat round-trip
// resolves the length (and a missing object) before the first byte.
func (b *Backend) Download(ctx context.Context, scope storage.Scope, fileID string) (*storage.Object, error) {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return nil, err
	}

	obj, err := b.client.GetObject(ctx, b.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		if isNotFound(err) {
			return nil, fmt.Errorf("%w (key = %s)", storage.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}

	return &storage.Object{
		Body:          obj,
		ContentLength: info.Size,
		ContentType:   info.ContentType,
	}, nil
}

// Delete removes the object; removing an absent key succeeds.
func (b *Backend) Delete(ctx context.Context, scope storage.Scope, fileID string) error {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return err
	}

	ctx, cancel := b.withOpTimeout(ctx)
	defer cancel()

	if err := b.client.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

// SignDownloadURL produces a presigned GET URL with an attachment disposition.
func (b *Backend) SignDownloadURL(ctx context.Context, scope storage.Scope, fileID, fileName string, expiry time.Duration) (string, error) {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return "", err
	}

	params := url.Values{}
	if fileName != "" {
		params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	}

	signed, err := b.client.PresignedGetObject(ctx, b.bucket, key, expiry, params)
	if err != nil {
		return "", fmt.Errorf("presign url: %w", err)
	}
	return signed.String(), nil
}

// Type returns "minio" as the backend selector identifier.
func (b *Backend) Type() string {
	return "minio"
}

func (b *Backend) withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.opTimeout)
}

func isNotFound(err error) bool {
	var resp minio.ErrorResponse
	if errors.As(err, &resp) {
		return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
	}
	return false
}
