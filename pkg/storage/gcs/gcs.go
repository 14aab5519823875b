// Package gcs implements the Google Cloud Storage backend.
package gcs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	gstorage "cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yi-nology/filebridge/pkg/storage"
)

const (
	// chunkSize is the upload buffer negotiated per write round-trip.
	chunkSize = 5 * 1024 * 1024

	defaultOperationTimeout = 15 * time.Second
)

// Config holds GCS backend configuration. ServiceAccountKey is an optional
// base64-encoded service-account JSON key; when absent the client falls back
// to ambient application-default credentials.
type Config struct {
	ProjectID         string
	Bucket            string
	ServiceAccountKey string
	OperationTimeout  time.Duration
}

// Backend implements storage.Backend, storage.StreamUploader and
// storage.URLSigner on top of the Cloud Storage client.
type Backend struct {
	client    *gstorage.Client
	bucket    string
	opTimeout time.Duration
}

// New creates a GCS backend. ProjectID and bucket are required; a malformed
// service-account key fails construction immediately.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	if cfg.ProjectID == "" {
		return nil, storage.ConfigError("gcs", "project_id")
	}
	if cfg.Bucket == "" {
		return nil, storage.ConfigError("gcs", "bucket")
	}

	var opts []option.ClientOption
	if cfg.ServiceAccountKey != "" {
		keyJSON, err := base64.StdEncoding.DecodeString(cfg.ServiceAccountKey)
		if err != nil {
			return nil, fmt.Errorf("%w: decode service account key: %v", storage.ErrConnectorConfiguration, err)
		}
		opts = append(opts, option.WithCredentialsJSON(keyJSON))
	}

	client, err := gstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	opTimeout := cfg.OperationTimeout
	if opTimeout <= 0 {
		opTimeout = defaultOperationTimeout
	}

	return &Backend{client: client, bucket: cfg.Bucket, opTimeout: opTimeout}, nil
}

// Exists checks object presence through an attrs fetch. Only
// ErrObjectNotExist collapses to false.
func (b *Backend) Exists(ctx context.Context, scope storage.Scope, fileID string) (bool, error) {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return false, err
	}

	ctx, cancel := b.withOpTimeout(ctx)
	defer cancel()

	_, err = b.client.Bucket(b.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("object attrs: %w", err)
	}
	return true, nil
}

// Upload writes data through a single writer. The object only becomes
// observable on a successful Close, so a failed upload leaves nothing behind.
func (b *Backend) Upload(ctx context.Context, scope storage.Scope, fileID string, data []byte, contentType string) error {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return err
	}

	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer: %w", err)
	}
	return nil
}

// StreamUpload copies r through a chunked resumable writer. An error before
// Close abandons the resumable session without publishing the object.
func (b *Backend) StreamUpload(ctx context.Context, scope storage.Scope, fileID string, r io.Reader, contentType string) error {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return err
	}

	w := b.client.Bucket(b.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType
	w.ChunkSize = chunkSize

	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("stream upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close object writer: %w", err)
	}
	return nil
}

// Download returns a reader whose attrs carry the object size.
func (b *Backend) Download(ctx context.Context, scope storage.Scope, fileID string) (*storage.Object, error) {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return nil, err
	}

	r, err := b.client.Bucket(b.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w (key = %s)", storage.ErrObjectNotFound, key)
		}
		return nil, fmt.Errorf("new object reader: %w", err)
	}

	return &storage.Object{
		Body:          r,
		ContentLength: r.Attrs.Size,
		ContentType:   r.Attrs.ContentType,
	}, nil
}

// Delete removes the object, treating an already-absent object as success.
func (b *Backend) Delete(ctx context.Context, scope storage.Scope, fileID string) error {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return err
	}

	ctx, cancel := b.withOpTimeout(ctx)
	defer cancel()

	if err := b.client.Bucket(b.bucket).Object(key).Delete(ctx); err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// SignDownloadURL produces a V4 signed GET URL. Signing requires a credential
// with a private key; ambient credentials without one surface the signer error.
func (b *Backend) SignDownloadURL(ctx context.Context, scope storage.Scope, fileID, fileName string, expiry time.Duration) (string, error) {
	key, err := storage.ObjectKey(scope, fileID)
	if err != nil {
		return "", err
	}

	opts := &gstorage.SignedURLOptions{
		Scheme:  gstorage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(expiry),
	}
	if fileName != "" {
		opts.QueryParameters = url.Values{
			"response-content-disposition": {fmt.Sprintf("attachment; filename=%q", fileName)},
		}
	}

	signed, err := b.client.Bucket(b.bucket).SignedURL(key, opts)
	if err != nil {
		return "", fmt.Errorf("sign url: %w", err)
	}
	return signed, nil
}

// Type returns "gcs" as the backend selector identifier.
func (b *Backend) Type() string {
	return "gcs"
}

func (b *Backend) withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, b.opTimeout)
}
