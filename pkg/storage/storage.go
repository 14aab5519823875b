package storage

// Package storage defines the backend abstraction for the file-management
// service. It provides a unified contract across the supported object-storage
// backends (AWS S3 and other S3-compatible services, MinIO, Google Cloud
// Storage). Backends address objects exclusively through the scope-based
// object key derived by ObjectKey; no other record field participates in
// addressing.

import (
	"context"
	"io"
	"time"
)

// LengthUnknown is reported as the content length when the backend cannot
// determine the object size before the first byte is delivered.
const LengthUnknown int64 = -1

// Object is the normalized download result shared by all backends: a lazy,
// single-pass body plus the length when the backend can report it.
// The caller owns Body and must close it on both completion and early abandon.
type Object struct {
	Body          io.ReadCloser
	ContentLength int64
	ContentType   string
}

// Backend is the contract every storage variant must satisfy.
// Implementations hold only the authenticated client and bucket name and must
// be safe for concurrent use by multiple in-flight transfers.
type Backend interface {
	// Exists reports whether the object for (scope, fileID) is present.
	// A confirmed "not found" returns (false, nil); transport and auth
	// failures propagate. This is the only operation allowed to collapse
	// not-found into a boolean.
	Exists(ctx context.Context, scope Scope, fileID string) (bool, error)

	// Upload transmits data as one atomic put. The caller retains data;
	// a failed upload must not leave a partial object observable as present.
	Upload(ctx context.Context, scope Scope, fileID string, data []byte, contentType string) error

	// Download returns the object body and its length, or LengthUnknown
	// when the backend cannot report it. A missing object yields an error
	// wrapping ErrObjectNotFound.
	Download(ctx context.Context, scope Scope, fileID string) (*Object, error)

	// Delete removes the object. Deleting an absent object is not an error.
	Delete(ctx context.Context, scope Scope, fileID string) error

	// Type returns the backend selector identifier ("s3", "minio" or "gcs").
	Type() string
}

// StreamUploader is implemented by backends with a native streaming upload
// primitive chunked at the backend's efficient-transfer unit. Backends without
// it fall back to the coordinator's buffered mode.
type StreamUploader interface {
	StreamUpload(ctx context.Context, scope Scope, fileID string, r io.Reader, contentType string) error
}

// URLSigner is implemented by backends that can hand out direct-to-client
// presigned download URLs. fileName is advisory and used for the
// Content-Disposition of the signed response where the backend supports it.
type URLSigner interface {
	SignDownloadURL(ctx context.Context, scope Scope, fileID, fileName string, expiry time.Duration) (string, error)
}
