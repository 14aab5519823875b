// Package factory constructs the configured storage backend. The backend is
// selected once at startup; nothing else in the system inspects the concrete
// variant.
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/yi-nology/filebridge/pkg/storage"
	"github.com/yi-nology/filebridge/pkg/storage/gcs"
	"github.com/yi-nology/filebridge/pkg/storage/minio"
	"github.com/yi-nology/filebridge/pkg/storage/s3"
)

// Config holds storage configuration as loaded from the service config file.
type Config struct {
	Backend string      `yaml:"backend"`
	S3      S3Config    `yaml:"s3"`
	MinIO   MinIOConfig `yaml:"minio"`
	GCS     GCSConfig   `yaml:"gcs"`

	// OperationTimeoutSeconds bounds metadata calls (existence checks,
	// deletes) against the backend. Zero applies the backend default.
	OperationTimeoutSeconds int `yaml:"operation_timeout_seconds"`
}

// S3Config holds AWS S3 (and S3-compatible) settings.
type S3Config struct {
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	PathStyle bool   `yaml:"path_style"`
}

// MinIOConfig holds MinIO settings.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// GCSConfig holds Google Cloud Storage settings. ServiceAccountKey is a
// base64-encoded service-account JSON key.
type GCSConfig struct {
	ProjectID         string `yaml:"project_id"`
	Bucket            string `yaml:"bucket"`
	ServiceAccountKey string `yaml:"service_account_key"`
}

// New creates the backend named by cfg.Backend. An unknown selector or a
// configuration block missing required fields fails immediately.
func New(ctx context.Context, cfg Config) (storage.Backend, error) {
	opTimeout := time.Duration(cfg.OperationTimeoutSeconds) * time.Second

	switch cfg.Backend {
	case "s3":
		return s3.New(ctx, s3.Config{
			Region:           cfg.S3.Region,
			Endpoint:         cfg.S3.Endpoint,
			Bucket:           cfg.S3.Bucket,
			AccessKey:        cfg.S3.AccessKey,
			SecretKey:        cfg.S3.SecretKey,
			PathStyle:        cfg.S3.PathStyle,
			OperationTimeout: opTimeout,
		})

	case "minio":
		return minio.New(ctx, minio.Config{
			Endpoint:         cfg.MinIO.Endpoint,
			Bucket:           cfg.MinIO.Bucket,
			AccessKey:        cfg.MinIO.AccessKey,
			SecretKey:        cfg.MinIO.SecretKey,
			UseSSL:           cfg.MinIO.UseSSL,
			OperationTimeout: opTimeout,
		})

	case "gcs":
		return gcs.New(ctx, gcs.Config{
			ProjectID:         cfg.GCS.ProjectID,
			Bucket:            cfg.GCS.Bucket,
			ServiceAccountKey: cfg.GCS.ServiceAccountKey,
			OperationTimeout:  opTimeout,
		})

	default:
		return nil, fmt.Errorf("%w (backend = %s)", storage.ErrUndefinedBackend, cfg.Backend)
	}
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend: "s3",
		S3: S3Config{
			Region: "us-east-1",
		},
	}
}
