package factory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yi-nology/filebridge/pkg/storage"
)

func TestNewUndefinedBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "tape"})
	if err == nil {
		t.Fatal("Expected error for unknown backend selector")
	}
	if !errors.Is(err, storage.ErrUndefinedBackend) {
		t.Errorf("Expected ErrUndefinedBackend, got %v", err)
	}
	if !strings.Contains(err.Error(), "tape") {
		t.Errorf("Error should name the selector, got %q", err.Error())
	}
}

func TestNewEmptyBackend(t *testing.T) {
	_, err := New(context.Background(), Config{})
	if !errors.Is(err, storage.ErrUndefinedBackend) {
		t.Errorf("Expected ErrUndefinedBackend for empty selector, got %v", err)
	}
}

func TestNewS3MissingRequiredFields(t *testing.T) {
	t.Run("MissingRegion", func(t *testing.T) {
		_, err := New(context.Background(), Config{
			Backend: "s3",
			S3:      S3Config{Bucket: "files"},
		})
		if !errors.Is(err, storage.ErrConnectorConfiguration) {
			t.Fatalf("Expected ErrConnectorConfiguration, got %v", err)
		}
		if !strings.Contains(err.Error(), "region") {
			t.Errorf("Error should name the missing field, got %q", err.Error())
		}
	})

	t.Run("MissingBucket", func(t *testing.T) {
		_, err := New(context.Background(), Config{
			Backend: "s3",
			S3:      S3Config{Region: "us-east-1"},
		})
		if !errors.Is(err, storage.ErrConnectorConfiguration) {
			t.Fatalf("Expected ErrConnectorConfiguration, got %v", err)
		}
		if !strings.Contains(err.Error(), "bucket") {
			t.Errorf("Error should name the missing field, got %q", err.Error())
		}
	})
}

func TestNewMinIOMissingEndpoint(t *testing.T) {
	_, err := New(context.Background(), Config{
		Backend: "minio",
		MinIO:   MinIOConfig{Bucket: "files"},
	})
	if !errors.Is(err, storage.ErrConnectorConfiguration) {
		t.Fatalf("Expected ErrConnectorConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "minio") {
		t.Errorf("Error should name the backend, got %q", err.Error())
	}
}

func TestNewGCSMissingProject(t *testing.T) {
	_, err := New(context.Background(), Config{
		Backend: "gcs",
		GCS:     GCSConfig{Bucket: "files"},
	})
	if !errors.Is(err, storage.ErrConnectorConfiguration) {
		t.Fatalf("Expected ErrConnectorConfiguration, got %v", err)
	}
}
