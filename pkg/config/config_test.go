package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load("non-existent-config.yaml")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	assertDefaultConfig(t, cfg)
}

func TestLoadWithPartialConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  address: ":9090"
database:
  driver: ""
  sqlite: {}
storage:
  backend: minio
  minio:
    endpoint: "localhost:9000"
    bucket: files
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Address != ":9090" {
		t.Fatalf("expected server address :9090, got %s", cfg.Server.Address)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected database driver sqlite, got %s", cfg.Database.Driver)
	}
	if cfg.Database.SQLite.Path != "data/filebridge.db" {
		t.Fatalf("expected sqlite path data/filebridge.db, got %s", cfg.Database.SQLite.Path)
	}
	if cfg.Storage.Backend != "minio" {
		t.Fatalf("expected storage backend minio, got %s", cfg.Storage.Backend)
	}
	if cfg.Storage.MinIO.Bucket != "files" {
		t.Fatalf("expected minio bucket files, got %s", cfg.Storage.MinIO.Bucket)
	}
	if cfg.Transfer.ChunkSize != 1024*1024 {
		t.Fatalf("expected default chunk size, got %d", cfg.Transfer.ChunkSize)
	}
	if cfg.Transfer.URLCacheTTLSeconds != 1800 {
		t.Fatalf("expected default url cache ttl, got %d", cfg.Transfer.URLCacheTTLSeconds)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  address: ":9090"
  unknown_knob: true
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown config field")
	}
}

func assertDefaultConfig(t *testing.T, cfg *Config) {
	t.Helper()
	if cfg == nil {
		t.Fatalf("config is nil")
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("expected default address :8080, got %s", cfg.Server.Address)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("expected default driver sqlite, got %s", cfg.Database.Driver)
	}
	if cfg.Database.SQLite.Path != "data/filebridge.db" {
		t.Fatalf("expected default sqlite path, got %s", cfg.Database.SQLite.Path)
	}
	if cfg.Storage.Backend != "s3" {
		t.Fatalf("expected default backend s3, got %s", cfg.Storage.Backend)
	}
	if cfg.Transfer.TimeoutSeconds != 600 {
		t.Fatalf("expected default transfer timeout, got %d", cfg.Transfer.TimeoutSeconds)
	}
	if cfg.Identity.TimeoutSeconds != 10 {
		t.Fatalf("expected default identity timeout, got %d", cfg.Identity.TimeoutSeconds)
	}
}
