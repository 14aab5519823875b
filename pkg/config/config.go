package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/yi-nology/filebridge/pkg/storage/factory"
)

// Config captures service level configuration loaded from config.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  factory.Config `yaml:"storage"`
	Transfer TransferConfig `yaml:"transfer"`
	Identity IdentityConfig `yaml:"identity"`
	Redis    RedisConfig    `yaml:"redis"`
	CORS     CORSConfig     `yaml:"cors"`
}

// ServerConfig defines HTTP server options.
type ServerConfig struct {
	Address string `yaml:"address"`
	// MaxUploadSize caps a single upload request body in bytes.
	MaxUploadSize int64 `yaml:"max_upload_size"`
}

// DatabaseConfig defines the metadata database backend configuration.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig contains SQLite specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// MySQLConfig contains MySQL specific connection details.
type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

// PostgresConfig contains PostgreSQL specific connection details.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// TransferConfig tunes the streaming transfer layer.
type TransferConfig struct {
	// ChunkSize is the download read size in bytes.
	ChunkSize int `yaml:"chunk_size"`
	// TimeoutSeconds bounds one full-object transfer.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// URLCacheTTLSeconds is the lifetime of cached presigned download URLs.
	URLCacheTTLSeconds int `yaml:"url_cache_ttl_seconds"`
}

// IdentityConfig points at the identity service used to validate parent
// resources (workspaces) before record creation. An empty endpoint disables
// the check.
type IdentityConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// RedisConfig defines Redis connection settings for the download-URL cache.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CORSConfig defines CORS middleware settings.
type CORSConfig struct {
	AllowOrigin      string `yaml:"allow_origin"`
	AllowMethods     string `yaml:"allow_methods"`
	AllowHeaders     string `yaml:"allow_headers"`
	AllowCredentials bool   `yaml:"allow_credentials"`
}

// Load reads a YAML configuration file from the provided path.
// It searches in the current working directory first, then next to the binary
// executable.
func Load(name string) (*Config, error) {
	cfg := defaultConfig()

	configPath := findConfigFile(name)
	if configPath == "" {
		log.Printf("Warning: config file %q not found, using defaults", name)
		return cfg, nil
	}

	log.Printf("Loading config from: %s", configPath)
	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer func() { _ = f.Close() }()

	var parsed Config
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyDefaults(&parsed)
	return &parsed, nil
}

func defaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Address:       ":8080",
			MaxUploadSize: 4 << 30, // 4GB
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			SQLite: SQLiteConfig{
				Path: "data/filebridge.db",
			},
		},
		Storage: factory.DefaultConfig(),
		Transfer: TransferConfig{
			ChunkSize:          1024 * 1024,
			TimeoutSeconds:     600,
			URLCacheTTLSeconds: 1800,
		},
		Identity: IdentityConfig{
			TimeoutSeconds: 10,
		},
		CORS: CORSConfig{
			AllowOrigin:      "*",
			AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
			AllowHeaders:     "*",
			AllowCredentials: false,
		},
	}
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":8080"
	}
	if cfg.Server.MaxUploadSize <= 0 {
		cfg.Server.MaxUploadSize = 4 << 30
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = "data/filebridge.db"
	}
	if cfg.Transfer.ChunkSize <= 0 {
		cfg.Transfer.ChunkSize = 1024 * 1024
	}
	if cfg.Transfer.TimeoutSeconds <= 0 {
		cfg.Transfer.TimeoutSeconds = 600
	}
	if cfg.Transfer.URLCacheTTLSeconds <= 0 {
		cfg.Transfer.URLCacheTTLSeconds = 1800
	}
	if cfg.Identity.TimeoutSeconds <= 0 {
		cfg.Identity.TimeoutSeconds = 10
	}
}

// findConfigFile searches for a config file in the current directory first,
// then next to the binary executable. Returns the full path or empty string.
func findConfigFile(name string) string {
	// 1. Current working directory
	if _, err := os.Stat(name); err == nil {
		abs, _ := filepath.Abs(name)
		return abs
	}

	// 2. Next to the binary executable
	exe, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exe)
		candidate := filepath.Join(exeDir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return ""
}
