// Package config handles configuration loading and validation.
// Precedence: built-in defaults, then an optional YAML file, then ANNOTATOR_*
// environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	Export   ExportConfig   `yaml:"export"`
	Temporal TemporalConfig `yaml:"temporal"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host string `envconfig:"ANNOTATOR_HOST" yaml:"host"`
	Port int    `envconfig:"ANNOTATOR_PORT" yaml:"port"`

	// Write requests per second across all clients; 0 disables limiting.
	WriteRate  float64 `envconfig:"ANNOTATOR_WRITE_RATE" yaml:"write_rate"`
	WriteBurst int     `envconfig:"ANNOTATOR_WRITE_BURST" yaml:"write_burst"`
}

// StoreConfig selects the key-value backend for session caches.
type StoreConfig struct {
	Type     string `envconfig:"ANNOTATOR_STORE_TYPE" yaml:"type"` // file, redis or memory
	Dir      string `envconfig:"ANNOTATOR_STORE_DIR" yaml:"dir"`
	RedisURL string `envconfig:"ANNOTATOR_REDIS_URL" yaml:"redis_url"`
	Prefix   string `envconfig:"ANNOTATOR_STORE_PREFIX" yaml:"prefix"`
}

// ExportConfig selects where published exports are written.
type ExportConfig struct {
	Sink  string      `envconfig:"ANNOTATOR_EXPORT_SINK" yaml:"sink"` // file or s3
	Dir   string      `envconfig:"ANNOTATOR_EXPORT_DIR" yaml:"dir"`
	S3    S3Config    `yaml:"s3"`
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig bounds retries of direct (non-workflow) publishes.
type RetryConfig struct {
	MaxAttempts     int           `envconfig:"ANNOTATOR_EXPORT_RETRY_ATTEMPTS" yaml:"max_attempts"`
	InitialInterval time.Duration `envconfig:"ANNOTATOR_EXPORT_RETRY_INITIAL" yaml:"initial_interval"`
	MaxInterval     time.Duration `envconfig:"ANNOTATOR_EXPORT_RETRY_MAX" yaml:"max_interval"`
}

// S3Config holds S3 or MinIO settings.
type S3Config struct {
	Bucket    string `envconfig:"ANNOTATOR_S3_BUCKET" yaml:"bucket"`
	Prefix    string `envconfig:"ANNOTATOR_S3_PREFIX" yaml:"prefix"`
	Region    string `envconfig:"ANNOTATOR_S3_REGION" yaml:"region"`
	Endpoint  string `envconfig:"ANNOTATOR_S3_ENDPOINT" yaml:"endpoint"`
	AccessKey string `envconfig:"ANNOTATOR_S3_ACCESS_KEY" yaml:"access_key"`
	SecretKey string `envconfig:"ANNOTATOR_S3_SECRET_KEY" yaml:"secret_key"`
}

// TemporalConfig holds Temporal client settings for batch exports.
type TemporalConfig struct {
	HostPort  string `envconfig:"ANNOTATOR_TEMPORAL_HOST_PORT" yaml:"host_port"`
	Namespace string `envconfig:"ANNOTATOR_TEMPORAL_NAMESPACE" yaml:"namespace"`
	TaskQueue string `envconfig:"ANNOTATOR_TEMPORAL_TASK_QUEUE" yaml:"task_queue"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"ANNOTATOR_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"ANNOTATOR_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:       "127.0.0.1",
			Port:       8080,
			WriteRate:  20,
			WriteBurst: 40,
		},
		Store: StoreConfig{
			Type:     "file",
			Dir:      "./.annotator",
			RedisURL: "redis://localhost:6379/0",
			Prefix:   "annotator:",
		},
		Export: ExportConfig{
			Sink: "file",
			Dir:  "./exports",
			S3:   S3Config{Region: "us-east-1", Prefix: "exports"},
			Retry: RetryConfig{
				MaxAttempts:     3,
				InitialInterval: 200 * time.Millisecond,
				MaxInterval:     5 * time.Second,
			},
		},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "annotation-export",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}
	if c.Server.WriteRate < 0 {
		errs = append(errs, "write_rate must not be negative")
	}
	if c.Server.WriteRate > 0 && c.Server.WriteBurst < 1 {
		errs = append(errs, "write_burst must be positive when write_rate is set")
	}

	switch c.Store.Type {
	case "file":
		if c.Store.Dir == "" {
			errs = append(errs, "store dir is required for the file store")
		}
	case "redis":
		if c.Store.RedisURL == "" {
			errs = append(errs, "redis_url is required for the redis store")
		}
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("invalid store type: %s (must be file, redis, or memory)", c.Store.Type))
	}

	switch c.Export.Sink {
	case "file":
		if c.Export.Dir == "" {
			errs = append(errs, "export dir is required for the file sink")
		}
	case "s3":
		if c.Export.S3.Bucket == "" {
			errs = append(errs, "s3 bucket is required for the s3 sink")
		}
	default:
		errs = append(errs, fmt.Sprintf("invalid export sink: %s (must be file or s3)", c.Export.Sink))
	}

	if c.Export.Retry.MaxAttempts < 1 {
		errs = append(errs, "export retry max_attempts must be at least 1")
	}
	if c.Export.Retry.InitialInterval <= 0 || c.Export.Retry.MaxInterval < c.Export.Retry.InitialInterval {
		errs = append(errs, "export retry intervals must be positive with max_interval >= initial_interval")
	}

	if c.Temporal.TaskQueue == "" {
		errs = append(errs, "temporal task_queue is required")
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Address returns the server listen address.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// ParseLevel maps a level name to its slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}
}
