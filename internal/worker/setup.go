package worker

import (
	"context"
	"fmt"

	"github.com/ahrav/go-rubric/internal/config"
	"github.com/ahrav/go-rubric/internal/export"
	"github.com/ahrav/go-rubric/internal/kvstore"
)

// InitializeSink creates the export sink selected by cfg.
// Returns the sink for dependency injection rather than setting global state.
func InitializeSink(ctx context.Context, cfg config.ExportConfig) (export.Sink, error) {
	switch cfg.Sink {
	case "s3":
		sink, err := export.NewS3Sink(ctx, export.S3Options{
			Bucket:    cfg.S3.Bucket,
			Prefix:    cfg.S3.Prefix,
			Region:    cfg.S3.Region,
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize s3 sink: %w", err)
		}
		return sink, nil
	case "file", "":
		sink, err := export.NewFileSink(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file sink: %w", err)
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown export sink %q", cfg.Sink)
	}
}

// InitializeStore creates the key-value store selected by cfg.
// The caller owns the returned store and must Close it.
func InitializeStore(ctx context.Context, cfg config.StoreConfig) (kvstore.Store, error) {
	switch cfg.Type {
	case "redis":
		store, err := kvstore.NewRedisStore(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize redis store: %w", err)
		}
		return store, nil
	case "memory":
		return kvstore.NewMemoryStore(), nil
	case "file", "":
		store, err := kvstore.NewFileStore(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize file store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}
