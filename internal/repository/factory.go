package repository

import (
	"context"
	"fmt"

	"github.com/debemdeboas/lending-admin/internal/config"
	"github.com/debemdeboas/lending-admin/internal/db"
	"github.com/debemdeboas/lending-admin/internal/util/compression"
)

// NewFromConfig builds the backend selected by cfg.Backend. The repository is
// not initialized.
func NewFromConfig(ctx context.Context, cfg config.StorageConfig) (DocumentRepository, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemoryDocumentRepository(), nil
	case "", "sqlite":
		compressor, err := compression.New(cfg.Compression)
		if err != nil {
			return nil, err
		}
		return NewDBDocumentRepository(db.NewSQLite(cfg.SQLitePath), compressor, cfg.PollInterval), nil
	case "fs":
		return NewFSDocumentRepository(cfg.FSPath, cfg.PollInterval), nil
	case "s3":
		repo, err := NewS3DocumentRepository(ctx, S3Options{
			Bucket:          cfg.S3.Bucket,
			Prefix:          cfg.S3.Prefix,
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
		}, cfg.PollInterval)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "redis":
		repo, err := NewRedisDocumentRepository(cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case "postgres":
		if cfg.PostgresURL == "" {
			return nil, fmt.Errorf("storage backend postgres requires postgres_url")
		}
		return NewPostgresDocumentRepository(cfg.PostgresURL), nil
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// Open builds the configured backend and initializes it.
func Open(ctx context.Context, cfg config.StorageConfig) (DocumentRepository, error) {
	repo, err := NewFromConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := repo.Init(ctx); err != nil {
		return nil, fmt.Errorf("error initializing %s backend: %w", cfg.Backend, err)
	}
	return repo, nil
}
