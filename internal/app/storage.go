package app

import (
	"context"
	"fmt"

	"github.com/feichai0017/document-ingest/config"
	"github.com/feichai0017/document-ingest/pkg/logger"
	"github.com/feichai0017/document-ingest/pkg/storage"
	"github.com/feichai0017/document-ingest/pkg/storage/local"
	"github.com/feichai0017/document-ingest/pkg/storage/minio"
	"github.com/feichai0017/document-ingest/pkg/storage/s3"
)

// NewStorage returns the backend selected by STORAGE_BACKEND.
func NewStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (storage.Storage, error) {
	var (
		store storage.Storage
		err   error
	)

	switch cfg.StorageBackend {
	case config.StorageLocal:
		store, err = local.NewLocalStorage(cfg.DocumentStoragePath, log)
	case config.StorageMinio:
		store, err = minio.NewMinioStorage(ctx, cfg.Minio, log)
	case config.StorageS3:
		store, err = s3.NewS3Storage(ctx, cfg.S3, log)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to init %s storage: %w", cfg.StorageBackend, err)
	}

	log.Info("Document storage ready", logger.String("backend", cfg.StorageBackend))
	return store, nil
}
