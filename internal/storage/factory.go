package storage

import (
	"context"
	"fmt"

	"github.com/nexo-app/nexo/internal/config"
	"github.com/nexo-app/nexo/internal/storage/local"
	s3backend "github.com/nexo-app/nexo/internal/storage/s3"
)

// NewFromConfig creates the Backend selected by STORAGE_BACKEND.
func NewFromConfig(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case "local":
		return local.New(local.Config{
			RootPath:   cfg.LocalStoragePath,
			CreateDirs: true,
		})
	case "s3":
		return s3backend.NewBackend(ctx, s3backend.BackendConfig{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
			UseSSL:    cfg.S3UseSSL,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.StorageBackend)
	}
}
