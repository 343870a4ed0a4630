package storage

import (
	"context"
	"fmt"

	"github.com/silvercare/nas-gateway/internal/config"
	"github.com/sirupsen/logrus"
)

// New creates the archive backend selected by ARCHIVE_BACKEND
func New(ctx context.Context, cfg *config.Config) (StorageInterface, error) {
	switch cfg.ArchiveBackend {
	case "azure":
		return NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
	case "s3":
		return NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Prefix, cfg.S3Region, cfg.S3Endpoint)
	case "memory", "":
		logrus.Warn("Using in-memory archive storage; audit journals will not survive a restart")
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.ArchiveBackend)
	}
}
