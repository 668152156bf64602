package services

import (
	"context"
	"fmt"
	"time"

	"meter-reading-backend/config"
	"meter-reading-backend/utils"
)

// ImageStore is where meter photos live once they have been read.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, key string) (string, error)
	Delete(ctx context.Context, key string) error
	ListImages(ctx context.Context, olderThan time.Time) ([]string, error)
}

// NewImageStore builds the store selected by STORAGE_DRIVER.
func NewImageStore(ctx context.Context, cfg config.StorageConfig, baseURL string) (ImageStore, error) {
	switch cfg.Driver {
	case config.StorageDriverS3:
		return NewS3ImageStore(ctx, cfg)
	case config.StorageDriverLocal:
		return utils.NewLocalImageStore(cfg.LocalPath, baseURL), nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
