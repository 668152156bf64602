package tasks

import (
	"context"
	"fmt"
	"time"

	"meter-reading-backend/config"
	"meter-reading-backend/db/models"

	"go.uber.org/zap"
)

const sweepBatchSize = 500

type ImageLister interface {
	ListImages(ctx context.Context, olderThan time.Time) ([]string, error)
}

type ImageKeyChecker interface {
	ImageKeysInUse(ctx context.Context, keys []string) (map[string]bool, error)
}

type SweepStore interface {
	ImageLister
	ImageDeleter
}

// OrphanSweeper deletes stored images older than the grace period that no
// measure references. It catches images whose reap task never ran. Keys that
// are not measure image keys are never touched, so the bucket or upload
// directory may be shared.
type OrphanSweeper struct {
	store SweepStore
	keys  ImageKeyChecker
	grace time.Duration
	now   func() time.Time
}

func NewOrphanSweeper(store SweepStore, keys ImageKeyChecker, grace time.Duration) *OrphanSweeper {
	return &OrphanSweeper{
		store: store,
		keys:  keys,
		grace: grace,
		now:   time.Now,
	}
}

// Sweep returns the number of images deleted.
func (s *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	listed, err := s.store.ListImages(ctx, s.now().Add(-s.grace))
	if err != nil {
		return 0, err
	}

	candidates := make([]string, 0, len(listed))
	for _, key := range listed {
		if models.IsMeasureImageKey(key) {
			candidates = append(candidates, key)
		}
	}

	deleted := 0
	for start := 0; start < len(candidates); start += sweepBatchSize {
		end := start + sweepBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		inUse, err := s.keys.ImageKeysInUse(ctx, batch)
		if err != nil {
			return deleted, err
		}

		for _, key := range batch {
			if inUse[key] {
				continue
			}
			if err := s.store.Delete(ctx, key); err != nil {
				return deleted, fmt.Errorf("failed to delete orphaned image %s: %w", key, err)
			}
			deleted++
		}
	}

	config.Logger.Info("Orphan image sweep finished",
		zap.Int("scanned", len(listed)),
		zap.Int("candidates", len(candidates)),
		zap.Int("deleted", deleted),
	)
	return deleted, nil
}

// Run adapts Sweep to utils.CleanupJob.
func (s *OrphanSweeper) Run(ctx context.Context) error {
	_, err := s.Sweep(ctx)
	return err
}
