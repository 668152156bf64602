package utils

import (
	"context"
	"fmt"
	"time"

	"meter-reading-backend/config"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Retry configuration
const maxRetries = 3
const retryDelay = 2 * time.Minute // 2 minutes between retries

// CleanupJob is a single pass of a scheduled cleanup.
type CleanupJob func(ctx context.Context) error

// RunScheduledCleanup runs job on the cron spec until ctx is done. A failed pass
// is retried up to maxRetries times before giving up until the next tick.
func RunScheduledCleanup(ctx context.Context, spec string, name string, job CleanupJob) error {
	c := cron.New()

	_, err := c.AddFunc(spec, func() {
		config.Logger.Info("Running scheduled cleanup task", zap.String("task", name))
		if err := runWithRetries(ctx, name, job, maxRetries, retryDelay); err != nil {
			config.Logger.Error("Cleanup task failed after retries, please check the system",
				zap.String("task", name),
				zap.Int("retries", maxRetries),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", spec, err)
	}

	c.Start()
	config.Logger.Info("Scheduled cleanup task", zap.String("task", name), zap.String("schedule", spec))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func runWithRetries(ctx context.Context, name string, job CleanupJob, attempts int, delay time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = job(ctx)
		if lastErr == nil {
			config.Logger.Info("Cleanup successful", zap.String("task", name), zap.Int("attempt", attempt))
			return nil
		}

		config.Logger.Warn("Cleanup attempt failed",
			zap.String("task", name),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}
