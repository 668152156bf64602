package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meter-reading-backend/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MeasureListCache caches rendered list responses in redis. Failures are logged
// and treated as cache misses.
//
// Every customer has a generation counter. List keys embed the generation that
// was current before the rows were read, and Invalidate bumps it, so a list
// rendered from rows older than a write is never served after that write.
type MeasureListCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMeasureListCache(client *redis.Client, ttl time.Duration) *MeasureListCache {
	return &MeasureListCache{client: client, ttl: ttl}
}

func MeasureListGenerationKey(customerCode string) string {
	return fmt.Sprintf("measures:%s:gen", customerCode)
}

func MeasureListCacheKey(customerCode, generation, filter string) string {
	return fmt.Sprintf("measures:%s:g%s:%s", customerCode, generation, filter)
}

// Generation returns the customer's current generation. ok is false when redis
// cannot be read, in which case the caller should skip the cache.
func (c *MeasureListCache) Generation(ctx context.Context, customerCode string) (string, bool) {
	generation, err := c.client.Get(ctx, MeasureListGenerationKey(customerCode)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", true
	}
	if err != nil {
		config.Logger.Warn("Measure list cache generation read failed",
			zap.String("customerCode", customerCode), zap.Error(err))
		return "", false
	}
	return generation, true
}

func (c *MeasureListCache) Get(ctx context.Context, customerCode, generation, filter string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, MeasureListCacheKey(customerCode, generation, filter)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			config.Logger.Warn("Measure list cache read failed",
				zap.String("customerCode", customerCode), zap.Error(err))
		}
		return nil, false
	}
	return payload, true
}

func (c *MeasureListCache) Set(ctx context.Context, customerCode, generation, filter string, payload []byte) {
	if err := c.client.Set(ctx, MeasureListCacheKey(customerCode, generation, filter), payload, c.ttl).Err(); err != nil {
		config.Logger.Warn("Measure list cache write failed",
			zap.String("customerCode", customerCode), zap.Error(err))
	}
}

// Invalidate retires every cached list of the customer. Entries under older
// generations are left to expire with their TTL.
func (c *MeasureListCache) Invalidate(ctx context.Context, customerCode string) {
	if err := c.client.Incr(ctx, MeasureListGenerationKey(customerCode)).Err(); err != nil {
		config.Logger.Error("Measure list cache invalidation failed",
			zap.String("customerCode", customerCode), zap.Error(err))
	}
}
