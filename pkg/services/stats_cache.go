package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const statsCacheTTL = 5 * time.Minute

// StatsStore is the cache surface the record services write through.
// Every successful mutation invalidates the owner's entry, so cached
// stats never outlive the write that changed them.
type StatsStore interface {
	Get(ctx context.Context, entity string, ownerID uuid.UUID, out any) bool
	Set(ctx context.Context, entity string, ownerID uuid.UUID, stats any)
	Invalidate(ctx context.Context, entity string, ownerID uuid.UUID)
}

// StatsCache is a read-through cache for per-owner aggregate stats. The
// cache is best-effort: a nil Redis client or any Redis failure degrades
// to computing stats from the database.
type StatsCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewStatsCache creates a stats cache. client may be nil, which disables
// caching entirely.
func NewStatsCache(client *redis.Client, logger *zap.Logger) *StatsCache {
	return &StatsCache{
		client: client,
		logger: logger.Named("stats_cache"),
	}
}

// Get loads cached stats into out. Returns false on miss, disabled cache,
// or any Redis error.
func (c *StatsCache) Get(ctx context.Context, entity string, ownerID uuid.UUID, out any) bool {
	if c.client == nil {
		return false
	}

	raw, err := c.client.Get(ctx, statsKey(entity, ownerID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug("stats cache read failed", zap.String("entity", entity), zap.Error(err))
		}
		return false
	}

	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("stats cache entry corrupt", zap.String("entity", entity), zap.Error(err))
		return false
	}

	return true
}

// Set stores stats under the entity/owner key.
func (c *StatsCache) Set(ctx context.Context, entity string, ownerID uuid.UUID, stats any) {
	if c.client == nil {
		return
	}

	raw, err := json.Marshal(stats)
	if err != nil {
		c.logger.Warn("stats cache marshal failed", zap.String("entity", entity), zap.Error(err))
		return
	}

	if err := c.client.Set(ctx, statsKey(entity, ownerID), raw, statsCacheTTL).Err(); err != nil {
		c.logger.Debug("stats cache write failed", zap.String("entity", entity), zap.Error(err))
	}
}

// Invalidate drops the cached stats for the entity/owner pair.
func (c *StatsCache) Invalidate(ctx context.Context, entity string, ownerID uuid.UUID) {
	if c.client == nil {
		return
	}

	if err := c.client.Del(ctx, statsKey(entity, ownerID)).Err(); err != nil {
		c.logger.Debug("stats cache invalidation failed", zap.String("entity", entity), zap.Error(err))
	}
}

func statsKey(entity string, ownerID uuid.UUID) string {
	return fmt.Sprintf("stats:%s:%s", entity, ownerID)
}

var _ StatsStore = (*StatsCache)(nil)
