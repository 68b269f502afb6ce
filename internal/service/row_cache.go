package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/content-admin-api/internal/models"
	appErrors "github.com/noah-isme/content-admin-api/pkg/errors"
)

const (
	hierarchyRowsKey     = "hierarchy:rows"
	hierarchyCachePrefix = "hierarchy:*"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type cachedRows struct {
	Count    int                    `json:"count"`
	StoredAt time.Time              `json:"stored_at"`
	Rows     []models.HierarchyNode `json:"rows"`
}

// RowCache shares raw hierarchy rows between processes. A nil *RowCache is
// a cache that always misses.
type RowCache struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewRowCache constructs a RowCache over repo.
func NewRowCache(repo CacheRepository, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *RowCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RowCache{repo: repo, metrics: metrics, ttl: ttl, logger: logger}
}

// Load returns the shared rows. Faults and truncated entries count as a miss.
func (c *RowCache) Load(ctx context.Context) ([]models.HierarchyNode, bool) {
	if c == nil || c.repo == nil {
		return nil, false
	}
	start := time.Now()
	var entry cachedRows
	err := c.repo.Get(ctx, hierarchyRowsKey, &entry)
	hit := err == nil && entry.Count == len(entry.Rows)
	c.metrics.RecordCacheOperation(hit, time.Since(start))
	switch {
	case err != nil && !errors.Is(err, appErrors.ErrCacheMiss):
		c.logger.Warn("hierarchy cache read failed", zap.Error(err))
	case err == nil && !hit:
		c.logger.Warn("hierarchy cache entry truncated", zap.Int("expected", entry.Count), zap.Int("got", len(entry.Rows)))
	}
	if !hit {
		return nil, false
	}
	return entry.Rows, true
}

// Store publishes rows for other processes. Failures are logged only.
func (c *RowCache) Store(ctx context.Context, rows []models.HierarchyNode) {
	if c == nil || c.repo == nil {
		return
	}
	start := time.Now()
	err := c.repo.Set(ctx, hierarchyRowsKey, cachedRows{Count: len(rows), StoredAt: time.Now().UTC(), Rows: rows}, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("hierarchy cache write failed", zap.Error(err))
	}
}

// Drop removes every hierarchy entry.
func (c *RowCache) Drop(ctx context.Context) error {
	if c == nil || c.repo == nil {
		return nil
	}
	if err := c.repo.DeleteByPattern(ctx, hierarchyCachePrefix); err != nil {
		c.logger.Warn("hierarchy cache invalidate failed", zap.Error(err))
		return err
	}
	return nil
}
