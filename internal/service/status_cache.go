package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timesheet-api/internal/dto"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
)

type statusCacheStore interface {
	Load(ctx context.Context, sheetID string) (*dto.TimeSheetStatusView, error)
	Fill(ctx context.Context, view *dto.TimeSheetStatusView, ttl time.Duration) (bool, error)
	Publish(ctx context.Context, view *dto.TimeSheetStatusView, ttl time.Duration) error
	Evict(ctx context.Context, sheetIDs ...string) error
}

// StatusCache fronts status projections with a shared store. Store failures are
// logged and counted, and callers fall through to the database. A nil *StatusCache is
// a disabled cache.
type StatusCache struct {
	store   statusCacheStore
	metrics *MetricsService
	ttl     time.Duration
	logger  *zap.Logger
}

// NewStatusCache constructs a status cache. A nil store disables it.
func NewStatusCache(store statusCacheStore, metrics *MetricsService, ttl time.Duration, logger *zap.Logger) *StatusCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatusCache{store: store, metrics: metrics, ttl: ttl, logger: logger}
}

// Enabled reports whether lookups reach a store.
func (c *StatusCache) Enabled() bool {
	return c != nil && c.store != nil
}

// Lookup returns the cached projection of a sheet, or false on a miss.
func (c *StatusCache) Lookup(ctx context.Context, sheetID string) (*dto.TimeSheetStatusView, bool) {
	if !c.Enabled() {
		return nil, false
	}
	start := time.Now()
	view, err := c.store.Load(ctx, sheetID)
	c.metrics.RecordCacheLookup(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			c.logger.Warn("status cache lookup failed", zap.String("time_sheet_id", sheetID), zap.Error(err))
		}
		return nil, false
	}
	return view, true
}

// Remember caches a projection read from the database after a miss. It never replaces a
// projection already cached, since a mutation may have published a newer one meanwhile.
func (c *StatusCache) Remember(ctx context.Context, view *dto.TimeSheetStatusView) {
	if !c.Enabled() || view == nil {
		return
	}
	start := time.Now()
	_, err := c.store.Fill(ctx, view, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("status cache write failed", zap.String("time_sheet_id", view.ID), zap.Error(err))
	}
}

// Publish caches the projection left by a committed mutation. When the write fails the
// entry is evicted instead, so readers fall back to the database.
func (c *StatusCache) Publish(ctx context.Context, view *dto.TimeSheetStatusView) {
	if !c.Enabled() || view == nil {
		return
	}
	start := time.Now()
	err := c.store.Publish(ctx, view, c.ttl)
	c.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		c.logger.Warn("status cache publish failed", zap.String("time_sheet_id", view.ID), zap.Error(err))
		c.Forget(ctx, view.ID)
	}
}

// Forget evicts the projections of the given sheets.
func (c *StatusCache) Forget(ctx context.Context, sheetIDs ...string) {
	if !c.Enabled() || len(sheetIDs) == 0 {
		return
	}
	if err := c.store.Evict(ctx, sheetIDs...); err != nil {
		c.logger.Warn("status cache eviction failed", zap.Strings("time_sheet_ids", sheetIDs), zap.Error(err))
	}
}
