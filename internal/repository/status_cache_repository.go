package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/timesheet-api/internal/dto"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
)

// DefaultStatusKeyPrefix namespaces status projections in Redis.
const DefaultStatusKeyPrefix = "timesheet:status:"

const publishAttempts = 3

// StatusCacheRepository keeps time sheet status projections in Redis.
// A nil client behaves as an always-empty cache.
type StatusCacheRepository struct {
	client redis.UniversalClient
	prefix string
}

// NewStatusCacheRepository constructs the repository. An empty prefix falls back to DefaultStatusKeyPrefix.
func NewStatusCacheRepository(client redis.UniversalClient, prefix string) *StatusCacheRepository {
	if prefix == "" {
		prefix = DefaultStatusKeyPrefix
	}
	return &StatusCacheRepository{client: client, prefix: prefix}
}

// Key returns the Redis key holding a sheet's projection.
func (r *StatusCacheRepository) Key(sheetID string) string {
	return r.prefix + sheetID
}

// Load returns the cached projection or appErrors.ErrCacheMiss.
func (r *StatusCacheRepository) Load(ctx context.Context, sheetID string) (*dto.TimeSheetStatusView, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := r.client.Get(ctx, r.Key(sheetID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("load status projection %s: %w", sheetID, err)
	}
	var view dto.TimeSheetStatusView
	if err := json.Unmarshal(raw, &view); err != nil {
		// A payload from an older layout is dropped so the next read can fill the key again.
		_ = r.client.Unlink(ctx, r.Key(sheetID)).Err()
		return nil, appErrors.ErrCacheMiss
	}
	return &view, nil
}

// Fill caches a projection read from the database unless one is already present, so a
// slow reader never replaces the projection a mutation published after its read.
func (r *StatusCacheRepository) Fill(ctx context.Context, view *dto.TimeSheetStatusView, ttl time.Duration) (bool, error) {
	if r.client == nil || view == nil {
		return false, nil
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return false, fmt.Errorf("marshal status projection %s: %w", view.ID, err)
	}
	stored, err := r.client.SetNX(ctx, r.Key(view.ID), payload, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("fill status projection %s: %w", view.ID, err)
	}
	return stored, nil
}

// Publish writes the projection of a committed mutation. A cached projection with a later
// UpdatedAt wins, which keeps post-commit writes of two mutations from landing out of order.
func (r *StatusCacheRepository) Publish(ctx context.Context, view *dto.TimeSheetStatusView, ttl time.Duration) error {
	if r.client == nil || view == nil {
		return nil
	}
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("marshal status projection %s: %w", view.ID, err)
	}
	key := r.Key(view.ID)
	publish := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if err == nil {
			var cached dto.TimeSheetStatusView
			if json.Unmarshal(raw, &cached) == nil && cached.UpdatedAt.After(view.UpdatedAt) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, ttl)
			return nil
		})
		return err
	}
	for attempt := 0; attempt < publishAttempts; attempt++ {
		err = r.client.Watch(ctx, publish, key)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("publish status projection %s: %w", view.ID, err)
	}
	return nil
}

// Evict drops the projections of the given sheets in one round trip.
func (r *StatusCacheRepository) Evict(ctx context.Context, sheetIDs ...string) error {
	if r.client == nil || len(sheetIDs) == 0 {
		return nil
	}
	keys := make([]string, len(sheetIDs))
	for i, id := range sheetIDs {
		keys[i] = r.Key(id)
	}
	if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("evict status projections %v: %w", sheetIDs, err)
	}
	return nil
}

// Close releases the Redis connection if present.
func (r *StatusCacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
