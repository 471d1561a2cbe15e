package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timesheet-api/internal/dto"
	"github.com/noah-isme/timesheet-api/internal/models"
	appErrors "github.com/noah-isme/timesheet-api/pkg/errors"
)

func newMiniredisStatusCache(t *testing.T) (*StatusCacheRepository, *miniredis.Miniredis) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{server.Addr()}})
	repo := NewStatusCacheRepository(client, "")
	t.Cleanup(func() { _ = repo.Close() })
	return repo, server
}

func TestStatusCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewStatusCacheRepository(nil, "")
	ctx := context.Background()
	view := &dto.TimeSheetStatusView{ID: "sheet-1", Status: models.TimeSheetStatusDraft}

	loaded, err := repo.Load(ctx, "sheet-1")
	assert.Nil(t, loaded)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

	stored, err := repo.Fill(ctx, view, time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)
	require.NoError(t, repo.Publish(ctx, view, time.Minute))
	require.NoError(t, repo.Evict(ctx, "sheet-1", "sheet-2"))
	require.NoError(t, repo.Close())
}

func TestStatusCacheRepositoryKeys(t *testing.T) {
	assert.Equal(t, "timesheet:status:abc", NewStatusCacheRepository(nil, "").Key("abc"))
	assert.Equal(t, "staging:abc", NewStatusCacheRepository(nil, "staging:").Key("abc"))
}

func TestStatusCacheRepositoryRoundTrip(t *testing.T) {
	repo, server := newMiniredisStatusCache(t)
	ctx := context.Background()

	_, err := repo.Load(ctx, "sheet-1")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)

	submittedAt := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	view := &dto.TimeSheetStatusView{
		ID:             "sheet-1",
		CollaboratorID: "c-alice",
		Week:           "2026-W42",
		Status:         models.TimeSheetStatusSubmitted,
		Totals:         models.TimeSheetTotals{TotalHours: 38.5, ChargeableHours: 30, NonChargeableHours: 8.5},
		SubmittedAt:    &submittedAt,
		UpdatedAt:      submittedAt,
	}
	stored, err := repo.Fill(ctx, view, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
	assert.True(t, server.Exists("timesheet:status:sheet-1"))
	assert.Equal(t, time.Minute, server.TTL("timesheet:status:sheet-1"))

	loaded, err := repo.Load(ctx, "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, view.Status, loaded.Status)
	assert.Equal(t, view.Totals, loaded.Totals)
	require.NotNil(t, loaded.SubmittedAt)
	assert.True(t, submittedAt.Equal(*loaded.SubmittedAt))

	require.NoError(t, repo.Evict(ctx, "sheet-1", "sheet-2"))
	assert.False(t, server.Exists("timesheet:status:sheet-1"))

	server.FastForward(2 * time.Minute)
	_, err = repo.Load(ctx, "sheet-1")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
}

func TestStatusCacheRepositoryFillNeverReplacesPublished(t *testing.T) {
	repo, _ := newMiniredisStatusCache(t)
	ctx := context.Background()
	readAt := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Publish(ctx, &dto.TimeSheetStatusView{ID: "sheet-1", Status: models.TimeSheetStatusApproved, UpdatedAt: readAt.Add(time.Second)}, time.Minute))

	stored, err := repo.Fill(ctx, &dto.TimeSheetStatusView{ID: "sheet-1", Status: models.TimeSheetStatusSubmitted, UpdatedAt: readAt}, time.Minute)
	require.NoError(t, err)
	assert.False(t, stored)

	loaded, err := repo.Load(ctx, "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, models.TimeSheetStatusApproved, loaded.Status)
}

func TestStatusCacheRepositoryPublishKeepsNewest(t *testing.T) {
	repo, _ := newMiniredisStatusCache(t)
	ctx := context.Background()
	at := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Publish(ctx, &dto.TimeSheetStatusView{ID: "sheet-1", Status: models.TimeSheetStatusSubmitted, UpdatedAt: at}, time.Minute))
	require.NoError(t, repo.Publish(ctx, &dto.TimeSheetStatusView{ID: "sheet-1", Status: models.TimeSheetStatusApproved, UpdatedAt: at.Add(time.Millisecond)}, time.Minute))
	require.NoError(t, repo.Publish(ctx, &dto.TimeSheetStatusView{ID: "sheet-1", Status: models.TimeSheetStatusSubmitted, UpdatedAt: at}, time.Minute))

	loaded, err := repo.Load(ctx, "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, models.TimeSheetStatusApproved, loaded.Status)
}

func TestStatusCacheRepositoryDropsCorruptPayload(t *testing.T) {
	repo, server := newMiniredisStatusCache(t)
	ctx := context.Background()
	require.NoError(t, server.Set("timesheet:status:sheet-1", "{not json"))

	_, err := repo.Load(ctx, "sheet-1")
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.False(t, server.Exists("timesheet:status:sheet-1"))

	stored, err := repo.Fill(ctx, &dto.TimeSheetStatusView{ID: "sheet-1", Status: models.TimeSheetStatusSaved}, time.Minute)
	require.NoError(t, err)
	assert.True(t, stored)
}

func TestStatusCacheRepositoryReportsRedisFailures(t *testing.T) {
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{"127.0.0.1:1"}, MaxRetries: -1})
	repo := NewStatusCacheRepository(client, "")
	defer repo.Close()
	ctx := context.Background()

	_, err := repo.Load(ctx, "sheet-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, appErrors.ErrCacheMiss)
	assert.Error(t, repo.Publish(ctx, &dto.TimeSheetStatusView{ID: "sheet-1"}, time.Minute))
}
