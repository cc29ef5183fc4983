package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/uptimeoor/pkg/cache"
	"github.com/ethpandaops/uptimeoor/pkg/config"
	"github.com/ethpandaops/uptimeoor/pkg/models"
)

func setupTestCache(t *testing.T) (*cache.Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	c := cache.NewCache(log, &config.CacheConfig{
		Enabled: true,
		Address: mr.Addr(),
		Prefix:  "test:",
		TTL:     "1m",
	})
	require.NoError(t, c.Start(context.Background()))

	t.Cleanup(func() { _ = c.Stop() })

	return c, mr
}

func testBucket(t *testing.T) *models.Bucket {
	t.Helper()

	at := time.Date(2024, 3, 10, 12, 7, 30, 0, time.UTC)
	record := &models.RunRecord{
		ID:          "rs-1",
		ProjectID:   "pj-1",
		RunID:       "rn-1",
		RoutineID:   "rt-1",
		Type:        models.RunTypeScheduled,
		Status:      models.RunStatusPassed,
		Stats:       &models.RunStats{Tests: 3, Passes: 3},
		CompletedAt: &at,
		CreatedAt:   at,
		UpdatedAt:   at,
	}

	b, err := models.CreateBucket(record, models.BucketSizeHour, at)
	require.NoError(t, err)

	return b
}

func TestCache_SetGet(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	b := testBucket(t)
	require.NoError(t, c.Set(ctx, b.ID, b, 0))

	assert.True(t, mr.Exists("test:"+b.ID))
	assert.Equal(t, time.Minute, mr.TTL("test:"+b.ID))

	got, err := cache.Get[models.Bucket](ctx, c, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestCache_Miss(t *testing.T) {
	c, _ := setupTestCache(t)

	_, err := cache.Get[models.Bucket](context.Background(), c, "bk-missing")
	require.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestCache_Expiry(t *testing.T) {
	c, mr := setupTestCache(t)
	ctx := context.Background()

	b := testBucket(t)
	require.NoError(t, c.Set(ctx, b.ID, b, 5*time.Second))

	mr.FastForward(6 * time.Second)

	_, err := cache.Get[models.Bucket](ctx, c, b.ID)
	require.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestCache_Delete(t *testing.T) {
	c, _ := setupTestCache(t)
	ctx := context.Background()

	b := testBucket(t)
	require.NoError(t, c.Set(ctx, b.ID, b, 0))
	require.NoError(t, c.Delete(ctx, b.ID))
	require.NoError(t, c.Delete(ctx, b.ID))

	_, err := cache.Get[models.Bucket](ctx, c, b.ID)
	require.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestCache_InvalidPayload(t *testing.T) {
	c, mr := setupTestCache(t)

	require.NoError(t, mr.Set("test:bk-bad", `{"id":"nope"}`))

	_, err := cache.Get[models.Bucket](context.Background(), c, "bk-bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrCacheMiss)
}

func TestCache_StartUnreachable(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	c := cache.NewCache(log, &config.CacheConfig{Address: addr, TTL: "1m"})
	require.Error(t, c.Start(context.Background()))
}
