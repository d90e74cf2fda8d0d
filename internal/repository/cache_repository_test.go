package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/cms-timetable/pkg/errors"
)

type cachedWeek struct {
	Year int    `json:"year"`
	Week string `json:"week"`
}

func newCacheRepo(t *testing.T) (*CacheRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheRepository(client, nil), mr
}

func TestCacheRepositorySetGet(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "k:2024", cachedWeek{Year: 2024, Week: "A"}, time.Minute))

	var got cachedWeek
	require.NoError(t, repo.Get(ctx, "k:2024", &got))
	assert.Equal(t, cachedWeek{Year: 2024, Week: "A"}, got)

	mr.FastForward(2 * time.Minute)
	err := repo.Get(ctx, "k:2024", &got)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
}

func TestCacheRepositoryDropsUndecodableEntries(t *testing.T) {
	repo, mr := newCacheRepo(t)
	require.NoError(t, mr.Set("k", "{not json"))

	var got cachedWeek
	err := repo.Get(context.Background(), "k", &got)
	assert.True(t, errors.Is(err, appErrors.ErrCacheMiss))
	assert.False(t, mr.Exists("k"))
}

func TestCacheRepositoryDeleteByPattern(t *testing.T) {
	repo, mr := newCacheRepo(t)
	ctx := context.Background()
	for _, key := range []string{"app:timetable:2023", "app:timetable:2024", "app:profile"} {
		require.NoError(t, repo.Set(ctx, key, cachedWeek{}, time.Minute))
	}

	require.NoError(t, repo.DeleteByPattern(ctx, "app:timetable:*"))
	assert.False(t, mr.Exists("app:timetable:2023"))
	assert.False(t, mr.Exists("app:timetable:2024"))
	assert.True(t, mr.Exists("app:profile"))
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	var got cachedWeek
	assert.True(t, errors.Is(repo.Get(context.Background(), "k", &got), appErrors.ErrCacheMiss))
	assert.NoError(t, repo.Set(context.Background(), "k", got, time.Minute))
	assert.NoError(t, repo.Ping(context.Background()))
}
