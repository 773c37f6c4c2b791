package collabcache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dalemusser/sharedcart/internal/domain/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and a RedisCache pointing at it.
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, time.Minute, nil), mr
}

func snapshot(id string, rev int64, participants ...string) models.CollabSession {
	return models.CollabSession{
		SessionID:    id,
		Participants: participants,
		Items: []models.CartLineItem{
			{ProductID: "sofa-1", Name: "Sofa", Price: 1000, Quantity: 2},
		},
		Revision: rev,
	}
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	_, err := cache.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSetThenGet(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, snapshot("abc", 3, "alice", "bob")))

	got, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Revision)
	assert.Equal(t, []string{"alice", "bob"}, got.Participants)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)

	assert.True(t, mr.Exists(cacheKey("abc")))
	ttl := mr.TTL(cacheKey("abc"))
	assert.GreaterOrEqual(t, ttl, time.Minute)
	assert.Less(t, ttl, 2*time.Minute)
}

func TestSet_IgnoresOlderRevision(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, snapshot("abc", 5, "alice", "bob")))
	require.NoError(t, cache.Set(ctx, snapshot("abc", 4, "alice")))

	got, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Revision)
	assert.Len(t, got.Participants, 2)
}

func TestSet_IgnoresSameRevision(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	first := snapshot("abc", 2, "alice")
	require.NoError(t, cache.Set(ctx, first))

	second := snapshot("abc", 2, "alice")
	second.Items[0].Quantity = 9
	require.NoError(t, cache.Set(ctx, second))

	got, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Items[0].Quantity)
}

func TestSet_ReplacesWithNewerRevision(t *testing.T) {
	cache, _ := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, snapshot("abc", 1, "alice")))
	require.NoError(t, cache.Set(ctx, snapshot("abc", 2, "alice", "bob")))

	got, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Revision)
}

func TestDelete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, snapshot("abc", 1, "alice")))
	require.NoError(t, cache.Delete(ctx, "abc"))

	assert.False(t, mr.Exists(cacheKey("abc")))
	_, err := cache.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGet_CorruptData(t *testing.T) {
	cache, mr := setupTestRedis(t)

	mr.HSet(cacheKey("abc"), "rev", "1", "data", "{not json")

	_, err := cache.Get(context.Background(), "abc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestBreakerOpensWhenRedisDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	ctx := context.Background()
	mr.Close()

	for i := 0; i < 5; i++ {
		_, err := cache.Get(ctx, "abc")
		require.Error(t, err)
	}

	// Open breaker short-circuits to a miss without touching Redis.
	_, err := cache.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.ErrorIs(t, cache.Set(ctx, snapshot("abc", 1, "alice")), ErrUnavailable)
	assert.Error(t, cache.Delete(ctx, "abc"))
}
