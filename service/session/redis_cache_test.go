package session

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T, next Resolver) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisCache(rdb, next, time.Minute, nil), mr
}

func TestRedisCache_FillsOnMiss(t *testing.T) {
	var calls atomic.Int32
	store := NewMemoryStore()
	store.Put("s1", "alice")
	next := ResolverFunc(func(ctx context.Context, c string) (string, error) {
		calls.Add(1)
		return store.Resolve(ctx, c)
	})

	c, mr := newCache(t, next)

	for i := 0; i < 3; i++ {
		id, err := c.Resolve(context.Background(), "s1")
		require.NoError(t, err)
		assert.Equal(t, "alice", id)
	}
	assert.Equal(t, int32(1), calls.Load())

	got, err := mr.Get(defaultCachePrefix + "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got)
	assert.Equal(t, time.Minute, mr.TTL(defaultCachePrefix+"s1"))
}

func TestRedisCache_MissDoesNotCache(t *testing.T) {
	c, mr := newCache(t, NewMemoryStore())

	_, err := c.Resolve(context.Background(), "nope")
	assert.True(t, IsNoSession(err))
	assert.False(t, mr.Exists(defaultCachePrefix+"nope"))
}

func TestRedisCache_Invalidate(t *testing.T) {
	store := NewMemoryStore()
	store.Put("s1", "alice")
	c, mr := newCache(t, store)

	_, err := c.Resolve(context.Background(), "s1")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(context.Background(), "s1"))
	assert.False(t, mr.Exists(defaultCachePrefix+"s1"))
}

func TestRedisCache_RedisDownFallsThrough(t *testing.T) {
	store := NewMemoryStore()
	store.Put("s1", "alice")
	c, mr := newCache(t, store)
	mr.Close()

	id, err := c.Resolve(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "alice", id)
}
