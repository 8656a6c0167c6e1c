package session

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCachePrefix = "ppnotify:sid:"

// RedisCache answers from redis and falls back to next on a miss, storing
// what next returns. Redis failures degrade to calling next directly.
type RedisCache struct {
	rdb    redis.Cmdable
	next   Resolver
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

func NewRedisCache(rdb redis.Cmdable, next Resolver, ttl time.Duration, log *zap.Logger) *RedisCache {
	if log == nil {
		log = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisCache{
		rdb:    rdb,
		next:   next,
		ttl:    ttl,
		prefix: defaultCachePrefix,
		log:    log,
	}
}

func (c *RedisCache) key(credential string) string {
	return c.prefix + credential
}

func (c *RedisCache) Resolve(ctx context.Context, credential string) (string, error) {
	id, err := c.rdb.Get(ctx, c.key(credential)).Result()
	switch {
	case err == nil && id != "":
		return id, nil
	case err != nil && !errors.Is(err, redis.Nil):
		c.log.Warn("session cache read failed", zap.Error(err))
	}

	id, err = c.next.Resolve(ctx, credential)
	if err != nil {
		return "", err
	}
	if err := c.rdb.Set(ctx, c.key(credential), id, c.ttl).Err(); err != nil {
		c.log.Warn("session cache write failed", zap.Error(err))
	}
	return id, nil
}

// Invalidate forgets a credential, called on logout.
func (c *RedisCache) Invalidate(ctx context.Context, credential string) error {
	return c.rdb.Del(ctx, c.key(credential)).Err()
}
