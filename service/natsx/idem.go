package natsx

import (
	"context"
	"sync"
	"time"

	"PNotify/tools/safe"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ----- 抽象存储 -----
type IdemStore interface {
	SeenOnce(key string, ttl time.Duration) (seen bool, err error)
}

// ----- 内存实现（单进程） -----
type memIdem struct {
	mu  sync.Mutex
	m   map[string]time.Time // key -> expire
	ttl time.Duration
	now func() time.Time
}

var idemSweepInterval = time.Minute

// NewMemIdem keeps seen ids for defaultTTL. Expired keys are swept every
// minute until ctx is done.
func NewMemIdem(ctx context.Context, defaultTTL time.Duration, log *zap.Logger) IdemStore {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	mi := &memIdem{m: make(map[string]time.Time), ttl: defaultTTL, now: time.Now}
	safe.Go(log, "idem-sweep", func() {
		t := time.NewTicker(idemSweepInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				mi.sweep()
			}
		}
	})
	return mi
}

func (mi *memIdem) sweep() {
	now := mi.now()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	for k, exp := range mi.m {
		if !exp.After(now) {
			delete(mi.m, k)
		}
	}
}

func (mi *memIdem) SeenOnce(key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = mi.ttl
	}
	now := mi.now()
	mi.mu.Lock()
	defer mi.mu.Unlock()
	if exp, ok := mi.m[key]; ok && exp.After(now) {
		return true, nil
	}
	mi.m[key] = now.Add(ttl)
	return false, nil
}

// ----- Redis 实现（多实例共享） -----
type redisIdem struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisIdem shares seen ids between gateway instances through SETNX.
func NewRedisIdem(rdb redis.Cmdable, defaultTTL time.Duration) IdemStore {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	return &redisIdem{rdb: rdb, prefix: "ppnotify:idem:", ttl: defaultTTL}
}

func (ri *redisIdem) SeenOnce(key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = ri.ttl
	}
	ok, err := ri.rdb.SetNX(context.Background(), ri.prefix+key, 1, ttl).Result()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// ----- 从消息头提取 msgID -----
func msgIDFromHeader(h map[string]string) string {
	for _, k := range []string{HeaderMsgID, "nats-msg-id", "X-Msg-Id", "x-msg-id"} {
		if v, ok := h[k]; ok && v != "" {
			return v
		}
	}
	return ""
}

// IdemMiddleware skips messages whose id header was already handled.
// Messages without an id are always passed on: two equal notifications are
// two notifications. A store error is logged and the message is passed on.
func IdemMiddleware(store IdemStore, ttl time.Duration, log *zap.Logger) Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next Handler) Handler {
		return func(ctx context.Context, msg Message) error {
			if store == nil {
				return next(ctx, msg)
			}
			id := msgIDFromHeader(msg.Header)
			if id == "" {
				return next(ctx, msg)
			}
			seen, err := store.SeenOnce(id, ttl)
			if err != nil {
				log.Warn("dedup store unavailable, passing message", zap.String("subject", msg.Subject), zap.String("msg_id", id), zap.Error(err))
				return next(ctx, msg)
			}
			if seen {
				log.Debug("duplicate skipped", zap.String("subject", msg.Subject), zap.String("msg_id", id))
				return nil
			}
			return next(ctx, msg)
		}
	}
}
