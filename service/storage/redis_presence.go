package storage

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultPresencePrefix = "ppnotify:presence:"

// Presence records which gateway node holds each identity's connection.
// Value is the node id, the TTL bounds how long a crashed node stays visible.
type Presence struct {
	rdb    redis.Cmdable
	nodeID string
	ttl    time.Duration
	prefix string
	log    *zap.Logger
}

func NewPresence(rdb redis.Cmdable, nodeID string, ttl time.Duration, log *zap.Logger) *Presence {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Presence{rdb: rdb, nodeID: nodeID, ttl: ttl, prefix: defaultPresencePrefix, log: log}
}

func (p *Presence) key(identity string) string { return p.prefix + identity }

// Online sets identity as online on this node and renews the TTL.
func (p *Presence) Online(ctx context.Context, identity string) {
	if err := p.rdb.Set(ctx, p.key(identity), p.nodeID, p.ttl).Err(); err != nil {
		p.log.Warn("presence online", zap.String("identity", identity), zap.Error(err))
	}
}

// Offline deletes the key, but only while it still names this node.
func (p *Presence) Offline(ctx context.Context, identity string) {
	cur, err := p.rdb.Get(ctx, p.key(identity)).Result()
	if errors.Is(err, redis.Nil) {
		return
	}
	if err != nil {
		p.log.Warn("presence offline", zap.String("identity", identity), zap.Error(err))
		return
	}
	if cur != p.nodeID {
		return
	}
	if err := p.rdb.Del(ctx, p.key(identity)).Err(); err != nil {
		p.log.Warn("presence offline", zap.String("identity", identity), zap.Error(err))
	}
}

// Lookup reports whether identity is online and on which node.
func (p *Presence) Lookup(ctx context.Context, identity string) (nodeID string, online bool, err error) {
	val, err := p.rdb.Get(ctx, p.key(identity)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}
