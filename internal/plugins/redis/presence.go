package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPresenceStore keeps one TTL'd key per online user. Every connection's
// heartbeat refreshes the same key, so presence survives as long as any
// device keeps heartbeating and lapses on its own afterwards — no cleanup on
// disconnect, which keeps multi-device connects race-free.
type RedisPresenceStore struct {
	rdb *redis.Client
}

func NewRedisPresenceStore(rdb *redis.Client) *RedisPresenceStore {
	return &RedisPresenceStore{rdb: rdb}
}

func presenceKey(userID string) string {
	return "presence:user:" + userID
}

func (p *RedisPresenceStore) UpdateOnlineStatus(
	ctx context.Context,
	userID string,
	ttl time.Duration,
) error {
	return p.rdb.Set(ctx, presenceKey(userID), time.Now().Unix(), ttl).Err()
}

func (p *RedisPresenceStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	n, err := p.rdb.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
