package callsvc

import (
	"context"
	"time"

	"famline/pkg/storage"

	"github.com/redis/go-redis/v9"
)

// RedisCaps enforces the per-group concurrent-call cap with the shared Lua
// scripts. The TTL is a crash safety net only; normal termination releases
// the slot explicitly.
type RedisCaps struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisCaps(rdb *redis.Client, limit int) *RedisCaps {
	if limit <= 0 {
		limit = 2
	}
	return &RedisCaps{rdb: rdb, limit: limit, ttl: 6 * time.Hour}
}

func (c *RedisCaps) key(groupID string) string { return "callcap:" + groupID }

func (c *RedisCaps) Acquire(ctx context.Context, groupID string) (bool, error) {
	return storage.AcquireCallCap(ctx, c.rdb, c.key(groupID), c.limit, c.ttl)
}

func (c *RedisCaps) Release(ctx context.Context, groupID string) error {
	return storage.ReleaseCallCap(ctx, c.rdb, c.key(groupID))
}
