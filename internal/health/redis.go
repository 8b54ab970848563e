package health

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const probeTTL = 10 * time.Second

// RedisChecker checks connectivity to the resume store.
type RedisChecker struct {
	client redis.UniversalClient
	name   string
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client redis.UniversalClient) *RedisChecker {
	return &RedisChecker{
		client: client,
		name:   "redis",
	}
}

// Name returns the name of the checker.
func (r *RedisChecker) Name() string {
	return r.name
}

// Check pings Redis, then writes and reads back a short-lived probe key so
// a read-only replica is reported as down.
func (r *RedisChecker) Check(ctx context.Context) error {
	if r.client == nil {
		return fmt.Errorf("redis client not configured")
	}

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	key := "playcore:health:" + uuid.New().String()
	if err := r.client.Set(ctx, key, "ok", probeTTL).Err(); err != nil {
		return fmt.Errorf("redis write failed: %w", err)
	}
	defer r.client.Del(context.WithoutCancel(ctx), key)

	got, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("redis read failed: %w", err)
	}
	if got != "ok" {
		return fmt.Errorf("redis probe mismatch: %q", got)
	}
	return nil
}
