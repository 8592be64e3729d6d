package window

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "facecards/internal/platform/redis"
	"facecards/internal/ratelimit/models"
)

// RedisStore shares counters across instances. The key's TTL is the window.
type RedisStore struct {
	client *redis.Client
	clock  func() time.Time
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, clock: time.Now}
}

// Increment runs INCR and PTTL in one pipeline and sets PEXPIRE when the key
// has no expiry yet, which is the first hit of a window. The window start is
// derived from the remaining TTL.
func (s *RedisStore) Increment(ctx context.Context, key string, window time.Duration) (models.Window, error) {
	k := platformredis.Key("ratelimit", key)
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.Window{}, fmt.Errorf("increment rate limit window: %w", err)
	}

	remaining := ttl.Val()
	if remaining < 0 {
		if err := s.client.PExpire(ctx, k, window).Err(); err != nil {
			return models.Window{}, fmt.Errorf("expire rate limit window: %w", err)
		}
		remaining = window
	}
	if remaining > window {
		remaining = window
	}
	return models.Window{
		Count:       int(incr.Val()),
		WindowStart: s.clock().Add(remaining - window),
	}, nil
}

// Reset deletes the counter for key.
func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, platformredis.Key("ratelimit", key)).Err(); err != nil {
		return fmt.Errorf("reset rate limit window: %w", err)
	}
	return nil
}
