package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	platformredis "facecards/internal/platform/redis"
)

func revokedKey(jti string) string { return platformredis.Key("revoked", jti) }

// RedisList shares revocations across instances. Key expiry does the cleanup.
type RedisList struct {
	client *redis.Client
}

// NewRedisList constructs a Redis-backed revocation list.
func NewRedisList(client *redis.Client) *RedisList {
	return &RedisList{client: client}
}

// RevokeToken stores a marker for jti that expires with the session.
func (t *RedisList) RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if err := validateTTL(ttl); err != nil {
		return err
	}
	return t.client.Set(ctx, revokedKey(jti), "1", ttl).Err()
}

// IsTokenRevoked reports whether the marker for jti exists.
func (t *RedisList) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	_, err := t.client.Get(ctx, revokedKey(jti)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
