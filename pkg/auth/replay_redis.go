package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const replayKeyPrefix = "authkit:linking:consumed:"

// RedisReplayGuard tracks consumed linking credential ids in Redis so the
// single-use guarantee holds across service instances. SET NX with the
// credential TTL gives atomic check-and-set without scripts.
type RedisReplayGuard struct {
	client *redis.Client
}

func NewRedisReplayGuard(client *redis.Client) *RedisReplayGuard {
	return &RedisReplayGuard{client: client}
}

func (g *RedisReplayGuard) Consume(ctx context.Context, tokenID string, ttl time.Duration) error {
	ok, err := g.client.SetNX(ctx, replayKeyPrefix+tokenID, 1, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to record consumed credential: %w", err)
	}
	if !ok {
		return ErrCredentialUsed
	}
	return nil
}

// Compile-time interface assertion
var _ ReplayGuard = (*RedisReplayGuard)(nil)
