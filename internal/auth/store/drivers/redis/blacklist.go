package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// blacklistedMarker is the value stored under a revoked token. The token
// string itself is the key, matching the existing deployment's layout.
const blacklistedMarker = "blacklisted"

type blacklistRepo struct {
	client *goredis.Client
}

func (r *blacklistRepo) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		// Already past its own expiry, nothing left to revoke.
		return nil
	}
	if err := r.client.Set(ctx, token, blacklistedMarker, ttl).Err(); err != nil {
		return fmt.Errorf("redis: blacklist token: %w", err)
	}
	return nil
}

func (r *blacklistRepo) IsRevoked(ctx context.Context, token string) (bool, error) {
	val, err := r.client.Get(ctx, token).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis: blacklist lookup: %w", err)
	}
	return val == blacklistedMarker, nil
}
