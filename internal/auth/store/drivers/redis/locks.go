package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const lockKeyPrefix = "lock:"

// releaseScript deletes the lock only when the caller still owns it, so a
// lock that expired and was re-acquired by someone else is never stolen back.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

type locksRepo struct {
	client *goredis.Client
}

func (r *locksRepo) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	owner := uuid.NewString()
	ok, err := r.client.SetNX(ctx, lockKeyPrefix+key, owner, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return owner, true, nil
}

func (r *locksRepo) Release(ctx context.Context, key, owner string) error {
	if err := releaseScript.Run(ctx, r.client, []string{lockKeyPrefix + key}, owner).Err(); err != nil {
		return fmt.Errorf("redis: release lock %s: %w", key, err)
	}
	return nil
}
