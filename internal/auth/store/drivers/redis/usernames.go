package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
)

const (
	usernamesFilterKey      = "usernames_bloom_filter"
	usernamesErrorRate      = 0.01
	usernamesFilterCapacity = 500_000
)

// usernamesRepo keeps registered usernames in a RedisBloom filter. Requires
// the server to expose the BF.* command family.
type usernamesRepo struct {
	client *goredis.Client
}

func (r *usernamesRepo) Init(ctx context.Context) error {
	exists, err := r.client.Exists(ctx, usernamesFilterKey).Result()
	if err != nil {
		return fmt.Errorf("redis: check username filter: %w", err)
	}
	if exists > 0 {
		return nil
	}

	if err := r.client.BFReserve(ctx, usernamesFilterKey, usernamesErrorRate, usernamesFilterCapacity).Err(); err != nil {
		return fmt.Errorf("redis: create username filter: %w", err)
	}
	return nil
}

func (r *usernamesRepo) Add(ctx context.Context, username string) error {
	if err := r.client.BFAdd(ctx, usernamesFilterKey, username).Err(); err != nil {
		return fmt.Errorf("redis: add username to filter: %w", err)
	}
	return nil
}

func (r *usernamesRepo) IsAvailable(ctx context.Context, username string) (bool, error) {
	taken, err := r.client.BFExists(ctx, usernamesFilterKey, username).Result()
	if err != nil {
		return false, fmt.Errorf("redis: check username availability: %w", err)
	}
	return !taken, nil
}
