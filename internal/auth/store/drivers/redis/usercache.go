package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/syla-app/syla-auth/internal/auth/domain"
	"github.com/syla-app/syla-auth/internal/auth/store"
)

const userCacheTTL = time.Hour

// UserCache is a read-through cache in front of the user-record store. The
// user id is the cache key; entries age out after an hour and are dropped
// eagerly on delete so a removed account never validates from cache.
type UserCache struct {
	client *goredis.Client
	inner  store.Users
}

var _ store.Users = (*UserCache)(nil)

// NewUserCache decorates inner with caching on this store's Redis client.
func (s *Store) NewUserCache(inner store.Users) *UserCache {
	return &UserCache{client: s.client, inner: inner}
}

func (c *UserCache) FindByID(ctx context.Context, id string) (domain.User, error) {
	data, err := c.client.Get(ctx, id).Bytes()
	if err == nil {
		var u domain.User
		if err := json.Unmarshal(data, &u); err == nil {
			return u, nil
		}
		// Undecodable entry: fall through and refresh it from the source.
	} else if !errors.Is(err, goredis.Nil) {
		return domain.User{}, fmt.Errorf("redis: user cache get %s: %w", id, err)
	}

	u, err := c.inner.FindByID(ctx, id)
	if err != nil {
		return domain.User{}, err
	}

	if data, err := json.Marshal(u); err == nil {
		// Best effort: a failed cache write must not fail the lookup.
		_ = c.client.Set(ctx, id, data, userCacheTTL).Err()
	}
	return u, nil
}

func (c *UserCache) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	return c.inner.FindByUsername(ctx, username)
}

func (c *UserCache) Create(ctx context.Context, u domain.User) error {
	return c.inner.Create(ctx, u)
}

func (c *UserCache) Delete(ctx context.Context, id string) error {
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	if err := c.client.Del(ctx, id).Err(); err != nil {
		return fmt.Errorf("redis: user cache invalidate %s: %w", id, err)
	}
	return nil
}
