// Package redis implements the ephemeral store on a Redis instance. Every
// record type carries a TTL, so idle cleanup needs no background sweep; the
// server's own expiry does all the work.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/syla-app/syla-auth/internal/auth/store"
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// Config holds the connection settings for the store.
type Config struct {
	Addr     string
	Password string
	DB       int
}

type Store struct {
	client *goredis.Client
}

var _ store.Store = (*Store)(nil)

// NewStore connects and verifies the connection with a PING before handing
// the store out. A store that cannot reach Redis is useless to every
// operation, better to fail at startup.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}

	return &Store{client: client}, nil
}

// NewStoreWithClient wraps an existing client. Used by tests that point the
// store at miniredis.
func NewStoreWithClient(client *goredis.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Sessions() store.Sessions { return &sessionsRepo{client: s.client} }
func (s *Store) Blacklist() store.Blacklist { return &blacklistRepo{client: s.client} }
func (s *Store) Locks() store.Locks { return &locksRepo{client: s.client} }
func (s *Store) Usernames() store.Usernames { return &usernamesRepo{client: s.client} }

func (s *Store) StateExchanges() store.Exchanges {
	return &exchangesRepo{client: s.client, prefix: "", ttl: stateExchangeTTL}
}

func (s *Store) RegistrationExchanges() store.Exchanges {
	return &exchangesRepo{client: s.client, prefix: registrationPrefix, ttl: registrationExchangeTTL}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.client.Close() }
