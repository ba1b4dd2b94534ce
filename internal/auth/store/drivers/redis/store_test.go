package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/syla-app/syla-auth/internal/auth/domain"
	"github.com/syla-app/syla-auth/internal/auth/store"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	m := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewStoreWithClient(client), m
}

func TestSessionsPutGetClear(t *testing.T) {
	t.Parallel()

	s, m := newTestStore(t)
	ctx := context.Background()
	sessions := s.Sessions()

	require.NoError(t, sessions.PutAccess(ctx, "sess-1", "tok-a"))
	require.NoError(t, sessions.PutRefresh(ctx, "sess-1", "tok-r"))

	access, err := sessions.GetAccess(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "tok-a", access)

	refresh, err := sessions.GetRefresh(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "tok-r", refresh)

	// The deployed key layout is a contract, assert it directly.
	require.True(t, m.Exists("sess-1_access_token"))
	require.True(t, m.Exists("sess-1_refresh_token"))

	require.NoError(t, sessions.Clear(ctx, "sess-1"))
	_, err = sessions.GetAccess(ctx, "sess-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Clearing again is a no-op.
	require.NoError(t, sessions.Clear(ctx, "sess-1"))
}

func TestSessionsOverwriteLastWriterWins(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	sessions := s.Sessions()

	require.NoError(t, sessions.PutAccess(ctx, "sess-1", "old"))
	require.NoError(t, sessions.PutAccess(ctx, "sess-1", "new"))

	access, err := sessions.GetAccess(ctx, "sess-1")
	require.NoError(t, err)
	require.Equal(t, "new", access)
}

func TestSessionsEntriesExpire(t *testing.T) {
	t.Parallel()

	s, m := newTestStore(t)
	ctx := context.Background()
	sessions := s.Sessions()

	require.NoError(t, sessions.PutAccess(ctx, "sess-1", "tok-a"))
	m.FastForward(domain.AccessTokenTTL + time.Second)

	_, err := sessions.GetAccess(ctx, "sess-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestBlacklist(t *testing.T) {
	t.Parallel()

	s, m := newTestStore(t)
	ctx := context.Background()
	bl := s.Blacklist()

	revoked, err := bl.IsRevoked(ctx, "tok-x")
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, bl.Revoke(ctx, "tok-x", time.Minute))
	revoked, err = bl.IsRevoked(ctx, "tok-x")
	require.NoError(t, err)
	require.True(t, revoked)

	// Entry disappears once the token would have expired anyway.
	m.FastForward(2 * time.Minute)
	revoked, err = bl.IsRevoked(ctx, "tok-x")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestBlacklistSkipsExpiredTokens(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	bl := s.Blacklist()

	require.NoError(t, bl.Revoke(ctx, "tok-dead", -time.Second))
	revoked, err := bl.IsRevoked(ctx, "tok-dead")
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestExchangesSingleConsumption(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	ex := s.StateExchanges()

	payload := map[string]string{"access_token": "x", "refresh_token": "y"}
	id, err := ex.Open(ctx, payload)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := ex.Consume(ctx, id)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	_, err = ex.Consume(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestExchangesConcurrentConsumersGetOnePayload(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	ex := s.StateExchanges()

	id, err := ex.Open(ctx, map[string]string{"access_token": "x"})
	require.NoError(t, err)

	// Read-and-delete runs as one script, so of N simultaneous consumers
	// exactly one can win.
	const consumers = 8
	results := make(chan error, consumers)
	for range consumers {
		go func() {
			_, err := ex.Consume(ctx, id)
			results <- err
		}()
	}

	var wins int
	for range consumers {
		if err := <-results; err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, store.ErrNotFound)
		}
	}
	require.Equal(t, 1, wins)
}

func TestExchangesExpire(t *testing.T) {
	t.Parallel()

	s, m := newTestStore(t)
	ctx := context.Background()
	ex := s.StateExchanges()

	id, err := ex.Open(ctx, map[string]string{"k": "v"})
	require.NoError(t, err)

	m.FastForward(stateExchangeTTL + time.Second)

	_, err = ex.Consume(ctx, id)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegistrationExchangesArePrefixed(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.RegistrationExchanges().Open(ctx, map[string]string{"username": "sam"})
	require.NoError(t, err)
	require.Regexp(t, "^e-", id)

	// A registration id is not consumable through the state exchange and
	// vice versa only by construction of the ids; the stores share the
	// keyspace, so the prefix is what keeps them apart.
	got, err := s.RegistrationExchanges().Consume(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "sam", got["username"])
}

func TestLocksMutualExclusion(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	locks := s.Locks()

	owner, ok, err := locks.Acquire(ctx, "sess-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, owner)

	_, ok, err = locks.Acquire(ctx, "sess-1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, locks.Release(ctx, "sess-1", owner))

	_, ok, err = locks.Acquire(ctx, "sess-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLocksReleaseRequiresOwnership(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()
	locks := s.Locks()

	owner, ok, err := locks.Acquire(ctx, "sess-1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	// A stale owner token must not free somebody else's lock.
	require.NoError(t, locks.Release(ctx, "sess-1", "not-the-owner"))
	_, ok, err = locks.Acquire(ctx, "sess-1", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, locks.Release(ctx, "sess-1", owner))
}

type fakeUsers struct {
	users map[string]domain.User
	finds int
}

func (f *fakeUsers) FindByID(_ context.Context, id string) (domain.User, error) {
	f.finds++
	u, ok := f.users[id]
	if !ok {
		return domain.User{}, store.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) FindByUsername(_ context.Context, username string) (domain.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			return u, nil
		}
	}
	return domain.User{}, store.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, u domain.User) error {
	f.users[u.ID] = u
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	delete(f.users, id)
	return nil
}

func TestUserCacheReadThrough(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	inner := &fakeUsers{users: map[string]domain.User{
		"u1": {ID: "u1", Username: "sam", Email: "sam@example.com"},
	}}
	cache := s.NewUserCache(inner)

	u, err := cache.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "sam", u.Username)
	require.Equal(t, 1, inner.finds)

	// Second read is served from cache.
	u, err = cache.FindByID(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "sam", u.Username)
	require.Equal(t, 1, inner.finds)
}

func TestUserCacheInvalidatesOnDelete(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	inner := &fakeUsers{users: map[string]domain.User{
		"u1": {ID: "u1", Username: "sam"},
	}}
	cache := s.NewUserCache(inner)

	_, err := cache.FindByID(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, cache.Delete(ctx, "u1"))

	_, err = cache.FindByID(ctx, "u1")
	require.ErrorIs(t, err, store.ErrNotFound)
}
