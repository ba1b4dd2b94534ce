package auth_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/syla-app/syla-auth/internal/auth/domain"
	"github.com/syla-app/syla-auth/internal/auth/service"
	"github.com/syla-app/syla-auth/internal/auth/store"
	redisstore "github.com/syla-app/syla-auth/internal/auth/store/drivers/redis"
	"github.com/syla-app/syla-auth/internal/auth/store/drivers/sqlite"
	"github.com/syla-app/syla-auth/pkg/jwtx"
)

// The e2e suite runs the real services against a real Redis (the stack image,
// so the bloom filter commands exist) and a file-backed SQLite database.
// Requires a local Docker daemon.

const redisImage = "redis/redis-stack-server:latest"

type mailbox struct {
	mu     sync.Mutex
	tokens []string
}

func (m *mailbox) SendVerificationLink(_ context.Context, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = append(m.tokens, token)
	return nil
}

func (m *mailbox) lastToken(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.tokens)
	return m.tokens[len(m.tokens)-1]
}

type stack struct {
	ephemeral *redisstore.Store
	tokens    *service.TokenService
	reg       *service.RegistrationService
	mail      *mailbox
}

func setupStack(t *testing.T) *stack {
	t.Helper()
	if testing.Short() {
		t.Skip("e2e test requires Docker")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        redisImage,
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	ephemeral, err := redisstore.NewStore(ctx, redisstore.Config{
		Addr: fmt.Sprintf("%s:%s", host, port.Port()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ephemeral.Close() })
	require.NoError(t, ephemeral.Usernames().Init(ctx))

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL",
		filepath.Join(t.TempDir(), "auth.db"))
	records, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = records.Close() })
	require.NoError(t, records.ApplyMigrations())

	codec, err := jwtx.NewCodec([]byte("e2e-signing-key"))
	require.NoError(t, err)

	users := ephemeral.NewUserCache(records.Users())
	mail := &mailbox{}
	tokens := &service.TokenService{Codec: codec, Store: ephemeral, Users: users}
	reg := &service.RegistrationService{
		Store:     ephemeral,
		Users:     users,
		Usernames: ephemeral.Usernames(),
		Mail:      mail,
		Tokens:    tokens,
	}

	return &stack{ephemeral: ephemeral, tokens: tokens, reg: reg, mail: mail}
}

func TestFullLifecycle(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	// Register, verify, and land with a working session.
	err := s.reg.Begin(ctx, domain.PendingRegistration{
		Username:      "alice",
		Email:         "alice@example.com",
		PreferredName: "Alice",
	})
	require.NoError(t, err)

	user, pair, err := s.reg.Complete(ctx, s.mail.lastToken(t))
	require.NoError(t, err)
	require.Equal(t, "alice", user.Username)

	claims, err := s.tokens.Validate(ctx, pair.AccessToken, domain.KindAccess)
	require.NoError(t, err)
	require.Equal(t, user.ID, claims.Subject)

	// The filter now rejects the name up front.
	avail, err := s.ephemeral.Usernames().IsAvailable(ctx, "alice")
	require.NoError(t, err)
	require.False(t, avail)
	err = s.reg.Begin(ctx, domain.PendingRegistration{Username: "alice", Email: "a2@example.com"})
	require.ErrorIs(t, err, service.ErrUsernameTaken)

	// Refresh keeps the session alive with a new access token and retires
	// the previous one.
	access, err := s.tokens.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.AccessToken, access)
	_, err = s.tokens.Validate(ctx, access, domain.KindAccess)
	require.NoError(t, err)
	_, err = s.tokens.Validate(ctx, pair.AccessToken, domain.KindAccess)
	require.ErrorIs(t, err, service.ErrUnauthorized)

	// Session introspection reports the refresh horizon.
	exp, err := s.tokens.SessionExpiresAt(ctx, claims.SessionID, user.ID)
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(domain.RefreshTokenTTL), exp, time.Minute)

	// Revocation kills both tokens and the session entries.
	subject, err := s.tokens.RevokeSession(ctx, access)
	require.NoError(t, err)
	require.Equal(t, user.ID, subject)

	_, err = s.tokens.Validate(ctx, access, domain.KindAccess)
	require.ErrorIs(t, err, service.ErrUnauthorized)
	_, err = s.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrUnauthorized)
	_, err = s.ephemeral.Sessions().GetRefresh(ctx, claims.SessionID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestStateExchangeHandoff(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	err := s.reg.Begin(ctx, domain.PendingRegistration{Username: "bob", Email: "bob@example.com"})
	require.NoError(t, err)
	user, _, err := s.reg.Complete(ctx, s.mail.lastToken(t))
	require.NoError(t, err)

	stateID, err := s.tokens.CompleteLogin(ctx, user.ID)
	require.NoError(t, err)

	pair, err := s.tokens.ConsumeStateExchange(ctx, stateID)
	require.NoError(t, err)
	_, err = s.tokens.Validate(ctx, pair.AccessToken, domain.KindAccess)
	require.NoError(t, err)

	_, err = s.tokens.ConsumeStateExchange(ctx, stateID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentRefreshAndRevoke(t *testing.T) {
	s := setupStack(t)
	ctx := context.Background()

	err := s.reg.Begin(ctx, domain.PendingRegistration{Username: "carol", Email: "carol@example.com"})
	require.NoError(t, err)
	_, pair, err := s.reg.Complete(ctx, s.mail.lastToken(t))
	require.NoError(t, err)

	// Fire refreshes and a revocation at the same session. Whatever the
	// interleaving, afterwards the session must be fully dead: no half-revoked
	// state where a refresh that slipped in keeps a usable access token.
	var wg sync.WaitGroup
	accessTokens := make([]string, 8)
	for i := range accessTokens {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if tok, err := s.tokens.Refresh(ctx, pair.RefreshToken); err == nil {
				accessTokens[i] = tok
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = s.tokens.RevokeSession(ctx, pair.AccessToken)
	}()
	wg.Wait()

	// The revocation may have lost every race with the refreshes; finish the
	// job deterministically with whichever access token still works, then
	// check nothing survives.
	for _, tok := range append(accessTokens, pair.AccessToken) {
		if tok == "" {
			continue
		}
		if _, err := s.tokens.Validate(ctx, tok, domain.KindAccess); err == nil {
			_, err = s.tokens.RevokeSession(ctx, tok)
			require.NoError(t, err)
			break
		}
	}

	_, err = s.tokens.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, service.ErrUnauthorized)
	for _, tok := range accessTokens {
		if tok == "" {
			continue
		}
		_, err := s.tokens.Validate(ctx, tok, domain.KindAccess)
		require.ErrorIs(t, err, service.ErrUnauthorized)
	}
}
