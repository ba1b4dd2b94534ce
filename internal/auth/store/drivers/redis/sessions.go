package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/syla-app/syla-auth/internal/auth/domain"
	"github.com/syla-app/syla-auth/internal/auth/store"
)

// Key layout is part of the deployment contract: existing entries written by
// earlier deployments use these exact suffixes.
const (
	accessKeySuffix  = "_access_token"
	refreshKeySuffix = "_refresh_token"
)

type sessionsRepo struct {
	client *goredis.Client
}

func sessionKey(sessionID string, kind domain.TokenKind) string {
	switch kind {
	case domain.KindAccess:
		return sessionID + accessKeySuffix
	case domain.KindRefresh:
		return sessionID + refreshKeySuffix
	default:
		// Verification tokens are never session-tracked; reaching here is a
		// programming error in the caller.
		panic(fmt.Sprintf("redis: no session key for token kind %q", kind))
	}
}

func (r *sessionsRepo) put(ctx context.Context, sessionID, token string, kind domain.TokenKind) error {
	key := sessionKey(sessionID, kind)
	if err := r.client.Set(ctx, key, token, kind.Lifetime()).Err(); err != nil {
		return fmt.Errorf("redis: set %s: %w", key, err)
	}
	return nil
}

func (r *sessionsRepo) get(ctx context.Context, sessionID string, kind domain.TokenKind) (string, error) {
	key := sessionKey(sessionID, kind)
	token, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", store.ErrNotFound
		}
		return "", fmt.Errorf("redis: get %s: %w", key, err)
	}
	return token, nil
}

func (r *sessionsRepo) PutAccess(ctx context.Context, sessionID, token string) error {
	return r.put(ctx, sessionID, token, domain.KindAccess)
}

func (r *sessionsRepo) PutRefresh(ctx context.Context, sessionID, token string) error {
	return r.put(ctx, sessionID, token, domain.KindRefresh)
}

func (r *sessionsRepo) GetAccess(ctx context.Context, sessionID string) (string, error) {
	return r.get(ctx, sessionID, domain.KindAccess)
}

func (r *sessionsRepo) GetRefresh(ctx context.Context, sessionID string) (string, error) {
	return r.get(ctx, sessionID, domain.KindRefresh)
}

func (r *sessionsRepo) Clear(ctx context.Context, sessionID string) error {
	keys := []string{
		sessionKey(sessionID, domain.KindAccess),
		sessionKey(sessionID, domain.KindRefresh),
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: clear session %s: %w", sessionID, err)
	}
	return nil
}
