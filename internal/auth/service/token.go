package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/syla-app/syla-auth/internal/auth/domain"
	"github.com/syla-app/syla-auth/internal/auth/store"
	"github.com/syla-app/syla-auth/pkg/idx"
	"github.com/syla-app/syla-auth/pkg/jwtx"
	"github.com/syla-app/syla-auth/pkg/slogx"
)

var (
	// ErrUnauthorized covers every validation failure: revoked, expired,
	// malformed, wrong kind, superseded by the store, unknown subject. The
	// caller never learns which check failed; anything finer-grained would
	// hand an attacker an oracle.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrConflict reports a revocation attempted on a session whose stored
	// refresh token is absent or can no longer be decoded. Nothing is
	// blacklisted or cleared in that case.
	ErrConflict = errors.New("conflict")

	// ErrSessionBusy reports that the per-session lock could not be taken in
	// time. Retryable; it is not a statement about the token.
	ErrSessionBusy = errors.New("session busy")
)

const (
	// sessionLockTTL bounds how long a crashed holder can block a session.
	sessionLockTTL = 5 * time.Second

	lockRetryDelay = 25 * time.Millisecond
	lockAttempts   = 40
)

// TokenService is the token lifecycle manager: it mints signed tokens, keeps
// the per-session entries in the ephemeral store, validates presented tokens
// against that state plus the blacklist, and runs coordinated revocation.
//
// The store is the single source of truth for "is this token currently
// valid"; no validity is cached in-process. Refresh and revocation hold a
// short-lived per-session lock for their whole store sequence so the two can
// never interleave on one session.
type TokenService struct {
	Codec *jwtx.Codec
	Store store.Store
	Users store.Users
}

// Issue mints a fresh session: a new session id with an access and a refresh
// token bound to it, both written to the store under the kind's lifetime.
// Called when a federated login exchange or an e-mail registration completes.
func (s *TokenService) Issue(ctx context.Context, subjectID string) (domain.TokenPair, error) {
	sessionID := idx.New().String()

	access, err := s.Codec.Sign(subjectID, sessionID, domain.KindAccess.String(), domain.AccessTokenTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := s.Codec.Sign(subjectID, sessionID, domain.KindRefresh.String(), domain.RefreshTokenTTL)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("sign refresh token: %w", err)
	}

	sessions := s.Store.Sessions()
	if err := sessions.PutRefresh(ctx, sessionID, refresh); err != nil {
		return domain.TokenPair{}, err
	}
	if err := sessions.PutAccess(ctx, sessionID, access); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.NewTokenPair(access, refresh), nil
}

// Validate runs the full check sequence on every authenticated request:
//
//  1. blacklist lookup
//  2. signature + expiry
//  3. token kind matches what the endpoint expects
//  4. the store entry for (session, kind) equals the presented token exactly
//  5. the subject still resolves to a user record
//
// Each failure short-circuits to ErrUnauthorized. Step 4 is what makes
// rotation and revocation effective: a token can decode cleanly and still be
// rejected because it has been superseded or cleared. Store I/O failures
// propagate as errors in their own right, never as "token invalid".
func (s *TokenService) Validate(ctx context.Context, token string, kind domain.TokenKind) (jwtx.Claims, error) {
	l := slogx.FromContext(ctx)

	revoked, err := s.Store.Blacklist().IsRevoked(ctx, token)
	if err != nil {
		return jwtx.Claims{}, err
	}
	if revoked {
		return jwtx.Claims{}, ErrUnauthorized
	}

	claims, err := s.Codec.Verify(token)
	if err != nil {
		l.Debug("token rejected at decode", "err", err)
		return jwtx.Claims{}, ErrUnauthorized
	}

	if claims.TokenType != kind.String() {
		return jwtx.Claims{}, ErrUnauthorized
	}

	stored, err := s.storedToken(ctx, claims.SessionID, kind)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jwtx.Claims{}, ErrUnauthorized
		}
		return jwtx.Claims{}, err
	}
	if stored != token {
		return jwtx.Claims{}, ErrUnauthorized
	}

	if _, err := s.Users.FindByID(ctx, claims.Subject); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return jwtx.Claims{}, ErrUnauthorized
		}
		return jwtx.Claims{}, err
	}

	return claims, nil
}

func (s *TokenService) storedToken(ctx context.Context, sessionID string, kind domain.TokenKind) (string, error) {
	switch kind {
	case domain.KindAccess:
		return s.Store.Sessions().GetAccess(ctx, sessionID)
	case domain.KindRefresh:
		return s.Store.Sessions().GetRefresh(ctx, sessionID)
	default:
		// Verification tokens are never session-tracked.
		return "", store.ErrNotFound
	}
}

// Refresh validates the refresh token and mints a new access token for the
// same session and subject, overwriting the session's access entry. The
// refresh token itself is not rotated: it stays valid until its own expiry or
// explicit revocation.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.Validate(ctx, refreshToken, domain.KindRefresh)
	if err != nil {
		return "", err
	}

	release, err := s.lockSession(ctx, claims.SessionID)
	if err != nil {
		return "", err
	}
	defer release()

	// Re-check under the lock: a revocation may have landed between the
	// validation above and the lock acquisition.
	revoked, err := s.Store.Blacklist().IsRevoked(ctx, refreshToken)
	if err != nil {
		return "", err
	}
	stored, serr := s.Store.Sessions().GetRefresh(ctx, claims.SessionID)
	if serr != nil && !errors.Is(serr, store.ErrNotFound) {
		return "", serr
	}
	if revoked || stored != refreshToken {
		return "", ErrUnauthorized
	}

	access, err := s.Codec.Sign(claims.Subject, claims.SessionID, domain.KindAccess.String(), domain.AccessTokenTTL)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	if err := s.Store.Sessions().PutAccess(ctx, claims.SessionID, access); err != nil {
		return "", err
	}
	return access, nil
}

// RevokeSession is the compound revocation used by logout and account
// deletion. It authenticates the caller via the access token, then under the
// session lock blacklists both tokens with their remaining lifetimes and
// clears the session's store entries. If the stored refresh token is absent
// or undecodable the whole operation aborts with ErrConflict and no state is
// touched. Returns the subject id so the caller can drive further teardown
// without re-validating.
func (s *TokenService) RevokeSession(ctx context.Context, accessToken string) (string, error) {
	l := slogx.FromContext(ctx)

	claims, err := s.Validate(ctx, accessToken, domain.KindAccess)
	if err != nil {
		return "", err
	}
	sessionID := claims.SessionID

	release, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	defer release()

	refreshToken, err := s.Store.Sessions().GetRefresh(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			l.Warn("revocation aborted, session has no refresh entry", "session_id", sessionID)
			return "", ErrConflict
		}
		return "", err
	}

	refreshClaims, err := s.Codec.Verify(refreshToken)
	if err != nil {
		l.Warn("revocation aborted, stored refresh token undecodable",
			"session_id", sessionID, "err", err)
		return "", ErrConflict
	}

	now := time.Now()
	bl := s.Store.Blacklist()
	if err := bl.Revoke(ctx, refreshToken, refreshClaims.RemainingTTL(now)); err != nil {
		return "", err
	}
	if err := bl.Revoke(ctx, accessToken, claims.RemainingTTL(now)); err != nil {
		return "", err
	}

	if err := s.Store.Sessions().Clear(ctx, sessionID); err != nil {
		return "", err
	}

	return claims.Subject, nil
}

// IssueVerificationToken signs a short-lived verification token bound to the
// given subject (a registration exchange id). Verification tokens are not
// session-tracked: several may be outstanding at once, and validity is
// signature plus expiry only.
func (s *TokenService) IssueVerificationToken(subjectID string) (string, error) {
	return s.Codec.Sign(subjectID, "", domain.KindVerification.String(), domain.VerificationTokenTTL)
}

// VerifyVerificationToken checks signature, expiry and kind. No store
// cross-check by design.
func (s *TokenService) VerifyVerificationToken(token string) (jwtx.Claims, error) {
	claims, err := s.Codec.Verify(token)
	if err != nil {
		return jwtx.Claims{}, ErrUnauthorized
	}
	if claims.TokenType != domain.KindVerification.String() {
		return jwtx.Claims{}, ErrUnauthorized
	}
	return claims, nil
}

// CompleteLogin issues a fresh session for the subject and parks the pair in
// a state exchange slot. A federated-login callback calls this and redirects
// the client, which then polls the slot by state id.
func (s *TokenService) CompleteLogin(ctx context.Context, subjectID string) (string, error) {
	pair, err := s.Issue(ctx, subjectID)
	if err != nil {
		return "", err
	}
	return s.OpenStateExchange(ctx, pair)
}

// OpenStateExchange parks an issued pair in a fresh single-use slot and
// returns the state id to poll with.
func (s *TokenService) OpenStateExchange(ctx context.Context, pair domain.TokenPair) (string, error) {
	return s.Store.StateExchanges().Open(ctx, map[string]string{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// ConsumeStateExchange hands out the parked token pair exactly once.
// A second call with the same id returns store.ErrNotFound.
func (s *TokenService) ConsumeStateExchange(ctx context.Context, stateID string) (domain.TokenPair, error) {
	payload, err := s.Store.StateExchanges().Consume(ctx, stateID)
	if err != nil {
		return domain.TokenPair{}, err
	}
	return domain.NewTokenPair(payload["access_token"], payload["refresh_token"]), nil
}

// SessionExpiresAt reports when the session's refresh token expires, i.e.
// when the session dies absent further refreshes. Returns store.ErrNotFound
// when the session is gone or belongs to a different subject.
func (s *TokenService) SessionExpiresAt(ctx context.Context, sessionID, subjectID string) (time.Time, error) {
	refreshToken, err := s.Store.Sessions().GetRefresh(ctx, sessionID)
	if err != nil {
		return time.Time{}, err
	}

	claims, err := s.Codec.Verify(refreshToken)
	if err != nil || claims.Subject != subjectID || claims.ExpiresAt == nil {
		return time.Time{}, store.ErrNotFound
	}
	return claims.ExpiresAt.Time, nil
}

// lockSession takes the per-session advisory lock, retrying briefly before
// giving up with ErrSessionBusy.
func (s *TokenService) lockSession(ctx context.Context, sessionID string) (func(), error) {
	locks := s.Store.Locks()

	for attempt := 0; attempt < lockAttempts; attempt++ {
		owner, ok, err := locks.Acquire(ctx, sessionID, sessionLockTTL)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				if err := locks.Release(ctx, sessionID, owner); err != nil {
					slogx.FromContext(ctx).Warn("session lock release failed",
						"session_id", sessionID, "err", err)
				}
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}

	return nil, ErrSessionBusy
}
