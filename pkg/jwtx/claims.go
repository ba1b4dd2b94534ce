package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/syla-app/syla-auth/pkg/idx"
)

// Claims is the signed claim set carried by every token this service mints.
// The wire names (sub, session_id, token_type, exp) are load-bearing: existing
// clients decode them, so they stay bit-compatible with standard JWT/HS256.
// The jti claim makes every mint distinct: iat/exp only carry second
// precision, so without it two tokens signed within the same second for the
// same session would be byte-identical and "overwrite the access entry" would
// replace a token with itself.
type Claims struct {
	jwt.RegisteredClaims

	// SessionID correlates the access and refresh tokens of one login. It is
	// stable across refreshes and is the key under which the store tracks the
	// session's live token entries.
	SessionID string `json:"session_id,omitempty"`

	// TokenType is the token kind ("access", "refresh", "verification").
	TokenType string `json:"token_type"`
}

// NewClaims builds a claim set for the given subject, stamped with the kind
// and an expiry of now + ttl.
func NewClaims(subject, sessionID, kind string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        idx.New().String(),
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionID: sessionID,
		TokenType: kind,
	}
}

// RemainingTTL returns how long the token stays usable from now. Zero or
// negative means it has already expired.
func (c Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Time.Sub(now)
}
