package domain

import (
	"errors"
	"time"
)

// Token lifetimes. Expiry is always issued-at + the kind's lifetime; tokens
// are immutable once signed, a refresh mints a new access token rather than
// extending the old one.
const (
	AccessTokenTTL       = 60 * time.Minute
	RefreshTokenTTL      = 30 * 24 * time.Hour
	VerificationTokenTTL = 15 * time.Minute
)

// ErrUnknownKind reports a token_type claim outside the closed kind set.
var ErrUnknownKind = errors.New("domain: unknown token kind")

// TokenKind is the closed set of token types this service mints. It is kept
// as a small enum so store accessors and validation can switch exhaustively
// instead of keying behaviour off raw claim strings.
type TokenKind int

const (
	KindAccess TokenKind = iota
	KindRefresh
	KindVerification
)

// String returns the wire value stamped into the token_type claim.
func (k TokenKind) String() string {
	switch k {
	case KindAccess:
		return "access"
	case KindRefresh:
		return "refresh"
	case KindVerification:
		return "verification"
	default:
		return "unknown"
	}
}

// Lifetime returns the signing lifetime for the kind.
func (k TokenKind) Lifetime() time.Duration {
	switch k {
	case KindAccess:
		return AccessTokenTTL
	case KindRefresh:
		return RefreshTokenTTL
	case KindVerification:
		return VerificationTokenTTL
	default:
		return 0
	}
}

// ParseTokenKind maps a token_type claim back onto the enum.
func ParseTokenKind(s string) (TokenKind, error) {
	switch s {
	case "access":
		return KindAccess, nil
	case "refresh":
		return KindRefresh, nil
	case "verification":
		return KindVerification, nil
	default:
		return 0, ErrUnknownKind
	}
}

// TokenPair is what a completed login hands to the client: the short-lived
// access token and the long-lived refresh token, both bound to one session id.
type TokenPair struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"` // always "Bearer"
	AccessExpiresIn  int64  `json:"access_expires_in"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
}

// NewTokenPair builds a pair with the standard lifetimes filled in seconds.
func NewTokenPair(access, refresh string) TokenPair {
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		AccessExpiresIn:  int64(AccessTokenTTL.Seconds()),
		RefreshExpiresIn: int64(RefreshTokenTTL.Seconds()),
	}
}
