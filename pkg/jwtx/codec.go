package jwtx

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired reports a token whose signature checks out but whose exp
	// claim has passed.
	ErrExpired = errors.New("jwtx: token expired")

	// ErrMalformed covers every other decode failure: bad structure, wrong
	// algorithm, invalid signature. Callers are not expected to tell these
	// apart, that distinction is an oracle nobody outside should get.
	ErrMalformed = errors.New("jwtx: malformed token")
)

// Codec signs and verifies HS256 tokens with a single process-wide symmetric
// key. The key is injected once at startup and never mutated, so concurrent
// use needs no synchronisation.
type Codec struct {
	key []byte
	now func() time.Time
}

// NewCodec builds a codec around the signing key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) == 0 {
		return nil, errors.New("jwtx: empty signing key")
	}
	return &Codec{key: key, now: time.Now}, nil
}

// NewCodecAt is NewCodec with an injectable clock, for tests that need to
// mint already-expired tokens.
func NewCodecAt(key []byte, now func() time.Time) (*Codec, error) {
	c, err := NewCodec(key)
	if err != nil {
		return nil, err
	}
	c.now = now
	return c, nil
}

// Sign stamps kind and now+ttl into a fresh claim set and signs it.
func (c *Codec) Sign(subject, sessionID, kind string, ttl time.Duration) (string, error) {
	claims := NewClaims(subject, sessionID, kind, ttl, c.now())
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(c.key)
}

// Verify checks signature and expiry and returns the claims. Failures come
// back as ErrExpired or ErrMalformed, never a panic or a raw library error,
// so callers can map "expired" and "invalid" to distinct outcomes if they
// ever choose to.
func (c *Codec) Verify(token string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrMalformed
	}
	return claims, nil
}
