package store

import (
	"context"
	"errors"
	"time"

	"github.com/syla-app/syla-auth/internal/auth/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the ephemeral key-value root. The concrete driver (redis) owns the
// durable representation of every token-lifecycle record; nothing in the
// service layer caches validity in-process, every check round-trips here.
type Store interface {
	Sessions() Sessions
	Blacklist() Blacklist
	StateExchanges() Exchanges
	RegistrationExchanges() Exchanges
	Usernames() Usernames
	Locks() Locks

	// Ping verifies the store connection is still alive.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}

// Sessions maps a session id to its two live token entries. Writes are
// unconditional overwrites with the kind's lifetime as TTL; the lifecycle
// manager is the sole writer per session.
type Sessions interface {
	PutAccess(ctx context.Context, sessionID, token string) error
	PutRefresh(ctx context.Context, sessionID, token string) error

	// GetAccess/GetRefresh return ErrNotFound when the entry is absent or
	// already aged out.
	GetAccess(ctx context.Context, sessionID string) (string, error)
	GetRefresh(ctx context.Context, sessionID string) (string, error)

	// Clear deletes both entries. Idempotent: clearing an absent session is
	// a no-op, not an error.
	Clear(ctx context.Context, sessionID string) error
}

// Blacklist is the revocation set. Entries carry the revoked token's
// remaining lifetime as TTL so they vanish no later than the token would
// have expired on its own.
type Blacklist interface {
	// Revoke inserts a marker for the token. A ttl <= 0 is skipped, the
	// token is already unusable.
	Revoke(ctx context.Context, token string, ttl time.Duration) error

	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Exchanges is a short-lived single-use hand-off slot: opened with an opaque
// id, consumed exactly once. Both the login state exchange (600s) and the
// registration exchange (3600s) implement this shape.
type Exchanges interface {
	Open(ctx context.Context, payload map[string]string) (string, error)

	// Consume returns the payload and deletes the slot. A second consume for
	// the same id returns ErrNotFound, never the stale value.
	Consume(ctx context.Context, id string) (map[string]string, error)
}

// Usernames is the probabilistic username-uniqueness filter. False positives
// (an available name reported taken) are acceptable; false negatives are not,
// which the underlying bloom filter guarantees.
type Usernames interface {
	// Init creates the filter if it does not exist yet and seeds nothing.
	Init(ctx context.Context) error

	Add(ctx context.Context, username string) error
	IsAvailable(ctx context.Context, username string) (bool, error)
}

// Locks provides short-lived advisory locks. Refresh and revocation hold the
// per-session lock for their whole critical section so their multi-step store
// sequences cannot interleave.
type Locks interface {
	// Acquire attempts to take the lock, returning an owner token to release
	// with. ok is false when somebody else holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (owner string, ok bool, err error)

	// Release frees the lock if owner still holds it.
	Release(ctx context.Context, key, owner string) error
}

// Users is the user-record collaborator boundary. Lookup backs validation
// step five (deleted accounts whose tokens have not expired yet must be
// rejected); the rest serves registration and account deletion.
type Users interface {
	FindByID(ctx context.Context, id string) (domain.User, error)
	FindByUsername(ctx context.Context, username string) (domain.User, error)
	Create(ctx context.Context, u domain.User) error
	Delete(ctx context.Context, id string) error
}
