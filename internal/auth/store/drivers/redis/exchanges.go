package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/syla-app/syla-auth/internal/auth/store"
)

const (
	stateExchangeTTL        = 10 * time.Minute
	registrationExchangeTTL = 60 * time.Minute

	// registrationPrefix disambiguates registration slots from state slots;
	// both live in the same keyspace as bare UUID-keyed hashes otherwise.
	registrationPrefix = "e-"
)

// exchangesRepo is a single-use hand-off slot: a hash written together with
// its TTL, read back exactly once. Consume reads and deletes in one script so
// two concurrent consumers of the same id cannot both receive the payload.
type exchangesRepo struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// consumeScript returns the hash contents and deletes the key atomically.
var consumeScript = goredis.NewScript(`
local vals = redis.call("hgetall", KEYS[1])
if #vals > 0 then
	redis.call("del", KEYS[1])
end
return vals
`)

func (r *exchangesRepo) Open(ctx context.Context, payload map[string]string) (string, error) {
	if len(payload) == 0 {
		return "", errors.New("redis: empty exchange payload")
	}

	id := r.prefix + uuid.NewString()

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, id, payload)
	pipe.Expire(ctx, id, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("redis: open exchange: %w", err)
	}
	return id, nil
}

func (r *exchangesRepo) Consume(ctx context.Context, id string) (map[string]string, error) {
	vals, err := consumeScript.Run(ctx, r.client, []string{id}).Slice()
	if err != nil {
		return nil, fmt.Errorf("redis: consume exchange %s: %w", id, err)
	}
	if len(vals) == 0 {
		return nil, store.ErrNotFound
	}

	// HGETALL comes back from the script as a flat field/value list.
	payload := make(map[string]string, len(vals)/2)
	for i := 0; i+1 < len(vals); i += 2 {
		field, fok := vals[i].(string)
		value, vok := vals[i+1].(string)
		if !fok || !vok {
			return nil, fmt.Errorf("redis: malformed exchange payload %s", id)
		}
		payload[field] = value
	}
	return payload, nil
}
