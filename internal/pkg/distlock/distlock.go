// Package distlock provides a best-effort distributed mutex over Redis
// SET NX with TTL. It keeps concurrent service instances from running the
// same ingest cycle twice; it is not a fencing token, and the database
// upserts are idempotent anyway.
package distlock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

type Lock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func New(client *redis.Client, name string, ttl time.Duration) *Lock {
	return &Lock{client: client, key: "lock:" + name, ttl: ttl}
}

// TryAcquire attempts to take the lock without blocking. On success it
// returns a release func that only deletes the key if this holder still
// owns it (Lua compare-and-delete, so an expired-and-reacquired lock is
// never released by the old holder).
func (l *Lock) TryAcquire(ctx context.Context) (release func(), ok bool, err error) {
	token := make([]byte, 16)
	rand.Read(token)
	value := hex.EncodeToString(token)

	ok, err = l.client.SetNX(ctx, l.key, value, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lock %s: %w", l.key, err)
	}
	if !ok {
		return nil, false, nil
	}
	release = func() {
		releaseScript.Run(context.Background(), l.client, []string{l.key}, value)
	}
	return release, true, nil
}
