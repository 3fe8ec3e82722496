// Package lock provides per-key mutual exclusion for pricing operations.
// Apply, revert, and reconciliation runs on the same rule or promo code are
// serialized through a Redis lock so concurrent callers cannot interleave
// their batched writes.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker acquires named locks. Release is returned as a closure bound to the
// acquisition, so a lock can only be released by its holder.
type Locker interface {
	// Acquire takes the named lock for at most ttl. It returns ErrNotAcquired
	// without blocking when the lock is held elsewhere.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
}

// releaseScript deletes the lock key only when it still holds this
// acquisition's token, so an expired lock re-acquired by another holder is
// never released by the first one.
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisLocker implements Locker on a shared Redis instance.
type RedisLocker struct {
	client *redis.Client
	prefix string
}

// NewRedisLocker creates a Redis-backed locker. Keys are namespaced under the
// given prefix.
func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	if prefix == "" {
		prefix = "pricing:lock"
	}
	return &RedisLocker{client: client, prefix: prefix}
}

// Acquire takes the lock with SET NX EX. The TTL bounds how long a crashed
// holder can block other callers.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	key := l.prefix + ":" + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
