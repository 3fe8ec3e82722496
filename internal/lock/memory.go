package lock

import (
	"context"
	"sync"
	"time"
)

// memoryLock records one acquisition. The token ties a release closure to its
// own acquisition, mirroring the Redis release script.
type memoryLock struct {
	expiry time.Time
	token  uint64
}

// MemoryLocker implements Locker with an in-process mutex map. It serves
// single-instance deployments and tests; TTLs are honored so an unreleased
// lock eventually frees itself.
type MemoryLocker struct {
	mu    sync.Mutex
	held  map[string]memoryLock
	next  uint64
	clock func() time.Time
}

// NewMemoryLocker creates an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:  make(map[string]memoryLock),
		clock: time.Now,
	}
}

// Acquire takes the named lock unless an unexpired holder exists.
func (l *MemoryLocker) Acquire(_ context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if cur, ok := l.held[name]; ok && now.Before(cur.expiry) {
		return nil, ErrNotAcquired
	}
	l.next++
	token := l.next
	l.held[name] = memoryLock{expiry: now.Add(ttl), token: token}

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		// Only the holding acquisition may delete; a release after TTL
		// expiry must not free a lock someone else re-acquired.
		if cur, ok := l.held[name]; ok && cur.token == token {
			delete(l.held, name)
		}
		return nil
	}
	return release, nil
}
