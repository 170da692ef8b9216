// Package lease provides short-lived mutual exclusion keyed by string, used
// to serialize concurrent orchestrations for one identity.
package lease

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned when another holder owns the lease.
var ErrHeld = errors.New("lease held")

// Locker acquires leases. The returned release func is safe to call once
// the work is done; it never releases a lease re-acquired by someone else
// after expiry.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

const keyPrefix = "lease:v1:"

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements Locker with SET NX PX and a compare-and-delete
// release.
type RedisLocker struct {
	cache *redis.Client
}

// NewRedisLocker builds a Redis-backed locker.
func NewRedisLocker(cache *redis.Client) *RedisLocker {
	return &RedisLocker{cache: cache}
}

// Acquire takes the lease for key or returns ErrHeld.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()
	ok, err := l.cache.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrHeld
	}
	return func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.cache, []string{keyPrefix + key}, token).Err()
	}, nil
}

type memoryLease struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker implements Locker in process.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]memoryLease
	nowF   func() time.Time
}

// NewMemoryLocker builds an in-memory locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]memoryLease), nowF: time.Now}
}

// Acquire takes the lease for key or returns ErrHeld.
func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.nowF()
	if cur, ok := l.leases[key]; ok && cur.expiresAt.After(now) {
		return nil, ErrHeld
	}
	token := uuid.NewString()
	l.leases[key] = memoryLease{token: token, expiresAt: now.Add(ttl)}
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.leases[key]; ok && cur.token == token {
			delete(l.leases, key)
		}
		return nil
	}, nil
}
