package custody

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

// keyNamespace scopes derived idempotency keys. Changing it re-keys every
// logical operation.
var keyNamespace = uuid.MustParse("3d0f8a2c-6b1e-5c47-9f0a-2e4b7d9c1a53")

// DeriveKey returns the idempotency key of one logical attempt of op for
// identity. Equal inputs always produce the same UUID.
func DeriveKey(identity, op, epoch string) string {
	return uuid.NewSHA1(keyNamespace, []byte(identity+"\x00"+op+"\x00"+epoch)).String()
}

// EpochStore tracks the current attempt epoch per identity and operation.
type EpochStore interface {
	Current(ctx context.Context, identity, op string) (string, error)
	Advance(ctx context.Context, identity, op string) error
}

// Keys hands out idempotency keys for mutating custody calls.
type Keys struct {
	epochs EpochStore
}

// NewKeys builds a key source backed by epochs.
func NewKeys(epochs EpochStore) *Keys {
	return &Keys{epochs: epochs}
}

// Key returns the key for op. A non-empty attempt names the logical attempt
// explicitly (a client supplied Idempotency-Key); otherwise the stored epoch
// is used.
func (k *Keys) Key(ctx context.Context, identity, op, attempt string) (string, error) {
	if attempt != "" {
		return DeriveKey(identity, op, "client:"+attempt), nil
	}
	epoch, err := k.epochs.Current(ctx, identity, op)
	if err != nil {
		return "", fmt.Errorf("load idempotency epoch: %w", err)
	}
	return DeriveKey(identity, op, epoch), nil
}

// Settle records the outcome of a keyed call. Terminal outcomes close the
// logical operation so the next call gets a fresh key; retryable outcomes
// keep the key for the retry.
func (k *Keys) Settle(ctx context.Context, identity, op, attempt string, outcome Outcome) error {
	if attempt != "" || outcome == OutcomeRetryable {
		return nil
	}
	if err := k.epochs.Advance(ctx, identity, op); err != nil {
		return fmt.Errorf("advance idempotency epoch: %w", err)
	}
	return nil
}

const epochPrefix = "idempotency:epoch:v1:"

// RedisEpochStore keeps epochs as Redis counters. Counters never expire: a
// reset would hand out keys the backend has already seen.
type RedisEpochStore struct {
	cache *redis.Client
}

// NewRedisEpochStore builds a Redis-backed epoch store.
func NewRedisEpochStore(cache *redis.Client) *RedisEpochStore {
	return &RedisEpochStore{cache: cache}
}

func epochKey(identity, op string) string {
	return epochPrefix + op + ":" + identity
}

// Current returns the stored epoch, "0" when none exists.
func (s *RedisEpochStore) Current(ctx context.Context, identity, op string) (string, error) {
	v, err := s.cache.Get(ctx, epochKey(identity, op)).Result()
	if errors.Is(err, redis.Nil) {
		return "0", nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

// Advance increments the epoch.
func (s *RedisEpochStore) Advance(ctx context.Context, identity, op string) error {
	return s.cache.Incr(ctx, epochKey(identity, op)).Err()
}

// MemoryEpochStore keeps epochs in process. Epochs carry a per-instance
// prefix so a restart never replays keys of a previous process.
type MemoryEpochStore struct {
	mu       sync.Mutex
	instance string
	epochs   map[string]int64
}

// NewMemoryEpochStore builds an in-memory epoch store.
func NewMemoryEpochStore() *MemoryEpochStore {
	return &MemoryEpochStore{
		instance: ulid.Make().String(),
		epochs:   make(map[string]int64),
	}
}

// Current returns the epoch for identity and op.
func (s *MemoryEpochStore) Current(_ context.Context, identity, op string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instance + "-" + strconv.FormatInt(s.epochs[epochKey(identity, op)], 10), nil
}

// Advance increments the epoch for identity and op.
func (s *MemoryEpochStore) Advance(_ context.Context, identity, op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[epochKey(identity, op)]++
	return nil
}
