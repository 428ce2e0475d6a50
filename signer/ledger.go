package signer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis errors from the nonce ledger.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Ledger records used nonces for a bounded lifetime.
//
// Reserve must be atomic: of two concurrent calls with the same nonce,
// at most one returns true. Expired entries must never be reported as
// seen.
type Ledger interface {
	Seen(ctx context.Context, nonce string) (bool, error)
	Reserve(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
	Sweep(ctx context.Context) (int, error)
}

// DefaultLazySweepEvery is how many reservations a MemoryLedger accepts
// between lazy sweeps.
const DefaultLazySweepEvery = 256

// MemoryLedger is an in-process Ledger on a TTL cache.
type MemoryLedger struct {
	cache      *ttlcache.Cache[string, struct{}]
	sweepEvery uint64
	reserves   atomic.Uint64
}

// NewMemoryLedger returns an empty MemoryLedger. sweepEvery <= 0 uses
// DefaultLazySweepEvery.
func NewMemoryLedger(sweepEvery int) *MemoryLedger {
	if sweepEvery <= 0 {
		sweepEvery = DefaultLazySweepEvery
	}
	return &MemoryLedger{
		cache: ttlcache.New[string, struct{}](
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
		sweepEvery: uint64(sweepEvery),
	}
}

// Seen reports whether nonce is held and unexpired.
func (l *MemoryLedger) Seen(_ context.Context, nonce string) (bool, error) {
	return l.cache.Has(nonce), nil
}

// Reserve inserts nonce unless an unexpired entry exists.
func (l *MemoryLedger) Reserve(_ context.Context, nonce string, ttl time.Duration) (bool, error) {
	_, found := l.cache.GetOrSet(nonce, struct{}{}, ttlcache.WithTTL[string, struct{}](ttl))
	if l.reserves.Add(1)%l.sweepEvery == 0 {
		l.cache.DeleteExpired()
	}
	return !found, nil
}

// Sweep drops expired nonces and returns how many were removed.
func (l *MemoryLedger) Sweep(context.Context) (int, error) {
	before := l.cache.Len()
	l.cache.DeleteExpired()
	removed := before - l.cache.Len()
	if removed < 0 {
		removed = 0
	}
	return removed, nil
}

// Len returns the number of held entries, expired or not.
func (l *MemoryLedger) Len() int {
	return l.cache.Len()
}

// RedisLedger stores nonces as Redis keys with a PX expiry, so Redis
// reclaims them itself.
type RedisLedger struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisLedger returns a RedisLedger using keys "<prefix>:n:<nonce>".
func NewRedisLedger(client redis.UniversalClient, prefix string) *RedisLedger {
	return &RedisLedger{redis: client, prefix: prefix}
}

func (l *RedisLedger) key(nonce string) string {
	return l.prefix + ":n:" + nonce
}

// Seen reports whether nonce is present.
func (l *RedisLedger) Seen(ctx context.Context, nonce string) (bool, error) {
	n, err := l.redis.Exists(ctx, l.key(nonce)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Reserve runs SET NX PX.
func (l *RedisLedger) Reserve(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	ok, err := l.redis.SetNX(ctx, l.key(nonce), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return ok, nil
}

// Sweep is a no-op; Redis expires nonce keys.
func (l *RedisLedger) Sweep(context.Context) (int, error) {
	return 0, nil
}
