package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/clock"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window Limiter on Redis counters. The counter
// key carries the window as its TTL, so Redis reclaims expired windows.
type RedisLimiter struct {
	redis  redis.UniversalClient
	prefix string
	cfg    Config
	clock  clock.Clock
}

// NewRedisLimiter returns a RedisLimiter using keys "<prefix>:rl:<key>".
// clk is only used to report ResetAt.
func NewRedisLimiter(client redis.UniversalClient, prefix string, cfg Config, clk clock.Clock) (*RedisLimiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &RedisLimiter{
		redis:  client,
		prefix: prefix,
		cfg:    cfg,
		clock:  clk,
	}, nil
}

func (l *RedisLimiter) key(clientKey string) string {
	return l.prefix + ":rl:" + clientKey
}

// IsLimited reads the counter without modifying it.
func (l *RedisLimiter) IsLimited(ctx context.Context, key string) (bool, error) {
	count, err := l.count(ctx, key)
	if err != nil {
		return false, err
	}
	return count >= int64(l.cfg.MaxAttempts), nil
}

// RecordAttempt increments the counter on failure and deletes it on
// success.
func (l *RedisLimiter) RecordAttempt(ctx context.Context, key string, success bool) error {
	k := l.key(key)
	if success {
		if err := l.redis.Del(ctx, k).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		return nil
	}

	pipe := l.redis.Pipeline()
	incrCmd := pipe.Incr(ctx, k)
	ttlCmd := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: the TTL is set on the first hit only. A
	// counter without a TTL (a failed PEXPIRE) is repaired here so it
	// cannot limit the key forever.
	if incrCmd.Val() == 1 || ttlCmd.Val() < 0 {
		if err := l.redis.PExpire(ctx, k, l.cfg.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return nil
}

// Info reports the counter and its remaining TTL.
func (l *RedisLimiter) Info(ctx context.Context, key string) (Info, error) {
	k := l.key(key)

	pipe := l.redis.Pipeline()
	getCmd := pipe.Get(ctx, k)
	ttlCmd := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Info{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	count, err := getCmd.Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Info{Remaining: l.cfg.MaxAttempts}, nil
		}
		return Info{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count <= 0 {
		return Info{Remaining: l.cfg.MaxAttempts}, nil
	}

	info := Info{
		Attempts:  int(count),
		Remaining: remaining(l.cfg.MaxAttempts, int(count)),
	}
	if ttl := ttlCmd.Val(); ttl > 0 {
		info.ResetAt = l.clock.Now().Add(ttl)
	}
	return info, nil
}

// Sweep is a no-op; Redis expires window keys.
func (l *RedisLimiter) Sweep(context.Context) (int, error) {
	return 0, nil
}

func (l *RedisLimiter) count(ctx context.Context, key string) (int64, error) {
	count, err := l.redis.Get(ctx, l.key(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return count, nil
}

var (
	_ Limiter = (*RedisLimiter)(nil)
	_ Limiter = (*MemoryLimiter)(nil)
)
