package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/goGuard/clock"
)

// Defaults for Config.
const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

var (
	// ErrRedisUnavailable wraps Redis errors from RedisLimiter.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidConfig is returned for a non-positive attempt cap or window.
	ErrInvalidConfig = errors.New("rate limit requires MaxAttempts > 0 and Window > 0")
)

// Config holds limiter tuning parameters.
type Config struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Window      time.Duration `mapstructure:"window" yaml:"window"`
}

func (c Config) validate() error {
	if c.MaxAttempts <= 0 || c.Window <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// Info describes the current window for a client key. ResetAt is zero
// when no window is open.
type Info struct {
	Attempts  int
	ResetAt   time.Time
	Remaining int
}

// Limiter counts failed authentication attempts per client key.
//
// A window opens on the first failure when none is open. IsLimited is
// true once the window holds MaxAttempts failures. A success deletes the
// entry, so the next failure opens a fresh window.
type Limiter interface {
	IsLimited(ctx context.Context, key string) (bool, error)
	RecordAttempt(ctx context.Context, key string, success bool) error
	Info(ctx context.Context, key string) (Info, error)
	Sweep(ctx context.Context) (int, error)
}

type entry struct {
	attempts int
	resetAt  time.Time
}

// MemoryLimiter is an in-process Limiter guarded by one RWMutex.
type MemoryLimiter struct {
	mu      sync.RWMutex
	cfg     Config
	clock   clock.Clock
	entries map[string]entry
}

// NewMemoryLimiter returns an empty MemoryLimiter. A nil clk uses the
// real clock.
func NewMemoryLimiter(cfg Config, clk clock.Clock) (*MemoryLimiter, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &MemoryLimiter{
		cfg:     cfg,
		clock:   clk,
		entries: make(map[string]entry),
	}, nil
}

// IsLimited reports whether key has exhausted its window.
func (l *MemoryLimiter) IsLimited(_ context.Context, key string) (bool, error) {
	now := l.clock.Now()

	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()

	if !ok || !now.Before(e.resetAt) {
		return false, nil
	}
	return e.attempts >= l.cfg.MaxAttempts, nil
}

// RecordAttempt counts a failure or clears the entry on success.
func (l *MemoryLimiter) RecordAttempt(_ context.Context, key string, success bool) error {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if success {
		delete(l.entries, key)
		return nil
	}

	e, ok := l.entries[key]
	if !ok || !now.Before(e.resetAt) {
		e = entry{resetAt: now.Add(l.cfg.Window)}
	}
	e.attempts++
	l.entries[key] = e
	return nil
}

// Info returns the open window for key, or a zero window.
func (l *MemoryLimiter) Info(_ context.Context, key string) (Info, error) {
	now := l.clock.Now()

	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()

	if !ok || !now.Before(e.resetAt) {
		return Info{Remaining: l.cfg.MaxAttempts}, nil
	}
	return Info{
		Attempts:  e.attempts,
		ResetAt:   e.resetAt,
		Remaining: remaining(l.cfg.MaxAttempts, e.attempts),
	}, nil
}

// Sweep removes expired windows.
func (l *MemoryLimiter) Sweep(context.Context) (int, error) {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, e := range l.entries {
		if !now.Before(e.resetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of tracked keys, including expired ones not yet
// swept.
func (l *MemoryLimiter) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func remaining(maxAttempts, attempts int) int {
	if attempts >= maxAttempts {
		return 0
	}
	return maxAttempts - attempts
}
