package goGuard

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/ratelimit"
	"github.com/rs/zerolog"
)

func TestRateLimitCheckAndRecord(t *testing.T) {
	e, clk := newTestEngine(t, testConfig())
	ctx := context.Background()
	key := "203.0.113.9"

	for i := 0; i < 5; i++ {
		limited, err := e.CheckRateLimit(ctx, key)
		if err != nil {
			t.Fatalf("CheckRateLimit: %v", err)
		}
		if limited {
			t.Fatalf("limited after %d failures", i)
		}
		if err := e.RecordAttempt(ctx, key, false); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}

	limited, err := e.CheckRateLimit(ctx, key)
	if err != nil || !limited {
		t.Fatalf("expected limited after 5 failures, got %v, %v", limited, err)
	}

	info, err := e.RateLimitInfo(ctx, key)
	if err != nil {
		t.Fatalf("RateLimitInfo: %v", err)
	}
	if info.Attempts != 5 || info.Remaining != 0 || !info.ResetAt.Equal(epoch.Add(15*time.Minute)) {
		t.Fatalf("unexpected info %+v", info)
	}

	clk.Advance(15 * time.Minute)
	if limited, _ := e.CheckRateLimit(ctx, key); limited {
		t.Fatalf("still limited after the window elapsed")
	}

	snap := e.MetricsSnapshot()
	if snap.Counters[MetricAttemptFailed] != 5 || snap.Counters[MetricRateLimitHit] != 1 {
		t.Fatalf("unexpected counters %+v", snap.Counters)
	}
}

func TestRecordSuccessClearsWindow(t *testing.T) {
	e, _ := newTestEngine(t, testConfig())
	ctx := context.Background()
	key := "203.0.113.10"

	for i := 0; i < 4; i++ {
		_ = e.RecordAttempt(ctx, key, false)
	}
	if err := e.RecordAttempt(ctx, key, true); err != nil {
		t.Fatalf("RecordAttempt: %v", err)
	}
	info, _ := e.RateLimitInfo(ctx, key)
	if info.Attempts != 0 || info.Remaining != 5 {
		t.Fatalf("success did not clear the window: %+v", info)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Enabled = false
	e, _ := newTestEngine(t, cfg)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := e.RecordAttempt(ctx, "k", false); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	if limited, err := e.CheckRateLimit(ctx, "k"); err != nil || limited {
		t.Fatalf("disabled limiter reported %v, %v", limited, err)
	}
}

var errLimiterStorage = errors.New("limiter storage failure")

// brokenLimiter reports every key as limited and fails everything else.
type brokenLimiter struct {
	err error
}

func (l brokenLimiter) IsLimited(context.Context, string) (bool, error) { return true, nil }

func (l brokenLimiter) RecordAttempt(context.Context, string, bool) error { return l.err }

func (l brokenLimiter) Info(context.Context, string) (ratelimit.Info, error) {
	return ratelimit.Info{}, l.err
}

func (l brokenLimiter) Sweep(context.Context) (int, error) { return 0, nil }

func TestRateLimiterFailuresAreLogged(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"storage error", errLimiterStorage, false},
		{"backend outage", ratelimit.ErrRedisUnavailable, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var logs bytes.Buffer
			e, err := New().
				WithConfig(testConfig()).
				WithLogger(zerolog.New(&logs)).
				WithRateLimiter(brokenLimiter{err: tc.err}).
				Build()
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			defer e.Close()
			ctx := context.Background()

			limited, err := e.CheckRateLimit(ctx, "198.51.100.1")
			if err != nil || !limited {
				t.Fatalf("CheckRateLimit = %v, %v; want true, nil", limited, err)
			}
			err = e.RecordAttempt(ctx, "198.51.100.1", false)
			if !errors.Is(err, tc.err) {
				t.Fatalf("RecordAttempt error = %v, want %v", err, tc.err)
			}
			if got := errors.Is(err, ErrRedisUnavailable); got != tc.unavailable {
				t.Fatalf("errors.Is(err, ErrRedisUnavailable) = %v, want %v", got, tc.unavailable)
			}

			out := logs.String()
			for _, op := range []string{`"op":"rate_limit_info"`, `"op":"record_attempt"`} {
				if !strings.Contains(out, op) {
					t.Fatalf("log missing %s:\n%s", op, out)
				}
			}
			if e.MetricsSnapshot().Counters[MetricAttemptFailed] != 0 {
				t.Fatalf("failed recording counted as an attempt")
			}
		})
	}
}
