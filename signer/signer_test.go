package signer

import (
	"context"
	"encoding/hex"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/MrEthical07/goGuard/clock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestSigner(t *testing.T, ledger Ledger) (*Signer, *clock.FakeClock) {
	t.Helper()
	clk := clock.Fake(time.UnixMilli(1_700_000_000_000))
	s, err := New(Config{Secret: testSecret, MaxSkew: DefaultMaxSkew}, ledger, clk, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s, clk
}

func TestSignVerifyOnceThenReplay(t *testing.T) {
	s, _ := newTestSigner(t, NewMemoryLedger(0))
	ctx := context.Background()

	env, err := s.Sign(map[string]any{"amount": 10, "to": "acct-1"})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if res := s.Verify(ctx, env); !res.Valid {
		t.Fatalf("expected first verify to succeed, got reason %s", res.Reason)
	}

	res := s.Verify(ctx, env)
	if res.Valid {
		t.Fatal("expected replay to fail")
	}
	if res.Reason != ReasonReplay {
		t.Fatalf("expected replay reason, got %s", res.Reason)
	}
	if !errors.Is(res.Err, ErrEnvelopeRejected) {
		t.Fatalf("expected generic error, got %v", res.Err)
	}
}

func TestVerifyAcceptsReorderedPayload(t *testing.T) {
	s, _ := newTestSigner(t, NewMemoryLedger(0))

	env, err := s.Sign(map[string]any{"a": 1, "b": 2})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	env.Payload = []byte(`{ "b": 2, "a": 1 }`)

	if res := s.Verify(context.Background(), env); !res.Valid {
		t.Fatalf("key order must not matter, got reason %s", res.Reason)
	}
}

func TestSignatureIndependentOfKeyOrder(t *testing.T) {
	s, _ := newTestSigner(t, NewMemoryLedger(0))

	a, _ := Canonicalize(map[string]any{"a": 1, "b": 2})
	b, _ := CanonicalizeJSON([]byte(`{"b":2,"a":1}`))
	if string(s.mac(a, 42, "n")) != string(s.mac(b, 42, "n")) {
		t.Fatal("signatures differ for reordered keys")
	}
}

func TestSkewBoundaryInclusive(t *testing.T) {
	ctx := context.Background()

	s, clk := newTestSigner(t, NewMemoryLedger(0))
	env, _ := s.Sign(map[string]string{"k": "v"})
	clk.Advance(DefaultMaxSkew)
	if res := s.Verify(ctx, env); !res.Valid {
		t.Fatalf("timestamp exactly maxSkew old must be accepted, got %s", res.Reason)
	}

	env, _ = s.Sign(map[string]string{"k": "v"})
	clk.Advance(DefaultMaxSkew + time.Millisecond)
	res := s.Verify(ctx, env)
	if res.Valid || res.Reason != ReasonClockSkew {
		t.Fatalf("expected clock skew rejection, got valid=%v reason=%s", res.Valid, res.Reason)
	}
	if res.Skew != DefaultMaxSkew+time.Millisecond {
		t.Fatalf("unexpected skew %v", res.Skew)
	}
}

func TestFutureTimestampOutsideWindowRejected(t *testing.T) {
	s, clk := newTestSigner(t, NewMemoryLedger(0))
	env, _ := s.Sign(map[string]string{"k": "v"})
	clk.Set(clk.Now().Add(-DefaultMaxSkew - time.Millisecond))

	if res := s.Verify(context.Background(), env); res.Reason != ReasonClockSkew {
		t.Fatalf("expected clock skew rejection, got %s", res.Reason)
	}
}

func TestExtremeTimestampsRejected(t *testing.T) {
	ctx := context.Background()
	now := int64(1_700_000_000_000)

	cases := []struct {
		name      string
		timestamp int64
	}{
		{"min int64", math.MinInt64},
		{"max int64", math.MaxInt64},
		{"wraps to zero skew", now - (1 << 58)},
		{"far future", now + (1 << 58)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestSigner(t, NewMemoryLedger(0))
			env, err := s.Sign(map[string]string{"k": "v"})
			if err != nil {
				t.Fatalf("Sign: %v", err)
			}
			env.Timestamp = tc.timestamp
			env.Signature = hex.EncodeToString(s.mac(env.Payload, env.Timestamp, env.Nonce))

			res := s.Verify(ctx, env)
			if res.Valid || res.Reason != ReasonClockSkew {
				t.Fatalf("expected clock skew rejection, got valid=%v reason=%s skew=%v", res.Valid, res.Reason, res.Skew)
			}
			if res.Skew > -DefaultMaxSkew && res.Skew < DefaultMaxSkew {
				t.Fatalf("reported skew %v must lie outside the window", res.Skew)
			}
		})
	}
}

func TestSkewOfSaturates(t *testing.T) {
	now := int64(1_700_000_000_000)
	if got := skewOf(now, math.MinInt64); got != time.Duration(math.MaxInt64) {
		t.Fatalf("skewOf(min) = %v", got)
	}
	if got := skewOf(now, math.MaxInt64); got != -time.Duration(math.MaxInt64) {
		t.Fatalf("skewOf(max) = %v", got)
	}
	if got := skewOf(now, now-1500); got != 1500*time.Millisecond {
		t.Fatalf("skewOf(now-1500) = %v", got)
	}
}

func TestBadSignatureDoesNotConsumeNonce(t *testing.T) {
	s, _ := newTestSigner(t, NewMemoryLedger(0))
	ctx := context.Background()

	env, _ := s.Sign(map[string]int{"n": 1})

	forged := env
	forged.Payload = []byte(`{"n":2}`)
	if res := s.Verify(ctx, forged); res.Valid || res.Reason != ReasonSignature {
		t.Fatalf("expected signature rejection, got valid=%v reason=%s", res.Valid, res.Reason)
	}

	decoy := env
	flipped := []byte(decoy.Signature)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}
	decoy.Signature = string(flipped)
	if res := s.Verify(ctx, decoy); res.Reason != ReasonSignature {
		t.Fatalf("expected signature rejection, got %s", res.Reason)
	}

	if res := s.Verify(ctx, env); !res.Valid {
		t.Fatalf("legitimate envelope must still verify, got %s", res.Reason)
	}
}

func TestMalformedEnvelopes(t *testing.T) {
	s, _ := newTestSigner(t, NewMemoryLedger(0))
	ctx := context.Background()
	good, _ := s.Sign(map[string]int{"n": 1})

	tests := []struct {
		name   string
		mutate func(*Envelope)
	}{
		{name: "empty nonce", mutate: func(e *Envelope) { e.Nonce = "" }},
		{name: "empty payload", mutate: func(e *Envelope) { e.Payload = nil }},
		{name: "non-hex signature", mutate: func(e *Envelope) { e.Signature = "zz" }},
		{name: "short signature", mutate: func(e *Envelope) { e.Signature = e.Signature[:10] }},
		{name: "invalid payload", mutate: func(e *Envelope) { e.Payload = []byte(`{"n":`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := good
			tt.mutate(&env)
			res := s.Verify(ctx, env)
			if res.Valid || res.Reason != ReasonMalformed {
				t.Fatalf("expected malformed rejection, got valid=%v reason=%s", res.Valid, res.Reason)
			}
			if res.Err != ErrEnvelopeRejected {
				t.Fatalf("expected generic error, got %v", res.Err)
			}
		})
	}
}

func TestWrongSecretRejected(t *testing.T) {
	a, _ := newTestSigner(t, NewMemoryLedger(0))
	b, err := New(Config{Secret: []byte("another-secret-another-secret-xx"), MaxSkew: DefaultMaxSkew}, NewMemoryLedger(0), nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env, _ := a.Sign(map[string]int{"n": 1})
	env.Timestamp = time.Now().UnixMilli()

	if res := b.Verify(context.Background(), env); res.Reason != ReasonSignature {
		t.Fatalf("expected signature rejection, got %s", res.Reason)
	}
}

type failingLedger struct{}

func (failingLedger) Seen(context.Context, string) (bool, error) {
	return false, errors.New("boom")
}
func (failingLedger) Reserve(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("boom")
}
func (failingLedger) Sweep(context.Context) (int, error) { return 0, nil }

func TestLedgerFailureFailsClosed(t *testing.T) {
	s, _ := newTestSigner(t, failingLedger{})
	env, _ := s.Sign(map[string]int{"n": 1})

	res := s.Verify(context.Background(), env)
	if res.Valid || res.Reason != ReasonUnavailable {
		t.Fatalf("expected unavailable rejection, got valid=%v reason=%s", res.Valid, res.Reason)
	}
}

type recordingLedger struct {
	*MemoryLedger
	lastTTL time.Duration
}

func (l *recordingLedger) Reserve(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	l.lastTTL = ttl
	return l.MemoryLedger.Reserve(ctx, nonce, ttl)
}

func TestNonceTTLCoversFutureDatedEnvelopes(t *testing.T) {
	ledger := &recordingLedger{MemoryLedger: NewMemoryLedger(0)}
	s, clk := newTestSigner(t, ledger)
	ctx := context.Background()

	env, _ := s.Sign(map[string]int{"n": 1})
	if res := s.Verify(ctx, env); !res.Valid {
		t.Fatalf("verify: %s", res.Reason)
	}
	if ledger.lastTTL != DefaultMaxSkew {
		t.Fatalf("expected ttl %v, got %v", DefaultMaxSkew, ledger.lastTTL)
	}

	env, _ = s.Sign(map[string]int{"n": 2})
	clk.Set(clk.Now().Add(-4 * time.Minute))
	if res := s.Verify(ctx, env); !res.Valid {
		t.Fatalf("verify: %s", res.Reason)
	}
	if want := DefaultMaxSkew + 4*time.Minute; ledger.lastTTL != want {
		t.Fatalf("expected ttl %v, got %v", want, ledger.lastTTL)
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(Config{MaxSkew: time.Minute}, NewMemoryLedger(0), nil, zerolog.Nop()); !errors.Is(err, ErrSecretRequired) {
		t.Fatalf("expected ErrSecretRequired, got %v", err)
	}
	if _, err := New(Config{Secret: testSecret, MaxSkew: time.Minute}, nil, nil, zerolog.Nop()); !errors.Is(err, ErrNilLedger) {
		t.Fatalf("expected ErrNilLedger, got %v", err)
	}
	if _, err := New(Config{Secret: testSecret}, NewMemoryLedger(0), nil, zerolog.Nop()); !errors.Is(err, ErrInvalidSkew) {
		t.Fatalf("expected ErrInvalidSkew, got %v", err)
	}
}

func TestMemoryLedgerExpiryAndSweep(t *testing.T) {
	l := NewMemoryLedger(0)
	ctx := context.Background()

	ok, _ := l.Reserve(ctx, "n-1", 20*time.Millisecond)
	if !ok {
		t.Fatal("first reserve must succeed")
	}
	ok, _ = l.Reserve(ctx, "n-1", 20*time.Millisecond)
	if ok {
		t.Fatal("second reserve must fail while held")
	}

	time.Sleep(40 * time.Millisecond)

	if seen, _ := l.Seen(ctx, "n-1"); seen {
		t.Fatal("expired nonce must not be seen")
	}
	removed, _ := l.Sweep(ctx)
	if removed != 1 || l.Len() != 0 {
		t.Fatalf("expected sweep to remove 1 entry, removed=%d len=%d", removed, l.Len())
	}
}

func TestMemoryLedgerLazySweep(t *testing.T) {
	l := NewMemoryLedger(2)
	ctx := context.Background()

	_, _ = l.Reserve(ctx, "old", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, _ = l.Reserve(ctx, "new", time.Minute)

	if l.Len() != 1 {
		t.Fatalf("expected lazy sweep on second reservation, len=%d", l.Len())
	}
}

func newRedisLedgerTest(t *testing.T) (*RedisLedger, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisLedger(rdb, "gg"), mr, func() {
		_ = rdb.Close()
		mr.Close()
	}
}

func TestRedisLedgerSharedAcrossSigners(t *testing.T) {
	ledger, mr, done := newRedisLedgerTest(t)
	defer done()
	ctx := context.Background()

	a, _ := newTestSigner(t, ledger)
	b, _ := newTestSigner(t, ledger)

	env, _ := a.Sign(map[string]string{"op": "transfer"})
	if res := a.Verify(ctx, env); !res.Valid {
		t.Fatalf("verify on a: %s", res.Reason)
	}
	if res := b.Verify(ctx, env); res.Reason != ReasonReplay {
		t.Fatalf("expected replay on second instance, got %s", res.Reason)
	}

	if !mr.Exists("gg:n:" + env.Nonce) {
		t.Fatal("expected nonce key in redis")
	}
	mr.FastForward(DefaultMaxSkew + time.Second)
	if mr.Exists("gg:n:" + env.Nonce) {
		t.Fatal("nonce key must expire after the skew window")
	}
}

func TestRedisLedgerUnavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	ledger := NewRedisLedger(rdb, "gg")
	mr.Close()

	if _, err := ledger.Seen(context.Background(), "x"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
