package goGuard

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goGuard/clock"
	"github.com/MrEthical07/goGuard/fingerprint"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/janitor"
	"github.com/MrEthical07/goGuard/ratelimit"
	"github.com/MrEthical07/goGuard/risk"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/signer"
	"github.com/rs/zerolog"
)

// Engine is the facade over session management, request signing and
// rate limiting. It is safe for concurrent use once built.
type Engine struct {
	config Config
	clock  clock.Clock
	logger zerolog.Logger

	risk     *risk.Engine
	sessions session.Store
	ledger   signer.Ledger
	signer   *signer.Signer
	limiter  ratelimit.Limiter
	janitor  *janitor.Janitor
	audit    *audit.Dispatcher
	metrics  *Metrics

	closed atomic.Bool
}

// Start launches the background janitor when it is enabled. It returns
// without blocking; Close stops it.
func (e *Engine) Start(ctx context.Context) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if e.janitor == nil {
		return nil
	}
	return e.janitor.Start(ctx)
}

// Close stops the janitor and drains the audit buffer. Later calls are
// no-ops, and every operation on a closed Engine fails with
// ErrEngineNotReady.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	if e.janitor != nil {
		e.janitor.Stop()
	}
	e.audit.Close()
}

// Config returns a copy of the effective configuration.
func (e *Engine) Config() Config {
	if e == nil {
		return Config{}
	}
	return e.config
}

// Now returns the engine's current time. Middleware uses it so that
// Retry-After agrees with the limiter's clock.
func (e *Engine) Now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock.Now()
}

// SignerEnabled reports whether a signer secret is configured.
func (e *Engine) SignerEnabled() bool {
	return e != nil && e.signer != nil
}

// AuditDropped returns how many audit events were dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current metric values.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Sweep runs one janitor pass synchronously and returns the per-task
// removal counts.
func (e *Engine) Sweep(ctx context.Context) (map[string]int, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.janitor == nil {
		return map[string]int{}, nil
	}
	return e.janitor.RunOnce(ctx), nil
}

func (e *Engine) onSweep(removed map[string]int) {
	e.metricInc(MetricJanitorSweep)
	total := 0
	for _, n := range removed {
		total += n
	}
	e.metrics.Add(MetricJanitorRemoved, uint64(total))
}

func (e *Engine) ready() bool {
	return e != nil && !e.closed.Load()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// fingerprint derives the device fingerprint, ignoring X-Forwarded-For
// unless the deployment trusts it.
func (e *Engine) fingerprint(meta fingerprint.Metadata) fingerprint.Fingerprint {
	if !e.config.Security.TrustForwardedFor {
		meta.ForwardedFor = ""
	}
	return fingerprint.Compute(meta)
}

// backendErr reports an unavailable backend and returns err wrapped so
// callers can match ErrRedisUnavailable.
func (e *Engine) backendErr(ctx context.Context, op string, err error) error {
	if !isUnavailable(err) {
		return err
	}
	e.emitUnavailable(ctx, op, err)
	return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
}
