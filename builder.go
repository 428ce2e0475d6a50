package goGuard

import (
	"errors"
	"fmt"

	"github.com/MrEthical07/goGuard/clock"
	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/internal/janitor"
	"github.com/MrEthical07/goGuard/ratelimit"
	"github.com/MrEthical07/goGuard/risk"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/signer"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	logger    zerolog.Logger
	auditSink AuditSink
	clock     clock.Clock
	store     session.Store
	limiter   ratelimit.Limiter

	built bool
}

// New returns a Builder holding DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis switches the session store, nonce ledger and rate limiter to
// Redis. Without it every component is in memory.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithLogger sets the engine logger. The default discards everything.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithClock overrides the time source. Tests use clock.Fake.
func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.clock = clk
	return b
}

// WithSessionStore replaces the built-in session store.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.store = store
	return b
}

// WithRateLimiter replaces the built-in rate limiter. It is ignored when
// rate limiting is disabled.
func (b *Builder) WithRateLimiter(limiter ratelimit.Limiter) *Builder {
	b.limiter = limiter
	return b
}

// WithMetricsEnabled toggles metric collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histograms. It has no effect
// unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component. Nothing
// starts running until Engine.Start.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	clk := b.clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := b.logger.With().Str("lib", "goguard").Logger()

	riskEngine, err := risk.NewEngine(cfg.Risk.Weights, cfg.Risk.Thresholds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	e := &Engine{
		config:  cfg,
		clock:   clk,
		logger:  logger,
		risk:    riskEngine,
		metrics: NewMetrics(cfg.Metrics),
	}

	prefix := cfg.Redis.KeyPrefix
	switch {
	case b.store != nil:
		e.sessions = b.store
	case b.redis != nil:
		e.sessions, err = session.NewRedisStore(b.redis, prefix, cfg.Session, riskEngine, clk)
	default:
		e.sessions, err = session.NewMemoryStore(cfg.Session, riskEngine, clk)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if b.redis != nil {
		e.ledger = signer.NewRedisLedger(b.redis, prefix)
	} else {
		e.ledger = signer.NewMemoryLedger(cfg.Signer.LedgerSweepEvery)
	}
	if cfg.Signer.Secret != "" {
		e.signer, err = signer.New(signer.Config{
			Secret:  []byte(cfg.Signer.Secret),
			MaxSkew: cfg.Signer.MaxSkew,
		}, e.ledger, clk, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	} else {
		logger.Warn().Msg("signer secret not set; envelope signing disabled")
	}

	if cfg.RateLimit.Enabled {
		rlCfg := ratelimit.Config{MaxAttempts: cfg.RateLimit.MaxAttempts, Window: cfg.RateLimit.Window}
		switch {
		case b.limiter != nil:
			e.limiter = b.limiter
		case b.redis != nil:
			e.limiter, err = ratelimit.NewRedisLimiter(b.redis, prefix, rlCfg, clk)
		default:
			e.limiter, err = ratelimit.NewMemoryLimiter(rlCfg, clk)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	if cfg.Janitor.Enabled {
		tasks := []janitor.Task{
			{Name: "sessions", Sweep: e.sessions.Sweep},
			{Name: "nonces", Sweep: e.ledger.Sweep},
		}
		if e.limiter != nil {
			tasks = append(tasks, janitor.Task{Name: "rate_limit", Sweep: e.limiter.Sweep})
		}
		e.janitor = janitor.New(cfg.Janitor.Interval, clk, logger, e.onSweep, tasks...)
	}

	e.audit = audit.NewDispatcher(cfg.Audit, b.auditSink, clk.Now)

	b.built = true
	return e, nil
}
