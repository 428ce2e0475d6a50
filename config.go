package goGuard

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/goGuard/internal/audit"
	"github.com/MrEthical07/goGuard/ratelimit"
	"github.com/MrEthical07/goGuard/risk"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/signer"
)

// minProductionSecret is the shortest HMAC secret accepted in
// ProductionMode.
const minProductionSecret = 32

// Config is the full engine configuration. Every field carries
// mapstructure and yaml tags so it can be loaded from a file or the
// environment and printed back.
type Config struct {
	Session   session.Config  `mapstructure:"session" yaml:"session"`
	Risk      RiskConfig      `mapstructure:"risk" yaml:"risk"`
	Signer    SignerConfig    `mapstructure:"signer" yaml:"signer"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
	Janitor   JanitorConfig   `mapstructure:"janitor" yaml:"janitor"`
	Redis     RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Cookie    CookieConfig    `mapstructure:"cookie" yaml:"cookie"`
	Audit     AuditConfig     `mapstructure:"audit" yaml:"audit"`
	Metrics   MetricsConfig   `mapstructure:"metrics" yaml:"metrics"`
	Security  SecurityConfig  `mapstructure:"security" yaml:"security"`
}

// RiskConfig holds drift weights and level thresholds.
type RiskConfig struct {
	Weights    risk.Weights    `mapstructure:"weights" yaml:"weights"`
	Thresholds risk.Thresholds `mapstructure:"thresholds" yaml:"thresholds"`
}

// SignerConfig configures request signing. Secret is the shared HMAC key;
// an empty secret disables SignPayload and VerifyEnvelope outside
// ProductionMode.
type SignerConfig struct {
	Secret  string        `mapstructure:"secret" yaml:"secret"`
	MaxSkew time.Duration `mapstructure:"max_skew" yaml:"max_skew"`
	// LedgerSweepEvery is how many reservations the in-memory nonce
	// ledger accepts between lazy sweeps.
	LedgerSweepEvery int `mapstructure:"ledger_sweep_every" yaml:"ledger_sweep_every"`
}

// RateLimitConfig configures the authentication attempt limiter.
type RateLimitConfig struct {
	Enabled     bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Window      time.Duration `mapstructure:"window" yaml:"window"`
}

// JanitorConfig controls the background sweeper started by Engine.Start.
type JanitorConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// RedisConfig describes the optional Redis backend. The engine only uses
// KeyPrefix; the rest is read by callers that construct the client.
type RedisConfig struct {
	Addr      string `mapstructure:"addr" yaml:"addr"`
	Password  string `mapstructure:"password" yaml:"password"`
	DB        int    `mapstructure:"db" yaml:"db"`
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// CookieConfig controls the session cookie written by middleware.
type CookieConfig struct {
	Name     string `mapstructure:"name" yaml:"name"`
	Path     string `mapstructure:"path" yaml:"path"`
	Domain   string `mapstructure:"domain" yaml:"domain"`
	Secure   bool   `mapstructure:"secure" yaml:"secure"`
	HTTPOnly bool   `mapstructure:"http_only" yaml:"http_only"`
	// SameSite is one of "lax", "strict" or "none".
	SameSite string `mapstructure:"same_site" yaml:"same_site"`
}

// AuditConfig controls the audit dispatcher.
type AuditConfig = audit.Config

// MetricsConfig controls in-process metric collection.
type MetricsConfig struct {
	Enabled                 bool `mapstructure:"enabled" yaml:"enabled"`
	EnableLatencyHistograms bool `mapstructure:"enable_latency_histograms" yaml:"enable_latency_histograms"`
}

// SecurityConfig holds deployment-wide switches.
type SecurityConfig struct {
	// ProductionMode turns configuration weaknesses into Build errors.
	ProductionMode bool `mapstructure:"production_mode" yaml:"production_mode"`
	// TrustForwardedFor makes fingerprints use the right-most
	// X-Forwarded-For entry. Enable only behind a proxy that sets it.
	TrustForwardedFor bool `mapstructure:"trust_forwarded_for" yaml:"trust_forwarded_for"`
}

// DefaultConfig returns the default configuration. The signer secret is
// empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		Session: session.DefaultConfig(),
		Risk: RiskConfig{
			Weights:    risk.DefaultWeights(),
			Thresholds: risk.DefaultThresholds(),
		},
		Signer: SignerConfig{
			MaxSkew:          signer.DefaultMaxSkew,
			LedgerSweepEvery: signer.DefaultLazySweepEvery,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxAttempts: ratelimit.DefaultMaxAttempts,
			Window:      ratelimit.DefaultWindow,
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Interval: time.Minute,
		},
		Redis: RedisConfig{
			KeyPrefix: "goguard",
		},
		Cookie: CookieConfig{
			Name:     "goguard_session",
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
			SameSite: "lax",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

// Validate reports the first configuration error it finds.
func (c *Config) Validate() error {
	// Session
	if err := c.Session.Validate(); err != nil {
		return err
	}

	// Risk
	if _, err := risk.NewEngine(c.Risk.Weights, c.Risk.Thresholds); err != nil {
		return err
	}

	// Signer
	if c.Signer.MaxSkew <= 0 {
		return errors.New("Signer MaxSkew must be > 0")
	}
	if c.Signer.LedgerSweepEvery < 0 {
		return errors.New("Signer LedgerSweepEvery must be >= 0")
	}

	// Rate limit
	if c.RateLimit.Enabled {
		if c.RateLimit.MaxAttempts <= 0 {
			return errors.New("RateLimit MaxAttempts must be > 0")
		}
		if c.RateLimit.Window <= 0 {
			return errors.New("RateLimit Window must be > 0")
		}
	}

	// Janitor
	if c.Janitor.Enabled && c.Janitor.Interval <= 0 {
		return errors.New("Janitor Interval must be > 0 when enabled")
	}

	// Redis
	if c.Redis.KeyPrefix == "" || strings.ContainsAny(c.Redis.KeyPrefix, "*?[] ") {
		return errors.New("Redis KeyPrefix must be non-empty and free of glob characters")
	}

	// Cookie
	if c.Cookie.Name == "" {
		return errors.New("Cookie Name must be set")
	}
	if _, ok := parseSameSite(c.Cookie.SameSite); !ok {
		return errors.New("Cookie SameSite must be 'lax', 'strict' or 'none'")
	}
	if strings.EqualFold(c.Cookie.SameSite, "none") && !c.Cookie.Secure {
		return errors.New("Cookie SameSite=none requires Secure")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	// Production
	if c.Security.ProductionMode {
		if len(c.Signer.Secret) < minProductionSecret {
			return errors.New("ProductionMode requires a Signer Secret of at least 32 bytes")
		}
		if !c.Cookie.Secure {
			return errors.New("ProductionMode requires Cookie Secure")
		}
		if c.Signer.MaxSkew > signer.DefaultMaxSkew {
			return errors.New("ProductionMode requires Signer MaxSkew <= 5m")
		}
		if !c.RateLimit.Enabled {
			return errors.New("ProductionMode requires RateLimit Enabled")
		}
	}

	return nil
}

// SameSiteMode returns the http.SameSite value for the configured mode.
func (c CookieConfig) SameSiteMode() http.SameSite {
	mode, _ := parseSameSite(c.SameSite)
	return mode
}

func parseSameSite(v string) (http.SameSite, bool) {
	switch strings.ToLower(v) {
	case "", "lax":
		return http.SameSiteLaxMode, true
	case "strict":
		return http.SameSiteStrictMode, true
	case "none":
		return http.SameSiteNoneMode, true
	default:
		return http.SameSiteDefaultMode, false
	}
}
