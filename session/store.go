package session

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goGuard/fingerprint"
	"github.com/MrEthical07/goGuard/risk"
)

var (
	// ErrSessionNotFound is returned when no session has the given id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when the session exists but is past
	// its expiry. The session is destroyed before the error is returned.
	ErrSessionExpired = errors.New("session expired")
	// ErrRotationLimit is returned when a rotation is refused because the
	// session already rotated MaxRotations times. The session is
	// destroyed before the error is returned.
	ErrRotationLimit = errors.New("session rotation limit reached")
	// ErrRedisUnavailable wraps Redis transport and server failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrStoreBusy is returned when an optimistic transaction kept
	// conflicting past the retry budget.
	ErrStoreBusy = errors.New("session store busy")
	// ErrSessionCorrupt is returned when a stored blob cannot be decoded.
	ErrSessionCorrupt = errors.New("session record corrupt")
	// ErrUnsupportedSchema is returned for blobs written by a newer schema.
	ErrUnsupportedSchema = errors.New("unsupported session schema version")
	// ErrUserIDRequired is returned by Create for an empty user id.
	ErrUserIDRequired = errors.New("session user id required")
)

// Defaults for Config.
const (
	DefaultMaxConcurrentSessions = 5
	DefaultPrivilegedTTL         = 30 * time.Minute
	DefaultRegularTTL            = 24 * time.Hour
	DefaultMaxRotations          = 10
	DefaultRotationRiskDecay     = 25
)

// Config controls lifetime and rotation policy.
type Config struct {
	MaxConcurrentSessions int           `mapstructure:"max_concurrent_sessions" yaml:"max_concurrent_sessions"`
	PrivilegedTTL         time.Duration `mapstructure:"privileged_ttl" yaml:"privileged_ttl"`
	RegularTTL            time.Duration `mapstructure:"regular_ttl" yaml:"regular_ttl"`
	MaxRotations          int           `mapstructure:"max_rotations" yaml:"max_rotations"`
	// RotationRiskDecay is subtracted from the stored risk score on each
	// rotation, floored at zero.
	RotationRiskDecay int `mapstructure:"rotation_risk_decay" yaml:"rotation_risk_decay"`
	// ValidationRiskDecay is subtracted from the stored risk score on
	// each low-risk validation. Zero disables it.
	ValidationRiskDecay int `mapstructure:"validation_risk_decay" yaml:"validation_risk_decay"`
}

// DefaultConfig returns the default session policy.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentSessions: DefaultMaxConcurrentSessions,
		PrivilegedTTL:         DefaultPrivilegedTTL,
		RegularTTL:            DefaultRegularTTL,
		MaxRotations:          DefaultMaxRotations,
		RotationRiskDecay:     DefaultRotationRiskDecay,
	}
}

// Validate checks c for values no store can honor.
func (c Config) Validate() error {
	switch {
	case c.MaxConcurrentSessions < 1:
		return errors.New("session.max_concurrent_sessions must be >= 1")
	case c.PrivilegedTTL <= 0:
		return errors.New("session.privileged_ttl must be > 0")
	case c.RegularTTL <= 0:
		return errors.New("session.regular_ttl must be > 0")
	case c.MaxRotations < 0:
		return errors.New("session.max_rotations must be >= 0")
	case c.RotationRiskDecay < 0:
		return errors.New("session.rotation_risk_decay must be >= 0")
	case c.ValidationRiskDecay < 0:
		return errors.New("session.validation_risk_decay must be >= 0")
	}
	return nil
}

func (c Config) ttl(privileged bool) time.Duration {
	if privileged {
		return c.PrivilegedTTL
	}
	return c.RegularTTL
}

func (c Config) maxTTL() time.Duration {
	if c.PrivilegedTTL > c.RegularTTL {
		return c.PrivilegedTTL
	}
	return c.RegularTTL
}

// Result is returned by Validate.
//
// Session is nil unless Outcome is OutcomeValid. When Rotated is true,
// Session carries the new id and PreviousID the destroyed one.
type Result struct {
	Outcome    Outcome
	Session    *Session
	Assessment risk.Assessment
	Rotated    bool
	PreviousID string
}

// Valid reports whether the session was accepted.
func (r Result) Valid() bool {
	return r.Outcome == OutcomeValid
}

// Store persists sessions. Implementations must make Validate, Rotate
// and Escalate atomic with respect to every other operation on the same
// session id.
type Store interface {
	Create(ctx context.Context, userID string, fp fingerprint.Fingerprint, privileged bool) (CreateResult, error)
	Validate(ctx context.Context, id string, fp fingerprint.Fingerprint) (Result, error)
	Rotate(ctx context.Context, id string, fp fingerprint.Fingerprint) (*Session, error)
	Escalate(ctx context.Context, id string, fp fingerprint.Fingerprint) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	ListForUser(ctx context.Context, userID string) ([]*Session, error)
	Destroy(ctx context.Context, id string) error
	DestroyAllForUser(ctx context.Context, userID string) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Sweep(ctx context.Context) (int, error)
}
