package goGuard

import (
	"errors"

	"github.com/MrEthical07/goGuard/ratelimit"
	"github.com/MrEthical07/goGuard/session"
	"github.com/MrEthical07/goGuard/signer"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown.
	ErrSessionNotFound = session.ErrSessionNotFound
	// ErrSessionExpired is returned when a session is past its expiry.
	ErrSessionExpired = session.ErrSessionExpired
	// ErrRotationLimit is returned when a session has no rotations left.
	// The session has already been destroyed.
	ErrRotationLimit = session.ErrRotationLimit
	// ErrStoreBusy is returned when the Redis session store could not
	// commit under contention.
	ErrStoreBusy = session.ErrStoreBusy
	// ErrEnvelopeRejected is the single error for every failed envelope
	// verification.
	ErrEnvelopeRejected = signer.ErrEnvelopeRejected
	// ErrSecretRequired is returned when signing is used without a secret.
	ErrSecretRequired = signer.ErrSecretRequired
	// ErrRedisUnavailable wraps backend failures from any Redis-backed
	// component.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrEngineNotReady is returned by methods called on a nil or closed
	// Engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidConfig wraps Config.Validate failures returned by Build.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrRateLimited is returned by middleware helpers when a client key
	// is over its attempt budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrUserIDRequired is returned when creating a session without a user.
	ErrUserIDRequired = session.ErrUserIDRequired
)

// isUnavailable reports whether err is a backend failure from any
// component.
func isUnavailable(err error) bool {
	return errors.Is(err, ErrRedisUnavailable) ||
		errors.Is(err, session.ErrRedisUnavailable) ||
		errors.Is(err, ratelimit.ErrRedisUnavailable) ||
		errors.Is(err, signer.ErrRedisUnavailable)
}
