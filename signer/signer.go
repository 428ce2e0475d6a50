package signer

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/MrEthical07/goGuard/clock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultMaxSkew is the default tolerated distance between an envelope
// timestamp and the verifier clock.
const DefaultMaxSkew = 5 * time.Minute

var (
	// ErrEnvelopeRejected is the only error callers see for a failed
	// verification, whatever the underlying reason.
	ErrEnvelopeRejected = errors.New("invalid signature")
	// ErrSecretRequired is returned by New when the HMAC secret is empty.
	ErrSecretRequired = errors.New("signer secret required")
	// ErrNilLedger is returned by New without a nonce ledger.
	ErrNilLedger = errors.New("signer nonce ledger required")
	// ErrInvalidSkew is returned by New for a non-positive max skew.
	ErrInvalidSkew = errors.New("signer max skew must be > 0")
)

// Reason is the internal classification of a rejected envelope. It is
// logged and counted but never returned to remote callers.
type Reason uint8

const (
	// ReasonNone means the envelope was accepted.
	ReasonNone Reason = iota
	// ReasonMalformed covers missing nonce, invalid payload JSON, and
	// badly encoded signatures.
	ReasonMalformed
	// ReasonClockSkew means the timestamp is outside the skew window.
	ReasonClockSkew
	// ReasonReplay means the nonce has already been used.
	ReasonReplay
	// ReasonSignature means the HMAC did not match.
	ReasonSignature
	// ReasonUnavailable means the nonce ledger could not be consulted.
	ReasonUnavailable
)

// String returns the stable lowercase reason name.
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonMalformed:
		return "malformed"
	case ReasonClockSkew:
		return "clock_skew"
	case ReasonReplay:
		return "replay"
	case ReasonSignature:
		return "signature"
	case ReasonUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Envelope is a signed payload. Timestamp is unix milliseconds and
// Signature is lowercase hex.
type Envelope struct {
	Payload   json.RawMessage `json:"payload"`
	Timestamp int64           `json:"timestamp"`
	Nonce     string          `json:"nonce"`
	Signature string          `json:"signature"`
}

// Result is the outcome of Verify. Err is ErrEnvelopeRejected whenever
// Valid is false.
type Result struct {
	Valid  bool
	Err    error
	Reason Reason
	Skew   time.Duration
}

// Config holds signer parameters.
type Config struct {
	Secret  []byte
	MaxSkew time.Duration
}

// Signer signs and verifies envelopes with HMAC-SHA256.
type Signer struct {
	secret  []byte
	maxSkew time.Duration
	ledger  Ledger
	clock   clock.Clock
	logger  zerolog.Logger
}

// New returns a Signer. A nil clk uses the real clock.
func New(cfg Config, ledger Ledger, clk clock.Clock, logger zerolog.Logger) (*Signer, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrSecretRequired
	}
	if ledger == nil {
		return nil, ErrNilLedger
	}
	if cfg.MaxSkew <= 0 {
		return nil, ErrInvalidSkew
	}
	if clk == nil {
		clk = clock.Real()
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	return &Signer{
		secret:  secret,
		maxSkew: cfg.MaxSkew,
		ledger:  ledger,
		clock:   clk,
		logger:  logger.With().Str("component", "signer").Logger(),
	}, nil
}

// MaxSkew returns the configured skew window.
func (s *Signer) MaxSkew() time.Duration {
	return s.maxSkew
}

// Sign canonicalizes payload, stamps it with a fresh nonce and the
// current time, and signs it.
func (s *Signer) Sign(payload any) (Envelope, error) {
	body, err := Canonicalize(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("canonicalize payload: %w", err)
	}

	env := Envelope{
		Payload:   body,
		Timestamp: s.clock.Now().UnixMilli(),
		Nonce:     uuid.NewString(),
	}
	env.Signature = hex.EncodeToString(s.mac(body, env.Timestamp, env.Nonce))
	return env, nil
}

// Verify checks env in this order: well-formedness, clock skew, nonce
// reuse, signature. Only a fully valid envelope consumes its nonce, so a
// forged decoy cannot burn a legitimate nonce.
//
// The accepted window is inclusive: a timestamp exactly MaxSkew away is
// valid.
func (s *Signer) Verify(ctx context.Context, env Envelope) Result {
	nowMillis := s.clock.Now().UnixMilli()
	skew := skewOf(nowMillis, env.Timestamp)

	if env.Nonce == "" || len(env.Payload) == 0 {
		return s.reject(ReasonMalformed, skew, env, nil)
	}
	sig, err := hex.DecodeString(env.Signature)
	if err != nil || len(sig) != sha256.Size {
		return s.reject(ReasonMalformed, skew, env, nil)
	}
	body, err := CanonicalizeJSON(env.Payload)
	if err != nil {
		return s.reject(ReasonMalformed, skew, env, err)
	}

	maxMs := s.maxSkew.Milliseconds()
	if env.Timestamp < nowMillis-maxMs || env.Timestamp > nowMillis+maxMs {
		return s.reject(ReasonClockSkew, skew, env, nil)
	}

	seen, err := s.ledger.Seen(ctx, env.Nonce)
	if err != nil {
		return s.reject(ReasonUnavailable, skew, env, err)
	}
	if seen {
		return s.reject(ReasonReplay, skew, env, nil)
	}

	if !hmac.Equal(s.mac(body, env.Timestamp, env.Nonce), sig) {
		return s.reject(ReasonSignature, skew, env, nil)
	}

	reserved, err := s.ledger.Reserve(ctx, env.Nonce, s.nonceTTL(env.Timestamp, nowMillis))
	if err != nil {
		return s.reject(ReasonUnavailable, skew, env, err)
	}
	if !reserved {
		return s.reject(ReasonReplay, skew, env, nil)
	}

	return Result{Valid: true, Skew: skew}
}

// nonceTTL keeps a nonce until its envelope can no longer pass the skew
// check. For future-dated envelopes that is later than now+maxSkew.
func (s *Signer) nonceTTL(timestamp, nowMillis int64) time.Duration {
	ahead := timestamp - nowMillis
	if ahead <= 0 {
		return s.maxSkew
	}
	if maxMs := s.maxSkew.Milliseconds(); ahead > maxMs {
		ahead = maxMs
	}
	return s.maxSkew + time.Duration(ahead)*time.Millisecond
}

// maxSkewMillis is the largest millisecond distance a Duration can hold.
const maxSkewMillis = int64(math.MaxInt64 / int64(time.Millisecond))

// skewOf returns now minus timestamp, saturating at the Duration range
// instead of wrapping.
func skewOf(nowMillis, timestamp int64) time.Duration {
	switch {
	case timestamp < nowMillis-maxSkewMillis:
		return time.Duration(math.MaxInt64)
	case timestamp > nowMillis+maxSkewMillis:
		return -time.Duration(math.MaxInt64)
	}
	return time.Duration(nowMillis-timestamp) * time.Millisecond
}

func (s *Signer) reject(reason Reason, skew time.Duration, env Envelope, cause error) Result {
	ev := s.logger.Warn()
	if reason == ReasonUnavailable {
		ev = s.logger.Error()
	}
	if cause != nil {
		ev = ev.Err(cause)
	}
	ev.Str("reason", reason.String()).
		Int64("skew_ms", skew.Milliseconds()).
		Str("nonce", shorten(env.Nonce)).
		Msg("envelope rejected")

	return Result{Valid: false, Err: ErrEnvelopeRejected, Reason: reason, Skew: skew}
}

// mac signs the canonical object {"nonce":…,"payload":…,"timestamp":…}.
// body must already be canonical.
func (s *Signer) mac(body []byte, timestamp int64, nonce string) []byte {
	var buf bytes.Buffer
	buf.Grow(len(body) + len(nonce) + 64)
	buf.WriteString(`{"nonce":`)
	_ = writeString(&buf, nonce)
	buf.WriteString(`,"payload":`)
	buf.Write(body)
	buf.WriteString(`,"timestamp":`)
	buf.WriteString(strconv.FormatInt(timestamp, 10))
	buf.WriteByte('}')

	m := hmac.New(sha256.New, s.secret)
	_, _ = m.Write(buf.Bytes())
	return m.Sum(nil)
}

func shorten(v string) string {
	if len(v) <= 8 {
		return v
	}
	return v[:8]
}
