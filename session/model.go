package session

import (
	"time"

	"github.com/MrEthical07/goGuard/fingerprint"
)

// Session is one authenticated client context.
//
// ExpiresAt is absolute: it is fixed when the session is created or
// rotated and is never extended by access. CreatedAt keeps the original
// authentication time across rotations.
type Session struct {
	ID     string
	UserID string

	Fingerprint fingerprint.Fingerprint

	Privileged    bool
	RotationCount int
	RiskScore     int

	CreatedAt      time.Time
	LastAccessedAt time.Time
	RotatedAt      time.Time
	ExpiresAt      time.Time
}

// Expired reports whether now is past ExpiresAt. A session is still
// valid at exactly ExpiresAt.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Clone returns a copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// Outcome classifies a Validate call.
type Outcome uint8

const (
	// OutcomeValid means the session was accepted, possibly after
	// rotation.
	OutcomeValid Outcome = iota
	// OutcomeNotFound means no session has the given id.
	OutcomeNotFound
	// OutcomeExpired means the session had expired and was destroyed.
	OutcomeExpired
	// OutcomeRotationLimit means high risk required a rotation the
	// session had no budget left for; it was destroyed and the client
	// must re-authenticate.
	OutcomeRotationLimit
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeValid:
		return "valid"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeExpired:
		return "expired"
	case OutcomeRotationLimit:
		return "rotation_limit"
	default:
		return "unknown"
	}
}

// CreateResult is returned by Create. Evicted lists the ids destroyed to
// stay under the per-user cap, least recently accessed first.
type CreateResult struct {
	Session *Session
	Evicted []string
}

// Stats are aggregate counts over live sessions.
type Stats struct {
	Total             int     `json:"total"`
	Privileged        int     `json:"privileged"`
	HighRisk          int     `json:"high_risk"`
	Users             int     `json:"users"`
	MeanRotationCount float64 `json:"mean_rotation_count"`
}
