package goGuard

import (
	"time"

	"github.com/MrEthical07/goGuard/risk"
	"github.com/MrEthical07/goGuard/session"
)

// AuthResult is returned by the session operations of [Engine].
//
// Valid is false for expected failures (unknown, expired, or forcibly
// terminated sessions). When Rotated is true the caller must replace the
// client's session id with SessionID. ReauthRequired means the session
// was destroyed and the client has to authenticate again.
type AuthResult struct {
	Valid   bool
	Outcome session.Outcome

	SessionID         string
	PreviousSessionID string
	Rotated           bool
	ReauthRequired    bool

	UserID     string
	Privileged bool
	ExpiresAt  time.Time

	// Risk and RiskScore describe the drift of this request.
	// StoredRiskScore is the session's accumulated score afterwards.
	Risk            risk.Level
	RiskScore       int
	StoredRiskScore int
	Reasons         []string

	// Evicted lists sessions destroyed by CreateSession to honor the
	// per-user cap.
	Evicted []string
}

// Flagged reports whether the request was assessed as medium risk or
// higher.
func (r *AuthResult) Flagged() bool {
	return r != nil && r.Risk >= risk.LevelMedium
}

func resultFromSession(s *session.Session) *AuthResult {
	return &AuthResult{
		Valid:           true,
		Outcome:         session.OutcomeValid,
		SessionID:       s.ID,
		UserID:          s.UserID,
		Privileged:      s.Privileged,
		ExpiresAt:       s.ExpiresAt,
		StoredRiskScore: s.RiskScore,
	}
}
