package session

import (
	"sort"
	"time"

	"github.com/MrEthical07/goGuard/fingerprint"
	"github.com/MrEthical07/goGuard/risk"
)

// The helpers in this file hold the lifecycle rules shared by every
// Store. They never touch storage.

func newSession(id, userID string, fp fingerprint.Fingerprint, privileged bool, now time.Time, cfg Config) *Session {
	return &Session{
		ID:             id,
		UserID:         userID,
		Fingerprint:    fp,
		Privileged:     privileged,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      now.Add(cfg.ttl(privileged)),
	}
}

// applyAssessment records an access and folds the request's drift score
// into the stored risk. The stored score only rises to a higher request
// score; zero drift never raises it.
func applyAssessment(s *Session, a risk.Assessment, now time.Time, cfg Config) {
	s.LastAccessedAt = now
	switch {
	case a.Score > s.RiskScore:
		s.RiskScore = a.Score
	case a.Level == risk.LevelLow && cfg.ValidationRiskDecay > 0:
		s.RiskScore = decay(s.RiskScore, cfg.ValidationRiskDecay)
	}
}

func canRotate(s *Session, cfg Config) bool {
	return s.RotationCount < cfg.MaxRotations
}

// rotated returns the successor of old under newID. Escalation passes
// escalate=true, which grants privilege and the privileged lifetime.
func rotated(old *Session, newID string, fp fingerprint.Fingerprint, escalate bool, now time.Time, cfg Config) *Session {
	privileged := old.Privileged || escalate
	return &Session{
		ID:             newID,
		UserID:         old.UserID,
		Fingerprint:    fp,
		Privileged:     privileged,
		RotationCount:  old.RotationCount + 1,
		RiskScore:      decay(old.RiskScore, cfg.RotationRiskDecay),
		CreatedAt:      old.CreatedAt,
		LastAccessedAt: now,
		RotatedAt:      now,
		ExpiresAt:      now.Add(cfg.ttl(privileged)),
	}
}

func decay(score, by int) int {
	score -= by
	if score < 0 {
		return 0
	}
	return score
}

// lessRecent orders by LastAccessedAt, then CreatedAt, then ID.
func lessRecent(a, b *Session) bool {
	if !a.LastAccessedAt.Equal(b.LastAccessedAt) {
		return a.LastAccessedAt.Before(b.LastAccessedAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// evictionVictims returns the sessions to destroy so that one more fits
// under limit, least recently accessed first. live must hold only
// unexpired sessions of a single user.
func evictionVictims(live []*Session, limit int) []*Session {
	excess := len(live) - limit + 1
	if excess <= 0 {
		return nil
	}
	ordered := append([]*Session(nil), live...)
	sort.Slice(ordered, func(i, j int) bool { return lessRecent(ordered[i], ordered[j]) })
	return ordered[:excess]
}

// sortMostRecentFirst orders sessions for ListForUser.
func sortMostRecentFirst(list []*Session) {
	sort.Slice(list, func(i, j int) bool { return lessRecent(list[j], list[i]) })
}

type statsAccumulator struct {
	highThreshold int
	stats         Stats
	rotations     int
	users         map[string]struct{}
}

func newStatsAccumulator(highThreshold int) *statsAccumulator {
	return &statsAccumulator{highThreshold: highThreshold, users: make(map[string]struct{})}
}

func (a *statsAccumulator) add(s *Session) {
	a.stats.Total++
	if s.Privileged {
		a.stats.Privileged++
	}
	if s.RiskScore > a.highThreshold {
		a.stats.HighRisk++
	}
	a.rotations += s.RotationCount
	a.users[s.UserID] = struct{}{}
}

func (a *statsAccumulator) result() Stats {
	out := a.stats
	out.Users = len(a.users)
	if out.Total > 0 {
		out.MeanRotationCount = float64(a.rotations) / float64(out.Total)
	}
	return out
}
