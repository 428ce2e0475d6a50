package goGuard

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/goGuard/fingerprint"
	"github.com/MrEthical07/goGuard/risk"
	"github.com/MrEthical07/goGuard/session"
)

// CreateSession opens a session for userID bound to the fingerprint of
// meta. Callers create privileged sessions only right after a fresh
// credential check.
func (e *Engine) CreateSession(ctx context.Context, userID string, meta fingerprint.Metadata, privileged bool) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	created, err := e.sessions.Create(ctx, userID, e.fingerprint(meta), privileged)
	if err != nil {
		return nil, e.backendErr(ctx, "create_session", err)
	}
	s := created.Session

	e.metricInc(MetricSessionCreated)
	for _, id := range created.Evicted {
		e.metricInc(MetricSessionEvicted)
		e.emitAudit(ctx, auditEventSessionEvicted, true, nil, auditFields{userID: userID, sessionID: id})
	}
	e.emitAudit(ctx, auditEventSessionCreated, true, nil, auditFields{
		userID:    userID,
		sessionID: s.ID,
		metadata: func() map[string]string {
			return map[string]string{"privileged": strconv.FormatBool(s.Privileged)}
		},
	})

	res := resultFromSession(s)
	res.Evicted = created.Evicted
	return res, nil
}

// ValidateSession checks sessionID against the fingerprint of meta.
//
// The error is non-nil only when a backend failed. Unknown, expired and
// terminated sessions come back with Valid false. High drift rotates the
// session; the caller must then hand SessionID to the client.
func (e *Engine) ValidateSession(ctx context.Context, sessionID string, meta fingerprint.Metadata) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	res, err := e.sessions.Validate(ctx, sessionID, e.fingerprint(meta))
	e.metrics.Observe(MetricValidateLatency, time.Since(start))
	if err != nil {
		return nil, e.backendErr(ctx, "validate_session", err)
	}

	switch res.Outcome {
	case session.OutcomeNotFound:
		e.metricInc(MetricSessionNotFound)
		return &AuthResult{Outcome: res.Outcome}, nil

	case session.OutcomeExpired:
		e.metricInc(MetricSessionExpired)
		e.emitAudit(ctx, auditEventSessionExpired, false, ErrSessionExpired, auditFields{sessionID: sessionID})
		return &AuthResult{Outcome: res.Outcome}, nil

	case session.OutcomeRotationLimit:
		e.metricInc(MetricRiskHigh)
		e.metricInc(MetricSessionForcedLogout)
		e.logger.Warn().
			Str("session", redactID(sessionID)).
			Int("score", res.Assessment.Score).
			Strs("reasons", res.Assessment.Reasons).
			Msg("rotation limit reached; session terminated")
		e.emitAudit(ctx, auditEventSessionRotationLimit, false, ErrRotationLimit, auditFields{
			sessionID:  sessionID,
			assessment: &res.Assessment,
		})
		return &AuthResult{
			Outcome:        res.Outcome,
			ReauthRequired: true,
			Risk:           res.Assessment.Level,
			RiskScore:      res.Assessment.Score,
			Reasons:        res.Assessment.Reasons,
		}, nil
	}

	e.metricInc(MetricSessionValidated)
	out := resultFromSession(res.Session)
	out.Risk = res.Assessment.Level
	out.RiskScore = res.Assessment.Score
	out.Reasons = res.Assessment.Reasons

	switch res.Assessment.Level {
	case risk.LevelMedium:
		e.metricInc(MetricRiskMedium)
		e.emitAudit(ctx, auditEventSessionFlagged, true, nil, auditFields{
			userID:     res.Session.UserID,
			sessionID:  res.Session.ID,
			assessment: &res.Assessment,
		})
	case risk.LevelHigh:
		e.metricInc(MetricRiskHigh)
	}

	if res.Rotated {
		e.metricInc(MetricSessionRotated)
		out.Rotated = true
		out.PreviousSessionID = res.PreviousID
		e.logger.Info().
			Str("user_id", res.Session.UserID).
			Str("previous", redactID(res.PreviousID)).
			Int("score", res.Assessment.Score).
			Int("rotation", res.Session.RotationCount).
			Msg("session rotated on fingerprint drift")
		e.emitAudit(ctx, auditEventSessionRotated, true, nil, auditFields{
			userID:     res.Session.UserID,
			sessionID:  res.Session.ID,
			previousID: res.PreviousID,
			assessment: &res.Assessment,
		})
	}

	return out, nil
}

// EscalateSession grants privilege to sessionID by rotating it into a
// privileged session with the short privileged lifetime. Callers must
// re-verify credentials first. Like ValidateSession, expected failures
// return Valid false and a nil error.
func (e *Engine) EscalateSession(ctx context.Context, sessionID string, meta fingerprint.Metadata) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	s, err := e.sessions.Escalate(ctx, sessionID, e.fingerprint(meta))
	if err != nil {
		out := &AuthResult{}
		switch {
		case errors.Is(err, ErrSessionNotFound):
			out.Outcome = session.OutcomeNotFound
		case errors.Is(err, ErrSessionExpired):
			out.Outcome = session.OutcomeExpired
		case errors.Is(err, ErrRotationLimit):
			e.metricInc(MetricSessionForcedLogout)
			out.Outcome = session.OutcomeRotationLimit
			out.ReauthRequired = true
		default:
			return nil, e.backendErr(ctx, "escalate_session", err)
		}
		e.emitAudit(ctx, auditEventEscalationFailed, false, err, auditFields{sessionID: sessionID})
		return out, nil
	}

	e.metricInc(MetricSessionEscalated)
	e.emitAudit(ctx, auditEventSessionEscalated, true, nil, auditFields{
		userID:     s.UserID,
		sessionID:  s.ID,
		previousID: sessionID,
	})

	out := resultFromSession(s)
	out.Rotated = true
	out.PreviousSessionID = sessionID
	return out, nil
}

// Logout destroys one session. Unknown ids are not an error.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if err := e.sessions.Destroy(ctx, sessionID); err != nil {
		return e.backendErr(ctx, "logout", err)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogoutSession, true, nil, auditFields{sessionID: sessionID})
	return nil
}

// LogoutAll destroys every session of userID and returns how many were
// removed.
func (e *Engine) LogoutAll(ctx context.Context, userID string) (int, error) {
	if !e.ready() {
		return 0, ErrEngineNotReady
	}
	n, err := e.sessions.DestroyAllForUser(ctx, userID)
	if err != nil {
		return 0, e.backendErr(ctx, "logout_all", err)
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, nil, auditFields{
		userID: userID,
		metadata: func() map[string]string {
			return map[string]string{"destroyed": strconv.Itoa(n)}
		},
	})
	return n, nil
}

// SessionStats returns aggregate counts over live sessions.
func (e *Engine) SessionStats(ctx context.Context) (session.Stats, error) {
	if !e.ready() {
		return session.Stats{}, ErrEngineNotReady
	}
	st, err := e.sessions.Stats(ctx)
	if err != nil {
		return session.Stats{}, e.backendErr(ctx, "session_stats", err)
	}
	return st, nil
}

// GetSession returns a session without validating or touching it.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	s, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, e.backendErr(ctx, "get_session", err)
	}
	return s, nil
}

// ListSessions returns the live sessions of userID, most recently used
// first.
func (e *Engine) ListSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	list, err := e.sessions.ListForUser(ctx, userID)
	if err != nil {
		return nil, e.backendErr(ctx, "list_sessions", err)
	}
	return list, nil
}
