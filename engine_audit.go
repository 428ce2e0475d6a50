package goGuard

import (
	"context"
	"errors"
	"strconv"

	"github.com/MrEthical07/goGuard/risk"
	"github.com/MrEthical07/goGuard/signer"
)

const (
	auditEventSessionCreated       = "session_created"
	auditEventSessionEvicted       = "session_evicted"
	auditEventSessionFlagged       = "session_flagged"
	auditEventSessionRotated       = "session_rotated"
	auditEventSessionRotationLimit = "session_rotation_limit"
	auditEventSessionExpired       = "session_expired"
	auditEventSessionEscalated     = "session_escalated"
	auditEventEscalationFailed     = "session_escalation_failed"
	auditEventLogoutSession        = "logout_session"
	auditEventLogoutAll            = "logout_all"
	auditEventEnvelopeRejected     = "envelope_rejected"
	auditEventRateLimitTriggered   = "rate_limit_triggered"
	auditEventBackendUnavailable   = "backend_unavailable"
)

// AuditErrorCode is the stable error label carried by audit events.
type AuditErrorCode string

const (
	auditErrSessionNotFound AuditErrorCode = "session_not_found"
	auditErrSessionExpired  AuditErrorCode = "session_expired"
	auditErrRotationLimit   AuditErrorCode = "rotation_limit"
	auditErrStoreBusy       AuditErrorCode = "store_busy"
	auditErrRateLimited     AuditErrorCode = "rate_limited"
	auditErrInvalidEnvelope AuditErrorCode = "invalid_envelope"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

type auditFields struct {
	userID     string
	sessionID  string
	previousID string
	assessment *risk.Assessment
	metadata   func() map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, err error, f auditFields) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:         e.clock.Now().UTC(),
		EventType:         eventType,
		UserID:            f.userID,
		SessionID:         redactID(f.sessionID),
		PreviousSessionID: redactID(f.previousID),
		IP:                clientIPFromContext(ctx),
		Success:           success,
	}
	if f.assessment != nil {
		event.RiskScore = f.assessment.Score
		event.RiskLevel = f.assessment.Level.String()
		event.Reasons = f.assessment.Reasons
	}
	if f.metadata != nil {
		event.Metadata = f.metadata()
	}
	if requestID := requestIDFromContext(ctx); requestID != "" {
		if event.Metadata == nil {
			event.Metadata = map[string]string{}
		}
		event.Metadata["request_id"] = requestID
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitEnvelopeRejected(ctx context.Context, res signer.Result) {
	e.emitAudit(ctx, auditEventEnvelopeRejected, false, res.Err, auditFields{
		metadata: func() map[string]string {
			return map[string]string{
				"reason":  res.Reason.String(),
				"skew_ms": strconv.FormatInt(res.Skew.Milliseconds(), 10),
			}
		},
	})
}

func (e *Engine) emitRateLimit(ctx context.Context, clientKey string, attempts int) {
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventRateLimitTriggered, false, ErrRateLimited, auditFields{
		metadata: func() map[string]string {
			return map[string]string{
				"client_key": clientKey,
				"attempts":   strconv.Itoa(attempts),
			}
		},
	})
}

func (e *Engine) emitUnavailable(ctx context.Context, op string, err error) {
	e.metricInc(MetricBackendUnavailable)
	e.logger.Error().Err(err).Str("op", op).Msg("backend unavailable")
	e.emitAudit(ctx, auditEventBackendUnavailable, false, err, auditFields{
		metadata: func() map[string]string {
			return map[string]string{"op": op}
		},
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrSessionExpired):
		return auditErrSessionExpired
	case errors.Is(err, ErrRotationLimit):
		return auditErrRotationLimit
	case errors.Is(err, ErrStoreBusy):
		return auditErrStoreBusy
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrEnvelopeRejected):
		return auditErrInvalidEnvelope
	case isUnavailable(err):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}

// redactID keeps enough of an id to correlate log lines without making
// the value usable as a credential.
func redactID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8] + "..."
}
