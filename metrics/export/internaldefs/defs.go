package internaldefs

import (
	goGuard "github.com/MrEthical07/goGuard"
)

// Namespace prefixes every exported metric name.
const Namespace = "goguard"

// BucketCount is the number of latency buckets in every histogram.
const BucketCount = 8

// CounterDef maps an engine counter to its exported name.
type CounterDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// HistogramDef maps an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   goGuard.MetricID
	Name string
	Help string
}

// AuditDropped is exported alongside the engine counters. Its value comes
// from Engine.AuditDropped, not from the snapshot.
var AuditDropped = CounterDef{
	Name: Namespace + "_audit_dropped_total",
	Help: "Audit events dropped under dispatcher backpressure.",
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: goGuard.MetricSessionCreated, Name: Namespace + "_session_created_total", Help: "Sessions created."},
	{ID: goGuard.MetricSessionEvicted, Name: Namespace + "_session_evicted_total", Help: "Sessions evicted to honor the per-user cap."},
	{ID: goGuard.MetricSessionValidated, Name: Namespace + "_session_validated_total", Help: "Successful session validations."},
	{ID: goGuard.MetricSessionNotFound, Name: Namespace + "_session_not_found_total", Help: "Validations of unknown session ids."},
	{ID: goGuard.MetricSessionExpired, Name: Namespace + "_session_expired_total", Help: "Validations of expired sessions."},
	{ID: goGuard.MetricSessionRotated, Name: Namespace + "_session_rotated_total", Help: "Sessions rotated on high fingerprint drift."},
	{ID: goGuard.MetricSessionEscalated, Name: Namespace + "_session_escalated_total", Help: "Sessions escalated to privileged."},
	{ID: goGuard.MetricSessionForcedLogout, Name: Namespace + "_session_forced_logout_total", Help: "Sessions terminated at the rotation limit."},
	{ID: goGuard.MetricRiskMedium, Name: Namespace + "_risk_medium_total", Help: "Validations assessed as medium risk."},
	{ID: goGuard.MetricRiskHigh, Name: Namespace + "_risk_high_total", Help: "Validations assessed as high risk."},
	{ID: goGuard.MetricLogout, Name: Namespace + "_logout_total", Help: "Single-session logouts."},
	{ID: goGuard.MetricLogoutAll, Name: Namespace + "_logout_all_total", Help: "Logout-all operations."},
	{ID: goGuard.MetricEnvelopeSigned, Name: Namespace + "_envelope_signed_total", Help: "Envelopes signed."},
	{ID: goGuard.MetricEnvelopeAccepted, Name: Namespace + "_envelope_accepted_total", Help: "Envelopes that passed verification."},
	{ID: goGuard.MetricEnvelopeMalformed, Name: Namespace + "_envelope_malformed_total", Help: "Envelopes rejected as malformed."},
	{ID: goGuard.MetricEnvelopeClockSkew, Name: Namespace + "_envelope_clock_skew_total", Help: "Envelopes rejected outside the skew window."},
	{ID: goGuard.MetricEnvelopeReplay, Name: Namespace + "_envelope_replay_total", Help: "Envelopes rejected as replays."},
	{ID: goGuard.MetricEnvelopeBadSignature, Name: Namespace + "_envelope_bad_signature_total", Help: "Envelopes with a non-matching signature."},
	{ID: goGuard.MetricEnvelopeUnavailable, Name: Namespace + "_envelope_unavailable_total", Help: "Envelopes rejected because the nonce ledger failed."},
	{ID: goGuard.MetricRateLimitHit, Name: Namespace + "_rate_limit_hit_total", Help: "Rate-limit checks that found a key limited."},
	{ID: goGuard.MetricAttemptFailed, Name: Namespace + "_attempt_failed_total", Help: "Failed authentication attempts recorded."},
	{ID: goGuard.MetricAttemptSucceeded, Name: Namespace + "_attempt_succeeded_total", Help: "Successful authentication attempts recorded."},
	{ID: goGuard.MetricJanitorSweep, Name: Namespace + "_janitor_sweep_total", Help: "Janitor passes."},
	{ID: goGuard.MetricJanitorRemoved, Name: Namespace + "_janitor_removed_total", Help: "Entries removed by the janitor."},
	{ID: goGuard.MetricBackendUnavailable, Name: Namespace + "_backend_unavailable_total", Help: "Operations failed by an unavailable backend."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: goGuard.MetricValidateLatency, Name: Namespace + "_validate_latency_seconds", Help: "Session validation latency."},
	{ID: goGuard.MetricVerifyLatency, Name: Namespace + "_verify_latency_seconds", Help: "Envelope verification latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's
// latency buckets.
var HistogramBounds = [BucketCount]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is HistogramBounds made safe for instrument names.
var HistogramBoundSuffix = [BucketCount]string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// CumulativeBuckets converts raw per-bucket counts into running totals.
// Missing trailing buckets count as zero.
func CumulativeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i := 0; i < BucketCount; i++ {
		if i < len(raw) {
			running += raw[i]
		}
		out[i] = running
	}
	return out
}
