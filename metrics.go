package goGuard

import (
	"sync/atomic"
	"time"
)

// MetricID indexes one engine counter or histogram.
type MetricID uint16

const (
	// MetricSessionCreated counts sessions created.
	MetricSessionCreated MetricID = iota
	// MetricSessionEvicted counts sessions destroyed to honor the per-user cap.
	MetricSessionEvicted
	// MetricSessionValidated counts successful validations, rotated or not.
	MetricSessionValidated
	// MetricSessionNotFound counts validations of unknown ids.
	MetricSessionNotFound
	// MetricSessionExpired counts validations of expired sessions.
	MetricSessionExpired
	// MetricSessionRotated counts rotations forced by high risk.
	MetricSessionRotated
	// MetricSessionEscalated counts privilege escalations.
	MetricSessionEscalated
	// MetricSessionForcedLogout counts sessions destroyed at the rotation limit.
	MetricSessionForcedLogout
	// MetricRiskMedium counts validations assessed as medium risk.
	MetricRiskMedium
	// MetricRiskHigh counts validations assessed as high risk.
	MetricRiskHigh
	// MetricLogout counts single-session logouts.
	MetricLogout
	// MetricLogoutAll counts logout-all operations.
	MetricLogoutAll
	// MetricEnvelopeSigned counts envelopes produced by SignPayload.
	MetricEnvelopeSigned
	// MetricEnvelopeAccepted counts envelopes that passed verification.
	MetricEnvelopeAccepted
	// MetricEnvelopeMalformed counts envelopes rejected as malformed.
	MetricEnvelopeMalformed
	// MetricEnvelopeClockSkew counts envelopes rejected for skew.
	MetricEnvelopeClockSkew
	// MetricEnvelopeReplay counts envelopes rejected as replays.
	MetricEnvelopeReplay
	// MetricEnvelopeBadSignature counts envelopes whose HMAC did not match.
	MetricEnvelopeBadSignature
	// MetricEnvelopeUnavailable counts envelopes rejected because the
	// nonce ledger failed.
	MetricEnvelopeUnavailable
	// MetricRateLimitHit counts checks that found a client key limited.
	MetricRateLimitHit
	// MetricAttemptFailed counts recorded failed attempts.
	MetricAttemptFailed
	// MetricAttemptSucceeded counts recorded successful attempts.
	MetricAttemptSucceeded
	// MetricJanitorSweep counts janitor passes.
	MetricJanitorSweep
	// MetricJanitorRemoved counts entries removed by janitor passes.
	MetricJanitorRemoved
	// MetricBackendUnavailable counts operations that failed on a backend.
	MetricBackendUnavailable
	// MetricValidateLatency is the session validation latency histogram.
	MetricValidateLatency
	// MetricVerifyLatency is the envelope verification latency histogram.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters and latency histograms.
// A nil or disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every metric. Histogram
// buckets are non-cumulative.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether histograms are being recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to counter id.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in histogram id. Only latency metrics accept
// observations.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || !isHistogram(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, every histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 2),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if isHistogram(id) {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for _, id := range []MetricID{MetricValidateLatency, MetricVerifyLatency} {
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func isHistogram(id MetricID) bool {
	return id == MetricValidateLatency || id == MetricVerifyLatency
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
