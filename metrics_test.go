package goGuard

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSessionCreated)

	if got := m.Value(MetricSessionCreated); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	var nilMetrics *Metrics
	nilMetrics.Inc(MetricSessionCreated)
	if nilMetrics.Enabled() {
		t.Fatalf("nil metrics reports enabled")
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSessionCreated)
	m.Inc(MetricSessionCreated)
	m.Add(MetricJanitorRemoved, 7)

	if got := m.Value(MetricSessionCreated); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricJanitorRemoved); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricEnvelopeAccepted)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricEnvelopeAccepted); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		250 * time.Millisecond,
		500 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricVerifyLatency, d)
	}
	// Counters never accept observations.
	m.Observe(MetricSessionCreated, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricVerifyLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Histograms[MetricSessionCreated]; ok {
		t.Fatalf("counter exported as histogram")
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSessionRotated)
	m.Inc(MetricEnvelopeReplay)
	m.Inc(MetricEnvelopeReplay)
	m.Observe(MetricValidateLatency, 2*time.Millisecond)

	snap := m.Snapshot()
	if snap.Counters[MetricSessionRotated] != 1 {
		t.Fatalf("expected MetricSessionRotated=1 got %d", snap.Counters[MetricSessionRotated])
	}
	if snap.Counters[MetricEnvelopeReplay] != 2 {
		t.Fatalf("expected MetricEnvelopeReplay=2 got %d", snap.Counters[MetricEnvelopeReplay])
	}
	if len(snap.Histograms) != 0 {
		t.Fatalf("histograms exported with latency disabled")
	}
}

func BenchmarkMetricsIncParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricSessionValidated)
		}
	})
}
