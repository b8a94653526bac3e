package metrics

import (
	"testing"
	"time"
)

func TestIncAndValue(t *testing.T) {
	m := New(Config{Enabled: true})

	m.Inc(MetricCodeIssued)
	m.Inc(MetricCodeIssued)
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricCodeIssued); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if got := m.Value(MetricLoginSuccess); got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}
	if got := m.Value(MetricLoginFailure); got != 0 {
		t.Fatalf("expected untouched counter zero, got %d", got)
	}
}

func TestDisabledMetricsNoOp(t *testing.T) {
	m := New(Config{Enabled: false})

	m.Inc(MetricCodeIssued)
	m.Observe(MetricFlowSessionCheckLatency, 10*time.Millisecond)

	if m.Enabled() {
		t.Fatal("expected disabled")
	}
	if got := m.Value(MetricCodeIssued); got != 0 {
		t.Fatalf("disabled metrics must not record, got %d", got)
	}

	snap := m.SnapshotNow()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("disabled snapshot must be empty, got %+v", snap)
	}
}

func TestNilMetricsSafe(t *testing.T) {
	var m *Metrics

	m.Inc(MetricCodeIssued)
	m.Observe(MetricFlowSessionCheckLatency, time.Millisecond)

	if m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must report disabled")
	}
	if m.Value(MetricCodeIssued) != 0 {
		t.Fatal("nil metrics must read zero")
	}
}

func TestObserveBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatency: true})

	samples := []time.Duration{
		2 * time.Millisecond,   // bucket 0
		8 * time.Millisecond,   // bucket 1
		20 * time.Millisecond,  // bucket 2
		40 * time.Millisecond,  // bucket 3
		80 * time.Millisecond,  // bucket 4
		200 * time.Millisecond, // bucket 5
		400 * time.Millisecond, // bucket 6
		2 * time.Second,        // bucket 7
	}
	for _, d := range samples {
		m.Observe(MetricFlowSessionCheckLatency, d)
	}

	snap := m.SnapshotNow()
	buckets, ok := snap.Histograms[MetricFlowSessionCheckLatency]
	if !ok {
		t.Fatal("expected latency histogram in snapshot")
	}
	for i, count := range buckets {
		if count != 1 {
			t.Fatalf("expected one sample in bucket %d, got %d", i, count)
		}
	}

	// Only the dedicated latency slot accepts observations.
	m.Observe(MetricCodeIssued, time.Millisecond)
	if got := m.Value(MetricCodeIssued); got != 0 {
		t.Fatalf("observation leaked into a counter: %d", got)
	}
}

func TestLatencyDisabledWithoutFlag(t *testing.T) {
	m := New(Config{Enabled: true})

	if m.LatencyEnabled() {
		t.Fatal("latency must require the explicit flag")
	}
	m.Observe(MetricFlowSessionCheckLatency, time.Millisecond)

	snap := m.SnapshotNow()
	if len(snap.Histograms) != 0 {
		t.Fatalf("expected no histograms, got %+v", snap.Histograms)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	m := New(Config{Enabled: true})
	m.Inc(MetricSessionCreated)

	snap := m.SnapshotNow()
	m.Inc(MetricSessionCreated)

	if snap.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("snapshot must not track later writes, got %d", snap.Counters[MetricSessionCreated])
	}
	if m.Value(MetricSessionCreated) != 2 {
		t.Fatalf("expected live value 2, got %d", m.Value(MetricSessionCreated))
	}
}

func TestOutOfRangeIDIgnored(t *testing.T) {
	m := New(Config{Enabled: true})

	m.Inc(MetricIDCount)
	m.Inc(MetricIDCount + 10)

	if got := m.Value(MetricIDCount); got != 0 {
		t.Fatalf("out-of-range id must read zero, got %d", got)
	}
}
