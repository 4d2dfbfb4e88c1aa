package fastauth

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 3 {
		t.Fatalf("expected 3, got %d", got)
	}
}

func TestMetricsOutOfRangeIgnored(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricID(MetricIDCount + 5))
	if got := m.Value(MetricID(MetricIDCount + 5)); got != 0 {
		t.Fatalf("expected 0, got %d", got)
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
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRefreshSuccess); got != want {
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
		m.Observe(MetricValidateLatency, d)
	}

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricValidateLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}

	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
}

func TestMetricsObserveIgnoresCounters(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("counter ids must not get histograms")
	}
	for _, v := range snap.Histograms[MetricValidateLatency] {
		if v != 0 {
			t.Fatalf("unexpected observation %v", snap.Histograms[MetricValidateLatency])
		}
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginFailure)
	m.Inc(MetricLoginFailure)
	m.Observe(MetricValidateLatency, 2*time.Millisecond)

	snap := m.Snapshot()

	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("expected MetricLoginSuccess=1 got %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricLoginFailure] != 2 {
		t.Fatalf("expected MetricLoginFailure=2 got %d", snap.Counters[MetricLoginFailure])
	}
	if len(snap.Counters) != MetricIDCount {
		t.Fatalf("expected %d counters, got %d", MetricIDCount, len(snap.Counters))
	}
	if len(snap.Histograms[MetricValidateLatency]) != 8 {
		t.Fatalf("expected histogram length 8")
	}
	if snap.Histograms[MetricValidateLatency][0] != 1 {
		t.Fatalf("expected first histogram bucket=1 got %d", snap.Histograms[MetricValidateLatency][0])
	}
}

func TestValidateRecordsLatency(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.EnableLatencyHistograms = true
	engine, _ := newTestEngine(t, cfg)
	reg := registerAlice(t, engine)

	for i := 0; i < 3; i++ {
		if _, err := engine.ValidateAccessToken(context.Background(), reg.AccessToken); err != nil {
			t.Fatalf("validate: %v", err)
		}
	}

	var total uint64
	for _, v := range engine.MetricsSnapshot().Histograms[MetricValidateLatency] {
		total += v
	}
	if total != 3 {
		t.Fatalf("expected 3 latency observations, got %d", total)
	}
}

func TestValidateWithMetricsStillAvoidsStoreCalls(t *testing.T) {
	cfg := testConfig()
	engine, ms := newTestEngine(t, cfg)
	reg := registerAlice(t, engine)

	counting := &countingUserStore{UserStore: ms}
	validator, err := New().WithConfig(cfg).WithUserStore(counting).WithRefreshTokenStore(ms).Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer validator.Close()

	if _, err := validator.ValidateAccessToken(context.Background(), reg.AccessToken); err != nil {
		t.Fatalf("validate failed: %v", err)
	}
	if n := counting.calls.Load(); n != 0 {
		t.Fatalf("expected validate to avoid store calls, got %d", n)
	}
}

func TestMetricsLatencyBoundsAndSum(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(MetricValidateLatency, 5*time.Millisecond+time.Nanosecond)
	m.Observe(MetricValidateLatency, 3*time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricValidateLatency]
	if buckets[0] != 1 || buckets[1] != 1 {
		t.Fatalf("buckets = %v, want one in each of the first two", buckets)
	}
	if want := 8*time.Millisecond + time.Nanosecond; snap.ValidateLatencySum != want {
		t.Fatalf("sum = %v, want %v", snap.ValidateLatencySum, want)
	}

	off := NewMetrics(MetricsConfig{Enabled: true})
	off.Observe(MetricValidateLatency, time.Second)
	if s := off.Snapshot(); s.ValidateLatencySum != 0 || len(s.Histograms) != 0 {
		t.Fatalf("latency recorded while disabled: %+v", s)
	}
}
