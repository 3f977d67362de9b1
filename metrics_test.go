package otpAuth

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
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("expected empty snapshot when disabled")
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricOTPRequested)
	m.Observe(MetricHashLatency, time.Millisecond)
	if m.Value(MetricOTPRequested) != 0 || m.Enabled() || m.LatencyEnabled() {
		t.Fatal("nil metrics must be inert")
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
				m.Inc(MetricSessionResolved)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricSessionResolved); got != want {
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
		m.Observe(MetricHashLatency, d)
	}
	// Counters have no histogram.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricHashLatency]
	if len(buckets) != 8 {
		t.Fatalf("expected 8 buckets, got %d", len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if _, ok := snap.Histograms[MetricLoginSuccess]; ok {
		t.Fatal("unexpected histogram for a counter")
	}
}

func TestEngineMetricsFlow(t *testing.T) {
	engine, _ := newTestEngine(t, func(cfg *Config) {
		cfg.Metrics.EnableLatencyHistograms = true
	})
	ctx := clientCtx("192.0.2.60")

	res := mustLogin(t, engine, "metrics@example.com")
	_ = engine.Logout(context.Background(), res.SessionSecret)
	_, _ = engine.RequestOTP(ctx, "metrics@example.com") // cooldown

	snap := engine.MetricsSnapshot()
	checks := map[MetricID]uint64{
		MetricOTPRequested:     1,
		MetricOTPRateLimited:   1,
		MetricRateLimitHit:     1,
		MetricOTPVerifySuccess: 1,
		MetricLoginSuccess:     1,
		MetricSessionCreated:   1,
		MetricTokenIssued:      1,
		MetricSessionRevoked:   1,
		MetricLogout:           1,
	}
	for id, want := range checks {
		if got := snap.Counters[id]; got != want {
			t.Fatalf("metric %d: expected %d, got %d", id, want, got)
		}
	}

	var hashed uint64
	for _, v := range snap.Histograms[MetricHashLatency] {
		hashed += v
	}
	// Two hashes at request, one verify.
	if hashed != 3 {
		t.Fatalf("expected 3 hash observations, got %d", hashed)
	}
}
