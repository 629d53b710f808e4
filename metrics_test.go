package emailauth

import (
	"sync"
	"testing"
)

func TestMetricsIncAndGet(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	m.Inc(MetricSendSuccess)
	m.Inc(MetricSendSuccess)
	m.Inc(MetricVerifyInvalidCode)

	if got := m.Get(MetricSendSuccess); got != 2 {
		t.Fatalf("MetricSendSuccess = %d, want 2", got)
	}
	if got := m.Get(MetricVerifyInvalidCode); got != 1 {
		t.Fatalf("MetricVerifyInvalidCode = %d, want 1", got)
	}
	if got := m.Get(MetricVerifySuccess); got != 0 {
		t.Fatalf("MetricVerifySuccess = %d, want 0", got)
	}
}

func TestMetricsDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSendSuccess)
	if got := m.Get(MetricSendSuccess); got != 0 {
		t.Fatalf("disabled metrics must not count, got %d", got)
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricSendSuccess)
	if got := m.Get(MetricSendSuccess); got != 0 {
		t.Fatalf("nil metrics Get = %d", got)
	}
	snap := m.Snapshot()
	for id, v := range snap {
		if v != 0 {
			t.Fatalf("nil snapshot has non-zero counter %d = %d", id, v)
		}
	}
}

func TestMetricsOutOfRangeID(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricID(1000))
	if got := m.Get(MetricID(1000)); got != 0 {
		t.Fatalf("out-of-range Get = %d", got)
	}
}

func TestMetricsConcurrentInc(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 16
	const perWorker = 500

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricVerifySuccess)
			}
		}()
	}
	wg.Wait()

	if got := m.Get(MetricVerifySuccess); got != workers*perWorker {
		t.Fatalf("concurrent count = %d, want %d", got, workers*perWorker)
	}
}

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSendRateLimited)
	m.Inc(MetricStorageUnavailable)
	m.Inc(MetricStorageUnavailable)

	snap := m.Snapshot()
	if snap[MetricSendRateLimited] != 1 || snap[MetricStorageUnavailable] != 2 {
		t.Fatalf("unexpected snapshot: %v", snap)
	}
}
