package emailauth

import "sync/atomic"

// MetricID identifies one counter tracked by the engine.
type MetricID uint16

const (
	// MetricSendSuccess counts codes generated, stored and delivered.
	MetricSendSuccess MetricID = iota
	// MetricSendRateLimited counts requests rejected inside the rate window.
	MetricSendRateLimited
	// MetricSendDeliveryFailure counts mail-transport failures.
	MetricSendDeliveryFailure
	// MetricVerifySuccess counts successful verifications.
	MetricVerifySuccess
	// MetricVerifyInvalidCode counts mismatched submissions.
	MetricVerifyInvalidCode
	// MetricVerifyNotFound counts submissions against absent or expired codes.
	MetricVerifyNotFound
	// MetricVerifyAttemptsExceeded counts submissions against exhausted codes.
	MetricVerifyAttemptsExceeded
	// MetricStorageUnavailable counts transient backend failures.
	MetricStorageUnavailable
	metricIDCount
)

// Metrics holds in-process atomic counters. A nil or disabled Metrics is
// inert; every method is safe on it.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters, indexed by MetricID.
type MetricsSnapshot [metricIDCount]uint64

// NewMetrics returns a counter set honoring cfg.Enabled.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// Get returns the current value of the counter for id.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot copies all counters at once.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var snap MetricsSnapshot
	if m == nil {
		return snap
	}
	for i := range snap {
		snap[i] = m.counters[i].Load()
	}
	return snap
}
