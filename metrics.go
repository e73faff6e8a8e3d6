package goLogin

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram in the in-process metrics
// system.
type MetricID uint16

const (
	// MetricLoginSuccess counts fully completed logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed password steps.
	MetricLoginFailure
	// MetricLoginBlocked counts risk-evaluator blocks.
	MetricLoginBlocked
	// MetricCaptchaRejected counts missing or invalid captchas.
	MetricCaptchaRejected
	// MetricPasswordExpired counts expired-password rejections.
	MetricPasswordExpired
	// MetricChallengeStarted counts transactions entering a challenge.
	MetricChallengeStarted
	// MetricChallengeSuccess counts verified challenges.
	MetricChallengeSuccess
	// MetricChallengeFailure counts failed challenge attempts.
	MetricChallengeFailure
	// MetricChallengeAttemptsExceeded counts attempts-ceiling rejections.
	MetricChallengeAttemptsExceeded
	// MetricBindingMismatch counts transaction binding rejections.
	MetricBindingMismatch
	// MetricTransactionExpired counts expired-transaction lookups.
	MetricTransactionExpired
	// MetricDeviceVerifyRequired counts new-device challenges.
	MetricDeviceVerifyRequired
	// MetricEnrollStarted counts started MFA enrollments.
	MetricEnrollStarted
	// MetricEnrollCompleted counts confirmed MFA enrollments.
	MetricEnrollCompleted
	// MetricMFADisabled counts MFA removals.
	MetricMFADisabled
	// MetricBackupCodeUsed counts consumed backup codes.
	MetricBackupCodeUsed
	// MetricBackupCodeRegenerated counts regenerated backup codes.
	MetricBackupCodeRegenerated
	// MetricStartLoginLatency is the StartLogin latency histogram.
	MetricStartLoginLatency
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

// Metrics holds lock-free counters and an optional latency histogram.
// Counters sit in cache-line-padded slots; the write path is
// allocation-free.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a Metrics instance. When cfg.Enabled is false all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// Inc atomically increments the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample. Only the StartLogin histogram is
// tracked.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricStartLoginLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot deep-copies all counters and histogram buckets.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricStartLoginLatency].buckets[i])
		}
		s.Histograms[MetricStartLoginLatency] = buckets
	}

	return s
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
