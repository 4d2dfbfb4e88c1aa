package fastauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	MetricRegisterSuccess MetricID = iota
	MetricRegisterDuplicate
	MetricRegisterFailure
	MetricLoginSuccess
	MetricLoginFailure
	MetricPasswordHashUpgraded
	MetricRefreshSuccess
	MetricRefreshInvalid
	MetricRefreshExpired
	MetricRefreshFailure
	MetricTokensIssued
	MetricLogout
	MetricLogoutAll
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricPasswordChangeReuseRejected
	MetricPasswordChangeFailure
	MetricValidateSuccess
	MetricValidateInvalid
	MetricValidateExpired
	// MetricValidateLatency is the only histogram; its counter stays zero.
	MetricValidateLatency
	metricIDCount
)

// MetricIDCount is the number of defined MetricIDs. Exporters iterate
// [0, MetricIDCount).
const MetricIDCount = int(metricIDCount)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

// latencyBounds are inclusive upper bounds; the last bucket is +Inf.
var latencyBounds = [histBucketCount - 1]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

type latencyHistogram struct {
	buckets  [histBucketCount]uint64
	sumNanos uint64
}

// paddedCounter keeps hot counters on separate cache lines.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus the validation latency
// histogram.
type Metrics struct {
	enabled         bool
	enableLatency   bool
	counters        [metricIDCount]paddedCounter
	validateLatency latencyHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters. Histograms maps
// MetricValidateLatency to per-bucket (non-cumulative) counts when latency
// histograms are enabled, and ValidateLatencySum holds the total observed
// time.
type MetricsSnapshot struct {
	Counters           map[MetricID]uint64
	Histograms         map[MetricID][]uint64
	ValidateLatencySum time.Duration
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d for MetricValidateLatency. Other ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enableLatency || id != MetricValidateLatency {
		return
	}
	if d < 0 {
		d = 0
	}
	atomic.AddUint64(&m.validateLatency.buckets[bucketIndex(d)], 1)
	atomic.AddUint64(&m.validateLatency.sumNanos, uint64(d))
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if m == nil || !m.enabled {
		return s
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.validateLatency.buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
		s.ValidateLatencySum = time.Duration(atomic.LoadUint64(&m.validateLatency.sumNanos))
	}
	return s
}

func bucketIndex(d time.Duration) int {
	for i, bound := range latencyBounds {
		if d <= bound {
			return i
		}
	}
	return histBucketCount - 1
}
