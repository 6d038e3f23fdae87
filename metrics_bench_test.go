package estateAuth

import (
	"sync/atomic"
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricSessionValid)
	}
}

func BenchmarkMetricsIncDisabledParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Inc(MetricSessionValid)
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 40 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricLoginLatency, d)
		}
	})
}

type packedBenchmarkMetrics struct {
	counters [metricIDCount]uint64
}

func (m *packedBenchmarkMetrics) Inc(id MetricID) {
	atomic.AddUint64(&m.counters[id], 1)
}

// Every request touches one of the session outcomes; cache lookups follow on agent pages.
var requestPathMetricIDs = [...]MetricID{
	MetricSessionValid,
	MetricSessionAbsent,
	MetricSessionMalformed,
	MetricAgentCacheHit,
	MetricAgentCacheMiss,
	MetricPermissionDenied,
}

type incrementer interface {
	Inc(MetricID)
}

func benchmarkRoundRobin(b *testing.B, m incrementer) {
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(requestPathMetricIDs[idx])
			idx++
			if idx == len(requestPathMetricIDs) {
				idx = 0
			}
		}
	})
}

func BenchmarkMetricsIncMixedParallelPadded(b *testing.B) {
	benchmarkRoundRobin(b, NewMetrics(MetricsConfig{Enabled: true}))
}

func BenchmarkMetricsIncMixedParallelPacked(b *testing.B) {
	benchmarkRoundRobin(b, &packedBenchmarkMetrics{})
}
