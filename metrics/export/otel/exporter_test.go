package otel

import (
	"context"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	estateAuth "github.com/MrEthical07/estateAuth"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot estateAuth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() estateAuth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := estateAuth.MetricsSnapshot{
		Counters:   make(map[estateAuth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[estateAuth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("estate-test")

	src := &fakeSource{
		snapshot: estateAuth.MetricsSnapshot{
			Counters: map[estateAuth.MetricID]uint64{
				estateAuth.MetricLoginSuccess: 3,
			},
			Histograms: map[estateAuth.MetricID][]uint64{
				estateAuth.MetricLoginLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 4,
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	m, ok := findMetric(rm, "estate_login_success_total")
	if !ok {
		t.Fatal("login success counter not collected")
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 || sum.DataPoints[0].Value != 3 {
		t.Fatalf("unexpected login success data: %+v", m.Data)
	}

	m, ok = findMetric(rm, "estate_audit_dropped_total")
	if !ok {
		t.Fatal("audit dropped counter not collected")
	}
	if sum := m.Data.(metricdata.Sum[int64]); sum.DataPoints[0].Value != 4 {
		t.Fatalf("audit dropped = %d", sum.DataPoints[0].Value)
	}

	m, ok = findMetric(rm, "estate_login_latency_seconds_bucket")
	if !ok {
		t.Fatal("latency buckets not collected")
	}
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 8 {
		t.Fatalf("unexpected bucket data: %+v", m.Data)
	}
	for _, dp := range gauge.DataPoints {
		le, _ := dp.Attributes.Value(attribute.Key("le"))
		if le.AsString() == "+Inf" && dp.Value != 8 {
			t.Fatalf("+Inf bucket = %d, want 8", dp.Value)
		}
		if le.AsString() == "0.005" && dp.Value != 1 {
			t.Fatalf("first bucket = %d, want 1", dp.Value)
		}
	}
}

func TestExporterRejectsNilInputs(t *testing.T) {
	_, provider := newReader()
	meter := provider.Meter("estate-test")

	if _, err := NewExporterFromSource(meter, nil); err != ErrNilSource {
		t.Fatalf("nil source: %v", err)
	}
	if _, err := NewExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("nil meter: %v", err)
	}
	if _, err := NewExporter(meter, nil); err != ErrNilSource {
		t.Fatalf("nil engine: %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("estate-test")

	src := &fakeSource{
		snapshot: estateAuth.MetricsSnapshot{
			Counters: map[estateAuth.MetricID]uint64{
				estateAuth.MetricLoginSuccess: 1,
			},
			Histograms: map[estateAuth.MetricID][]uint64{
				estateAuth.MetricLoginLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[estateAuth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
