package otel

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/IvanBrykalov/racache/cache"
)

func TestNew_NilProvider(t *testing.T) {
	a, err := New(nil)
	if err == nil || a != nil {
		t.Fatalf("New(nil) = %v, %v; want nil, error", a, err)
	}
}

// collect gathers every metric by name.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Failed to collect metrics: %v", err)
	}
	out := make(map[string]metricdata.Metrics)
	for _, sm := range rm.ScopeMetrics {
		if sm.Scope.Name != "test-cache" {
			t.Errorf("unexpected scope %q", sm.Scope.Name)
		}
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func sumOf(t *testing.T, m metricdata.Metrics) map[string]int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", m.Name, m.Data)
	}
	out := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value("cache"); !ok || v.AsString() != "unit" {
			t.Errorf("%s: missing static attribute", m.Name)
		}
		reason, _ := dp.Attributes.Value("reason")
		out[reason.AsString()] += dp.Value
	}
	return out
}

func TestAdapter_CacheTraffic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	m, err := New(provider, WithMeterName("test-cache"), WithAttributes(attribute.String("cache", "unit")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	c, err := cache.New(cache.Options[int, int]{Capacity: 2, Metrics: m})
	if err != nil {
		t.Fatal(err)
	}
	put := func(k int) {
		s, err := c.BeginChange(context.Background(), k)
		if err != nil {
			t.Fatal(err)
		}
		_ = s.SetValue(k)
		s.Close()
	}

	for k := 0; k < 5; k++ { // 3 capacity evictions
		put(k)
	}
	for k := 0; k < 5; k++ { // 2 hits, 3 misses
		if s, ok := c.TryRead(k); ok {
			s.Close()
		}
	}
	c.Remove(4)

	got := collect(t, reader)

	if v := sumOf(t, got["racache_hits_total"])[""]; v != 2 {
		t.Errorf("hits = %d, want 2", v)
	}
	if v := sumOf(t, got["racache_misses_total"])[""]; v != 3 {
		t.Errorf("misses = %d, want 3", v)
	}
	ev := sumOf(t, got["racache_evictions_total"])
	if ev["capacity"] != 3 || ev["removed"] != 1 {
		t.Errorf("evictions = %v", ev)
	}

	gauge, ok := got["racache_size_entries"].Data.(metricdata.Gauge[int64])
	if !ok || len(gauge.DataPoints) != 1 {
		t.Fatalf("size gauge: %#v", got["racache_size_entries"].Data)
	}
	if v := gauge.DataPoints[0].Value; v != 1 {
		t.Errorf("size = %d, want 1", v)
	}

	_ = c.Close()
	ev = sumOf(t, collect(t, reader)["racache_evictions_total"])
	if ev["invalidated"] != 1 {
		t.Errorf("evictions after Close = %v", ev)
	}
}
