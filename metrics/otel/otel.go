// Package otel records cache metrics with OpenTelemetry instruments.
//
// Usage:
//
//	reader := sdkmetric.NewManualReader() // or a Prometheus/OTLP exporter
//	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
//	m, err := otel.New(provider)
//	...
//	c, err := cache.New(cache.Options[string, []byte]{Capacity: 1 << 16, Metrics: m})
//
// Instruments:
//   - racache_hits_total, racache_misses_total: Int64Counter
//   - racache_evictions_total: Int64Counter with a "reason" attribute
//   - racache_size_entries: Int64Gauge of live entries
package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/IvanBrykalov/racache/cache"
)

// DefaultMeterName is used when no WithMeterName option is given.
const DefaultMeterName = "github.com/IvanBrykalov/racache"

// Adapter implements cache.Metrics on top of an OpenTelemetry meter.
// Safe for concurrent use; recording does not allocate.
type Adapter struct {
	hits      metric.Int64Counter
	misses    metric.Int64Counter
	evictions metric.Int64Counter
	size      metric.Int64Gauge

	static  metric.MeasurementOption
	reasons [3]metric.MeasurementOption // indexed by cache.EvictReason
}

type options struct {
	meterName string
	attrs     []attribute.KeyValue
}

// Option configures the Adapter.
type Option func(*options)

// WithMeterName sets the instrumentation scope name.
func WithMeterName(name string) Option {
	return func(o *options) { o.meterName = name }
}

// WithAttributes adds static attributes to every measurement,
// e.g. to tell several caches apart.
func WithAttributes(kv ...attribute.KeyValue) Option {
	return func(o *options) { o.attrs = append(o.attrs, kv...) }
}

// New creates the instruments on a meter obtained from provider.
func New(provider metric.MeterProvider, opts ...Option) (*Adapter, error) {
	if provider == nil {
		return nil, errors.New("otel: meter provider cannot be nil")
	}
	o := options{meterName: DefaultMeterName}
	for _, opt := range opts {
		opt(&o)
	}
	meter := provider.Meter(o.meterName)

	a := &Adapter{}
	var err error
	if a.hits, err = meter.Int64Counter("racache_hits_total",
		metric.WithDescription("Read sessions opened on a present key")); err != nil {
		return nil, err
	}
	if a.misses, err = meter.Int64Counter("racache_misses_total",
		metric.WithDescription("Reads of an absent key")); err != nil {
		return nil, err
	}
	if a.evictions, err = meter.Int64Counter("racache_evictions_total",
		metric.WithDescription("Entries that left the cache, by reason")); err != nil {
		return nil, err
	}
	if a.size, err = meter.Int64Gauge("racache_size_entries",
		metric.WithDescription("Number of live entries")); err != nil {
		return nil, err
	}

	for _, r := range []cache.EvictReason{cache.EvictCapacity, cache.EvictRemoved, cache.EvictInvalidated} {
		kv := append([]attribute.KeyValue{attribute.String("reason", r.String())}, o.attrs...)
		a.reasons[r] = metric.WithAttributeSet(attribute.NewSet(kv...))
	}
	a.static = metric.WithAttributeSet(attribute.NewSet(o.attrs...))
	return a, nil
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Add(context.Background(), 1, a.static) }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Add(context.Background(), 1, a.static) }

// Evict increments the eviction counter for r.
func (a *Adapter) Evict(r cache.EvictReason) {
	if int(r) < 0 || int(r) >= len(a.reasons) {
		r = cache.EvictCapacity
	}
	a.evictions.Add(context.Background(), 1, a.reasons[r])
}

// Size records the number of live entries.
func (a *Adapter) Size(entries int) {
	a.size.Record(context.Background(), int64(entries), a.static)
}

var _ cache.Metrics = (*Adapter)(nil)
