// Package otel exports cache metrics through an OpenTelemetry MeterProvider.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/IvanBrykalov/recyclecache/cache"
)

// Instrument names.
const (
	MetricHits          = "recyclecache.hits"
	MetricMisses        = "recyclecache.misses"
	MetricEvictions     = "recyclecache.evictions"
	MetricCycles        = "recyclecache.collection.cycles"
	MetricSelected      = "recyclecache.collection.selected"
	MetricCloseFailures = "recyclecache.close.failures"
	MetricReadmissions  = "recyclecache.readmissions"
	MetricEntries       = "recyclecache.entries"
)

// Adapter implements cache.Metrics on top of OTel instruments.
// Hooks carry no context, so measurements are recorded against
// context.Background().
type Adapter struct {
	hits, misses, evicts, cycles, closeFailed, readmits metric.Int64Counter
	selected                                            metric.Int64Histogram
	entries                                             metric.Int64Gauge

	attrs  metric.MeasurementOption
	reason map[cache.EvictReason]metric.MeasurementOption
}

// New builds the instruments on mp's "recyclecache" meter. attrs are
// attached to every measurement (e.g. the cache name).
func New(mp metric.MeterProvider, attrs ...attribute.KeyValue) (*Adapter, error) {
	meter := mp.Meter("github.com/IvanBrykalov/recyclecache",
		metric.WithInstrumentationVersion("1.0.0"),
	)
	a := &Adapter{
		attrs:  metric.WithAttributes(attrs...),
		reason: make(map[cache.EvictReason]metric.MeasurementOption),
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&a.hits, MetricHits, "Cache hits", "{lookup}"},
		{&a.misses, MetricMisses, "Cache misses", "{lookup}"},
		{&a.evicts, MetricEvictions, "Entries that left the directory, by reason", "{entry}"},
		{&a.cycles, MetricCycles, "Performed collection cycles", "{cycle}"},
		{&a.closeFailed, MetricCloseFailures, "Resource close/abort errors and panics", "{failure}"},
		{&a.readmits, MetricReadmissions, "Puts of recently collected keys", "{entry}"},
	}
	for _, c := range counters {
		ctr, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit(c.unit))
		if err != nil {
			return nil, err
		}
		*c.dst = ctr
	}

	var err error
	a.selected, err = meter.Int64Histogram(MetricSelected,
		metric.WithDescription("Entries selected per collection cycle"),
		metric.WithUnit("{entry}"),
		metric.WithExplicitBucketBoundaries(1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024),
	)
	if err != nil {
		return nil, err
	}
	a.entries, err = meter.Int64Gauge(MetricEntries,
		metric.WithDescription("Number of resident entries"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	for _, r := range []cache.EvictReason{cache.EvictCollected, cache.EvictDrained, cache.EvictAborted, cache.EvictRemoved} {
		kv := append(append([]attribute.KeyValue(nil), attrs...), attribute.String("reason", r.String()))
		a.reason[r] = metric.WithAttributes(kv...)
	}
	return a, nil
}

func (a *Adapter) Hit()  { a.hits.Add(context.Background(), 1, a.attrs) }
func (a *Adapter) Miss() { a.misses.Add(context.Background(), 1, a.attrs) }

// Evict counts one departure, labeled with its reason.
func (a *Adapter) Evict(r cache.EvictReason) {
	opt, ok := a.reason[r]
	if !ok {
		opt = a.attrs
	}
	a.evicts.Add(context.Background(), 1, opt)
}

// Cycle records one performed collection.
func (a *Adapter) Cycle(selected, _ int) {
	ctx := context.Background()
	a.cycles.Add(ctx, 1, a.attrs)
	a.selected.Record(ctx, int64(selected), a.attrs)
}

func (a *Adapter) CloseFailed() { a.closeFailed.Add(context.Background(), 1, a.attrs) }

func (a *Adapter) Readmit() { a.readmits.Add(context.Background(), 1, a.attrs) }

func (a *Adapter) Size(entries int) {
	a.entries.Record(context.Background(), int64(entries), a.attrs)
}

var _ cache.Metrics = (*Adapter)(nil)
