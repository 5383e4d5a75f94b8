package otel

import (
	"context"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/IvanBrykalov/recyclecache/cache"
	"github.com/IvanBrykalov/recyclecache/resource"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type handle = *resource.Handle[nopCloser]

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sum(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := agg.(metricdata.Sum[int64])
	require.True(t, ok, "want Sum[int64], got %T", agg)
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestAdapter_RecordsCacheActivity(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := New(provider, attribute.String("cache", "listeners"))
	require.NoError(t, err)

	log := logrus.New()
	log.SetOutput(io.Discard)
	c, err := cache.New(cache.Options[string, handle]{
		QuietWrites: -1,
		Metrics:     m,
		Logger:      log,
	})
	require.NoError(t, err)
	defer c.Shutdown()

	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, c.Put(k, resource.New(nopCloser{})))
	}
	c.Get("d")
	c.Get("zz")
	require.True(t, c.Collect())
	require.NoError(t, c.EndBatchCollect(context.Background()))

	got := collect(t, reader)
	assert.EqualValues(t, 1, sum(t, got[MetricHits]))
	assert.EqualValues(t, 1, sum(t, got[MetricMisses]))
	assert.EqualValues(t, 1, sum(t, got[MetricCycles]))
	assert.EqualValues(t, 1, sum(t, got[MetricEvictions]))
	assert.EqualValues(t, 0, sum(t, got[MetricCloseFailures]))

	g, ok := got[MetricEntries].(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, g.DataPoints, 1)
	assert.EqualValues(t, 3, g.DataPoints[0].Value)

	h, ok := got[MetricSelected].(metricdata.Histogram[int64])
	require.True(t, ok)
	require.Len(t, h.DataPoints, 1)
	assert.EqualValues(t, 1, h.DataPoints[0].Count)

	ev := got[MetricEvictions].(metricdata.Sum[int64])
	reason, ok := ev.DataPoints[0].Attributes.Value("reason")
	require.True(t, ok)
	assert.Equal(t, "collected", reason.AsString())
}
