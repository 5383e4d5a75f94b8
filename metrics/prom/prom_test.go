package prom

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/recyclecache/cache"
	"github.com/IvanBrykalov/recyclecache/resource"
)

type flakyCloser struct{ err error }

func (f flakyCloser) Close() error { return f.err }

type handle = *resource.Handle[flakyCloser]

func TestAdapter_ExportsCacheActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test", "listeners", nil)

	log, _ := logtest.NewNullLogger()
	c, err := cache.New(cache.Options[string, handle]{
		QuietWrites:  -1,
		GhostEntries: 16,
		Metrics:      m,
		Logger:       log,
	})
	require.NoError(t, err)

	require.NoError(t, c.Put("a", resource.New(flakyCloser{err: errors.New("reset")})))
	for _, k := range []string{"b", "c", "d"} {
		require.NoError(t, c.Put(k, resource.New(flakyCloser{})))
	}
	c.Get("b")
	c.Get("missing")

	require.True(t, c.Collect()) // quota(4) = 1 -> "a", whose close fails
	require.NoError(t, c.EndBatchCollect(context.Background()))
	require.NoError(t, c.Put("a", resource.New(flakyCloser{})))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.closeFailed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.readmits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.evicts.WithLabelValues("collected")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.sizeEnt))

	c.Shutdown()
	assert.Equal(t, 4.0, testutil.ToFloat64(m.evicts.WithLabelValues("aborted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.sizeEnt))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Positive(t, n)
}
