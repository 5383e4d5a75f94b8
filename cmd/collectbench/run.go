package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/recyclecache/cache"
	"github.com/IvanBrykalov/recyclecache/config"
	"github.com/IvanBrykalov/recyclecache/maintenance"
	pmet "github.com/IvanBrykalov/recyclecache/metrics/prom"
	"github.com/IvanBrykalov/recyclecache/resource"
)

type benchConfig struct {
	cfg config.Config
	log *logrus.Logger

	workers    int
	duration   time.Duration
	keys       int
	zipfS      float64
	seed       int64
	hold       time.Duration
	closeDelay time.Duration
	maxEntries int

	metricsAddr string
	pprofAddr   string
}

// conn stands in for a pooled network connection.
type conn struct {
	delay  time.Duration
	closed *atomic.Int64
}

func (c conn) Close() error {
	time.Sleep(c.delay)
	c.closed.Add(1)
	return nil
}

type handle = *resource.Handle[conn]

type tally struct {
	opened, closed                 atomic.Int64
	acquires, refused, evicts, ops atomic.Int64
}

func run(ctx context.Context, bc benchConfig) error {
	log := bc.log
	serve(log, bc.pprofAddr, "pprof")
	var metrics cache.Metrics
	if bc.metricsAddr != "" {
		metrics = pmet.New(nil, "recyclecache", "bench", nil)
		http.Handle("/metrics", promhttp.Handler())
		serve(log, bc.metricsAddr, "metrics")
	}

	var t tally
	var c cache.Cache[string, handle]
	opt := cache.Options[string, handle]{
		Metrics: metrics,
		Logger:  log,
		Factory: func(_ context.Context, k string) (handle, error) {
			t.opened.Add(1)
			return resource.New(conn{delay: bc.closeDelay, closed: &t.closed},
				resource.WithOnBusy(func() { c.Touch(k) })), nil
		},
	}
	config.ApplyCache(bc.cfg.Cache, &opt)
	if bc.maxEntries > 0 {
		// Runs under the cache's exclusive lock: must not call back into c.
		opt.Pressure = func() bool { return t.opened.Load()-t.closed.Load() >= int64(bc.maxEntries) }
	}
	var err error
	if c, err = cache.New(opt); err != nil {
		return err
	}

	drv, err := maintenance.New(c, bc.cfg.Maintenance.Options(log))
	if err != nil {
		return err
	}
	drv.Start()

	log.WithFields(logrus.Fields{
		"workers":  bc.workers,
		"keys":     bc.keys,
		"duration": bc.duration,
		"schedule": bc.cfg.Maintenance.Schedule,
	}).Info("collectbench: starting")

	start := time.Now()
	wctx, cancel := context.WithTimeout(ctx, bc.duration)
	defer cancel()
	g, wctx := errgroup.WithContext(wctx)
	for w := 0; w < bc.workers; w++ {
		g.Go(func() error { return work(wctx, c, bc, int64(w), &t) })
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	elapsed := time.Since(start)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), bc.cfg.Maintenance.Timeout)
	defer stopCancel()
	if err := drv.Stop(stopCtx); err != nil {
		log.WithError(err).Warn("collectbench: maintenance did not stop in time")
	}
	if err := c.Close(stopCtx); err != nil {
		log.WithError(err).Warn("collectbench: close fell back to abort")
	}

	report(c.Stats(), &t, elapsed, drv)
	if leaked := t.opened.Load() - t.closed.Load(); leaked != 0 {
		return fmt.Errorf("%d connections never closed", leaked)
	}
	return nil
}

// work drives one worker: pick a key, get or dial its connection, hold it
// briefly. A small share of operations evicts and closes explicitly.
func work(ctx context.Context, c cache.Cache[string, handle], bc benchConfig, id int64, t *tally) error {
	r := rand.New(rand.NewSource(bc.seed + id*9973))
	zipf := rand.NewZipf(r, bc.zipfS, 1, uint64(bc.keys-1))

	for ctx.Err() == nil {
		t.ops.Add(1)
		k := "conn:" + strconv.FormatUint(zipf.Uint64(), 10)

		if r.Intn(1000) == 0 {
			if h, ok := c.Evict(k); ok {
				t.evicts.Add(1)
				_ = h.Close()
			}
			continue
		}

		h, err := c.GetOrCreate(ctx, k)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, cache.ErrClosed) {
				return nil
			}
			return err
		}
		if err := h.Acquire(); err != nil {
			// Selected for collection between lookup and use.
			t.refused.Add(1)
			continue
		}
		t.acquires.Add(1)
		if bc.hold > 0 {
			time.Sleep(bc.hold)
		}
		h.Release()
	}
	return nil
}

func report(st cache.Stats, t *tally, elapsed time.Duration, drv *maintenance.Driver) {
	runs, failed := drv.Runs()
	ops := t.ops.Load()
	hitRate := 0.0
	if n := st.Hits + st.Misses; n > 0 {
		hitRate = float64(st.Hits) / float64(n) * 100
	}
	fmt.Printf("ops=%d (%.0f ops/s)  acquires=%d  refused=%d  evicts=%d\n",
		ops, float64(ops)/elapsed.Seconds(), t.acquires.Load(), t.refused.Load(), t.evicts.Load())
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%  readmits=%d\n", st.Hits, st.Misses, hitRate, st.Readmits)
	fmt.Printf("cycles=%d  collected=%d  aborted=%d  close-failures=%d  maintenance runs=%d (timed out %d)\n",
		st.Cycles, st.Collected, st.Aborted, st.CloseFailures, runs, failed)
	fmt.Printf("opened=%d  closed=%d\n", t.opened.Load(), t.closed.Load())
}

func serve(log logrus.FieldLogger, addr, what string) {
	if addr == "" {
		return
	}
	go func() {
		log.WithField("addr", addr).Infof("%s: serving", what)
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.WithError(err).Errorf("%s: server stopped", what)
		}
	}()
}
