// Package maintenance runs a cache's collection cycles on a schedule.
//
// Each tick performs one partial collection and, if something was
// selected, waits for the batch to finish closing (bounded by a timeout),
// so every collector goroutine is ended before the next cycle begins.
//
//	d, err := maintenance.New(c, maintenance.Options{Schedule: "@every 30s"})
//	if err != nil {
//	    return err
//	}
//	d.Start()
//	defer d.Stop(ctx)
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSchedule = "@every 30s"
	DefaultTimeout  = time.Minute
)

// Collector is the part of cache.Cache the driver uses.
type Collector interface {
	Collect() bool
	EndBatchCollect(ctx context.Context) error
}

// Options configures a Driver.
type Options struct {
	// Schedule is a standard cron expression or descriptor ("@every 30s").
	Schedule string
	// Timeout bounds how long one run waits for its batch.
	Timeout time.Duration
	Logger  logrus.FieldLogger
}

// Result describes one maintenance run.
type Result struct {
	Collected bool
	Elapsed   time.Duration
	Err       error
}

// Driver triggers Collect/EndBatchCollect periodically.
type Driver struct {
	c     Collector
	opt   Options
	cron  *cron.Cron
	runs  atomic.Int64
	fails atomic.Int64

	onRun func(Result) // test hook
}

// New validates opt and prepares the schedule; call Start to begin.
func New(c Collector, opt Options) (*Driver, error) {
	if c == nil {
		return nil, errors.New("maintenance: nil collector")
	}
	if opt.Schedule == "" {
		opt.Schedule = DefaultSchedule
	}
	if opt.Timeout <= 0 {
		opt.Timeout = DefaultTimeout
	}
	if opt.Logger == nil {
		opt.Logger = logrus.StandardLogger()
	}

	d := &Driver{c: c, opt: opt}
	clog := cron.PrintfLogger(opt.Logger)
	d.cron = cron.New(cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	if _, err := d.cron.AddFunc(opt.Schedule, d.tick); err != nil {
		return nil, fmt.Errorf("maintenance: schedule %q: %w", opt.Schedule, err)
	}
	return d, nil
}

// Start runs the schedule in the background.
func (d *Driver) Start() {
	d.opt.Logger.WithField("schedule", d.opt.Schedule).Info("maintenance: started")
	d.cron.Start()
}

// Stop prevents further runs and waits for a running one, or for ctx.
func (d *Driver) Stop(ctx context.Context) error {
	done := d.cron.Stop()
	select {
	case <-done.Done():
		d.opt.Logger.Info("maintenance: stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs one collection and waits for its batch.
func (d *Driver) RunOnce(ctx context.Context) Result {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, d.opt.Timeout)
	defer cancel()

	res := Result{Collected: d.c.Collect()}
	if res.Collected {
		res.Err = d.c.EndBatchCollect(ctx)
	}
	res.Elapsed = time.Since(start)

	d.runs.Add(1)
	log := d.opt.Logger.WithFields(logrus.Fields{
		"collected": res.Collected,
		"elapsed":   res.Elapsed,
	})
	if res.Err != nil {
		d.fails.Add(1)
		log.WithError(res.Err).Warn("maintenance: batch did not finish in time")
	} else {
		log.Debug("maintenance: run")
	}
	if d.onRun != nil {
		d.onRun(res)
	}
	return res
}

// Runs returns the number of completed runs and of runs whose batch timed out.
func (d *Driver) Runs() (total, failed int64) {
	return d.runs.Load(), d.fails.Load()
}

func (d *Driver) tick() { d.RunOnce(context.Background()) }
