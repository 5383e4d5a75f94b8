// Command collectbench runs a synthetic connection-pool workload against the
// cache: workers acquire pooled fake connections, a maintenance driver
// collects idle ones on a schedule, and optional pprof/Prometheus endpoints
// expose what happens.
//
// Usage:
//
//	collectbench [--config cache.yaml] [--duration 10s] [--schedule "@every 1s"] ...
package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/IvanBrykalov/recyclecache/config"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "collectbench:", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "collectbench",
		Usage: "exercise batched collection of pooled resources",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML or JSON config file"},
			&cli.IntFlag{Name: "workers", Value: 2 * runtime.GOMAXPROCS(0), Usage: "number of worker goroutines"},
			&cli.DurationFlag{Name: "duration", Value: 10 * time.Second, Usage: "benchmark duration"},
			&cli.IntFlag{Name: "keys", Value: 10_000, Usage: "keyspace size"},
			&cli.FloatFlag{Name: "zipf_s", Value: 1.1, Usage: "Zipf s > 1 (skew)"},
			&cli.Int64Flag{Name: "seed", Value: time.Now().UnixNano(), Usage: "random seed"},
			&cli.DurationFlag{Name: "hold", Value: 50 * time.Microsecond, Usage: "how long a worker holds an acquired connection"},
			&cli.DurationFlag{Name: "close-delay", Value: time.Millisecond, Usage: "simulated close latency"},
			&cli.IntFlag{Name: "max-open", Usage: "collect on Put while this many connections are open (0 = off)"},
			&cli.StringFlag{Name: "schedule", Usage: "maintenance schedule, overrides the config"},
			&cli.StringFlag{Name: "http", Value: ":8080", Usage: "serve Prometheus metrics at addr; empty = disabled"},
			&cli.StringFlag{Name: "pprof", Usage: "serve pprof at addr (e.g. :6060); empty = disabled"},
			&cli.StringFlag{Name: "log-file", Usage: "write logs to a rotated file instead of stderr"},
			&cli.StringFlag{Name: "log-level", Usage: "log level, overrides the config"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Default()
			if path := cmd.String("config"); path != "" {
				var err error
				if cfg, err = config.Load(path); err != nil {
					return err
				}
			}
			if s := cmd.String("schedule"); s != "" {
				cfg.Maintenance.Schedule = s
			}
			if l := cmd.String("log-level"); l != "" {
				cfg.Log.Level = l
			}
			if f := cmd.String("log-file"); f != "" {
				cfg.Log.File = f
			}

			if cmd.Float("zipf_s") <= 1 {
				return fmt.Errorf("--zipf_s must be > 1, got %v", cmd.Float("zipf_s"))
			}

			log, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			return run(ctx, benchConfig{
				cfg:         cfg,
				log:         log,
				workers:     max(1, cmd.Int("workers")),
				duration:    cmd.Duration("duration"),
				keys:        max(1, cmd.Int("keys")),
				zipfS:       cmd.Float("zipf_s"),
				seed:        cmd.Int64("seed"),
				hold:        cmd.Duration("hold"),
				closeDelay:  cmd.Duration("close-delay"),
				maxEntries:  cmd.Int("max-open"),
				metricsAddr: cmd.String("http"),
				pprofAddr:   cmd.String("pprof"),
			})
		},
	}
}

// newLogger builds a logrus logger writing to stderr or a rotated file.
func newLogger(lc config.Log) (*logrus.Logger, error) {
	lvl, err := lc.ParseLevel()
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetLevel(lvl)
	if lc.File != "" {
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetOutput(&lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
		})
	}
	return log, nil
}
