package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/coder/quartz"
	_ "github.com/joho/godotenv/autoload"

	"telemetry-metrics-service/internal/config"
	"telemetry-metrics-service/internal/db"
	"telemetry-metrics-service/internal/logging"
	"telemetry-metrics-service/internal/seed"
)

type flags struct {
	projects    int
	concurrency int
	seed        uint64
	opts        seed.Options
}

func parseFlags() flags {
	var f flags
	flag.IntVar(&f.projects, "projects", 10, "Projects to generate")
	flag.IntVar(&f.concurrency, "concurrency", 4, "Concurrent project writers")
	flag.Uint64Var(&f.seed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	flag.IntVar(&f.opts.DevicesPerProject, "devices", 200, "Devices per project")
	flag.IntVar(&f.opts.EventsPerDevice, "events", 50, "Events per device")
	flag.IntVar(&f.opts.SessionsPerDevice, "sessions", 5, "Sessions per device")
	flag.IntVar(&f.opts.Days, "days", 31, "Days of history ending today")
	flag.IntVar(&f.opts.NullDevicePercent, "null-device-percent", 5, "Share of events without a device")
	flag.IntVar(&f.opts.OpenSessionPercent, "open-session-percent", 10, "Share of sessions left open")
	flag.Parse()

	if f.concurrency < 1 {
		f.concurrency = 1
	}
	return f
}

type stats struct {
	projects atomic.Int64
	rows     atomic.Int64
	errors   atomic.Int64
}

func main() {
	f := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect db")
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool); err != nil {
		logger.Error().Err(err).Msg("migrate")
		return
	}

	clock := quartz.NewReal()
	writer := seed.NewWriter(pool)
	st := &stats{}

	logCtx, stopLog := context.WithCancel(ctx)
	clock.TickerFunc(logCtx, time.Second, func() error {
		logger.Info().
			Int64("projects", st.projects.Load()).
			Int64("rows", st.rows.Load()).
			Int64("errors", st.errors.Load()).
			Msg("seed progress")
		return nil
	}, "seed")

	logger.Info().Int("projects", f.projects).Int("concurrency", f.concurrency).Uint64("seed", f.seed).Msg("seeding")

	jobs := make(chan uint64, f.projects)
	var wg sync.WaitGroup
	for i := 0; i < f.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stream := range jobs {
				ds := seed.Generate(rand.New(rand.NewPCG(f.seed, stream)), f.opts, clock.Now())
				n, err := writer.Write(ctx, ds)
				if err != nil {
					st.errors.Add(1)
					logger.Error().Err(err).Stringer("project_id", ds.Project.ID).Msg("write project")
					continue
				}
				st.projects.Add(1)
				st.rows.Add(n)
				logger.Debug().
					Stringer("project_id", ds.Project.ID).
					Str("api_key", ds.Project.APIKey).
					Msg("project seeded")
			}
		}()
	}

	for i := 0; i < f.projects; i++ {
		jobs <- uint64(i)
	}
	close(jobs)
	wg.Wait()
	stopLog()

	logger.Info().
		Int64("projects", st.projects.Load()).
		Int64("rows", st.rows.Load()).
		Int64("errors", st.errors.Load()).
		Msg("seed finished")
}
