package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coder/quartz"
	"github.com/gofiber/fiber/v2"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"telemetry-metrics-service/internal/config"
	"telemetry-metrics-service/internal/controller"
	"telemetry-metrics-service/internal/db"
	httpserver "telemetry-metrics-service/internal/http"
	"telemetry-metrics-service/internal/logging"
	"telemetry-metrics-service/internal/metrics"
	"telemetry-metrics-service/internal/repository"
	"telemetry-metrics-service/internal/routes"
	"telemetry-metrics-service/internal/service"
	"telemetry-metrics-service/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Prefork children share the parent's schema.
	migrate := !fiber.IsChild()

	repo, closeStore, err := openStore(ctx, cfg, logger, migrate)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}
	defer closeStore()

	clock := quartz.NewReal()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	aggregatorMetrics := metrics.NewAggregator(reg)

	queryService := service.NewMetricQueryService(repo, clock)
	server := httpserver.NewServer(cfg, routes.Handlers{
		Metrics:       controller.NewMetricsController(queryService),
		Health:        controller.NewHealthController(repo, logger),
		Authenticator: queryService,
		Gatherer:      reg,
	})

	tree := supervisor.NewTree(logger, supervisor.DefaultTreeConfig())
	tree.Add(supervisor.NewHTTPService(server, cfg.HTTPPort, 0))

	if cfg.Aggregator.Enabled {
		aggregation := service.NewAggregationService(repo, clock, logger, aggregatorMetrics)
		scheduler := service.NewAggregationScheduler(aggregation.RunPass, service.SchedulerConfig{
			Warmup:     cfg.Aggregator.Warmup,
			Interval:   cfg.Aggregator.Interval,
			Cooldown:   cfg.Aggregator.Cooldown,
			RetryBase:  cfg.Aggregator.RetryBase,
			MaxRetries: uint64(cfg.Aggregator.MaxRetries),
		}, clock, logger, aggregatorMetrics)
		tree.Add(scheduler)
	} else {
		logger.Warn().Msg("metric aggregator disabled")
	}

	logger.Info().Str("addr", cfg.HTTPPort).Str("driver", cfg.StoreDriver).Msg("starting service")
	if err := tree.Serve(ctx); err != nil && ctx.Err() == nil {
		logger.Error().Err(err).Msg("supervisor stopped")
	}
	logger.Info().Msg("service stopped")
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger, migrate bool) (repository.TelemetryRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverClickHouse:
		conn, err := db.NewClickHouse(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if migrate {
			if err := db.RunClickHouseMigrations(ctx, conn); err != nil {
				_ = conn.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return repository.NewClickHouseRepository(conn), func() { _ = conn.Close() }, nil

	default:
		pool, err := db.NewPool(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		if migrate {
			if err := db.RunMigrations(ctx, pool); err != nil {
				pool.Close()
				return nil, nil, fmt.Errorf("migrate: %w", err)
			}
		}
		return repository.NewPostgresRepository(pool), pool.Close, nil
	}
}
