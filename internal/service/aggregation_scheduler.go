package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/coder/quartz"
	"github.com/rs/zerolog"

	"telemetry-metrics-service/internal/metrics"
)

const (
	schedulerName = "metric-aggregator"
	maxRetryDelay = 24 * time.Hour
)

// PassFunc runs one aggregation pass.
type PassFunc func(ctx context.Context) error

// SchedulerConfig controls the cadence of the aggregation loop.
type SchedulerConfig struct {
	Warmup    time.Duration
	Interval  time.Duration
	Cooldown  time.Duration
	RetryBase time.Duration
	// MaxRetries is the number of retries after the first attempt of a pass.
	MaxRetries uint64
}

type AggregationScheduler interface {
	// Run waits for the warm-up delay, then runs passes until ctx is canceled.
	// It always returns ctx's error.
	Run(ctx context.Context) error
	// Serve runs the scheduler under a suture supervisor.
	Serve(ctx context.Context) error
	String() string
}

type aggregationScheduler struct {
	pass    PassFunc
	cfg     SchedulerConfig
	clock   quartz.Clock
	logger  zerolog.Logger
	metrics *metrics.Aggregator
}

// NewAggregationScheduler constructs an AggregationScheduler that drives pass.
func NewAggregationScheduler(pass PassFunc, cfg SchedulerConfig, clock quartz.Clock, logger zerolog.Logger, m *metrics.Aggregator) AggregationScheduler {
	return &aggregationScheduler{
		pass:    pass,
		cfg:     cfg,
		clock:   clock,
		logger:  logger.With().Str("component", schedulerName).Logger(),
		metrics: m,
	}
}

func (s *aggregationScheduler) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("warmup", s.cfg.Warmup).
		Dur("interval", s.cfg.Interval).
		Dur("cooldown", s.cfg.Cooldown).
		Msg("aggregation scheduler started")

	if err := s.wait(ctx, s.cfg.Warmup, "warmup"); err != nil {
		return err
	}

	for {
		next, phase := s.cfg.Interval, "interval"

		if err := s.runWithRetry(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			s.logger.Error().
				Err(err).
				Dur("cooldown", s.cfg.Cooldown).
				Msg("aggregation pass failed after retries")
			next, phase = s.cfg.Cooldown, "cooldown"
		}

		if err := s.wait(ctx, next, phase); err != nil {
			return err
		}
	}
}

func (s *aggregationScheduler) Serve(ctx context.Context) error {
	return s.Run(ctx)
}

func (s *aggregationScheduler) String() string {
	return schedulerName
}

func (s *aggregationScheduler) runWithRetry(ctx context.Context) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := s.pass(ctx)
		if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled)) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, delay time.Duration) {
		s.metrics.Retries.Inc()
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("aggregation pass failed, retrying")
	}

	timer := &clockTimer{clock: s.clock}
	return backoff.RetryNotifyWithTimer(operation, s.retryPolicy(ctx), notify, timer)
}

// retryPolicy doubles the delay from RetryBase on every retry, without jitter.
func (s *aggregationScheduler) retryPolicy(ctx context.Context) backoff.BackOff {
	if s.cfg.MaxRetries == 0 {
		return backoff.WithContext(&backoff.StopBackOff{}, ctx)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = s.cfg.RetryBase
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxInterval = maxRetryDelay
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, s.cfg.MaxRetries), ctx)
}

func (s *aggregationScheduler) wait(ctx context.Context, d time.Duration, phase string) error {
	if d <= 0 {
		return ctx.Err()
	}

	s.logger.Debug().Str("phase", phase).Dur("delay", d).Msg("waiting")

	timer := s.clock.NewTimer(d, "aggregator", phase)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// clockTimer implements backoff.Timer on a quartz.Clock.
type clockTimer struct {
	clock quartz.Clock
	timer *quartz.Timer
}

func (t *clockTimer) Start(d time.Duration) {
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = t.clock.NewTimer(d, "aggregator", "backoff")
}

// Stop may be called before Start.
func (t *clockTimer) Stop() {
	if t.timer != nil {
		t.timer.Stop()
	}
}

func (t *clockTimer) C() <-chan time.Time {
	return t.timer.C
}
