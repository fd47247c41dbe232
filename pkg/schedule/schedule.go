package schedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ericvolp12/issues-etl/pkg/pipeline"
	"github.com/robfig/cron/v3"
)

// DefaultSpec runs the pipeline once a day at midnight.
const DefaultSpec = "@daily"

// Runner is a pipeline that refuses to overlap itself.
type Runner interface {
	Name() string
	TryRun(ctx context.Context) (*pipeline.Result, error)
}

type Scheduler struct {
	logger *slog.Logger
	cron   *cron.Cron
	runner Runner

	retries       uint64
	retryInterval time.Duration
}

type Option func(*Scheduler)

// WithRetries sets how many times a failed run is retried before the tick
// is given up on.
func WithRetries(n uint64) Option {
	return func(s *Scheduler) { s.retries = n }
}

func WithRetryInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.retryInterval = d }
}

func New(runner Runner, logger *slog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:        logger.With("module", "schedule", "pipeline", runner.Name()),
		cron:          cron.New(),
		runner:        runner,
		retries:       2,
		retryInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers a run of the pipeline on every tick of the cron
// expression. Runs use ctx, so cancelling it aborts an in-flight run.
func (s *Scheduler) Schedule(ctx context.Context, spec string) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, func() {
		if err := s.RunOnce(ctx); err != nil && !errors.Is(err, pipeline.ErrRunInProgress) {
			s.logger.Error("scheduled run failed", "err", err)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("failed to parse schedule %q: %w", spec, err)
	}
	return id, nil
}

// Next returns the next time the scheduler will fire, or the zero time if
// nothing is scheduled.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if next.IsZero() || (!e.Next.IsZero() && e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.cron.Start()
}

// Stop stops the scheduler and waits for an in-flight run to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce runs the pipeline, retrying failures with exponential backoff up
// to the configured number of retries. A run that finds another run in
// progress is not retried.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	attempt := 0
	op := func() error {
		attempt++
		res, err := s.runner.TryRun(ctx)
		if err != nil {
			if errors.Is(err, pipeline.ErrRunInProgress) {
				runsTotal.WithLabelValues(s.runner.Name(), "overlap").Inc()
				s.logger.Warn("previous run still in progress, skipping tick")
				return backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			runsTotal.WithLabelValues(s.runner.Name(), "failed").Inc()
			s.logger.Warn("run attempt failed", "attempt", attempt, "err", err)
			return err
		}

		runsTotal.WithLabelValues(s.runner.Name(), "succeeded").Inc()
		s.logger.Info("run attempt succeeded", "attempt", attempt, "run_id", res.RunID)
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retryInterval
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, s.retries), ctx)
	return backoff.Retry(op, b)
}
