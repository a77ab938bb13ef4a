package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/clock"
	obsmetrics "github.com/smallbiznis/mealplan/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	jobProcessMealPlans  = "process_meal_plans"
	jobUpcomingReminders = "upcoming_reminders"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Processor *Processor
	Config    Config
}

// Scheduler drives the processor from a ticker. Runs are sequential: the next
// run starts only after the previous one returned.
type Scheduler struct {
	log       *zap.Logger
	cfg       Config
	genID     *snowflake.Node
	clock     clock.Clock
	processor *Processor
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Processor == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:       p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:       p.Config.withDefaults(),
		genID:     p.GenID,
		clock:     p.Clock,
		processor: p.Processor,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context, run *jobRun) error,
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx, run)
	schedMetrics.ObserveJobDuration(name, s.clock.Now().Sub(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// a timed-out sweep resumes on the next run
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce charges due plans and, from the configured reminder hour on,
// sends upcoming delivery reminders.
func (s *Scheduler) RunOnce(parent context.Context) error {
	now := s.clock.Now()

	err := s.runJob(parent, jobProcessMealPlans, s.cfg.BatchSize, s.cfg.ProcessTimeout, func(ctx context.Context, run *jobRun) error {
		result, err := s.processor.Tick(ctx, now)
		run.AddProcessed(result.Scanned)
		for i := 0; i < result.Failed; i++ {
			run.IncError()
		}
		obsmetrics.Scheduler().AddBatchProcessed(jobProcessMealPlans, "meal_plans", result.Scanned)
		return err
	})

	if now.Hour() >= s.cfg.ReminderHour {
		err = errors.Join(err, s.runJob(parent, jobUpcomingReminders, s.cfg.BatchSize, s.cfg.ProcessTimeout, func(ctx context.Context, run *jobRun) error {
			result, err := s.processor.Remind(ctx, now)
			run.AddProcessed(result.Sent)
			obsmetrics.Scheduler().AddBatchProcessed(jobUpcomingReminders, "meal_plans", result.Sent)
			return err
		}))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)
	schedMetrics := obsmetrics.Scheduler()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if runLag := time.Since(nextRun); runLag > 0 {
			schedMetrics.ObserveRunLoopLag(runLag)
		}
		nextRun = time.Now().Add(s.cfg.RunInterval)
	}
}
