package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	"github.com/smallbiznis/mealplan/internal/clock"
	"github.com/smallbiznis/mealplan/internal/config"
	ledgerdomain "github.com/smallbiznis/mealplan/internal/ledger/domain"
	"github.com/smallbiznis/mealplan/internal/lock"
	plandomain "github.com/smallbiznis/mealplan/internal/mealplan/domain"
	"github.com/smallbiznis/mealplan/internal/notification"
	obsmetrics "github.com/smallbiznis/mealplan/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/mealplan/internal/order/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	leaseKeyProcess = "mealplan:scheduler:process"
	leaseKeyRemind  = "mealplan:scheduler:remind"
)

var (
	ErrInvalidConfig = errors.New("invalid_scheduler_config")
	ErrLeaseHeld     = errors.New("scheduler_lease_held")
)

type ProcessorParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Config     Config
	PlanRepo   plandomain.Repository
	OrderRepo  orderdomain.Repository
	CatalogSvc catalogdomain.Service
	LedgerSvc  ledgerdomain.Service
	Dispatcher *notification.Dispatcher
	Policy     *config.PolicyHolder `optional:"true"`
	Locker     lock.Locker          `optional:"true"`
	ObsMetrics *obsmetrics.Metrics  `optional:"true"`
}

// Processor charges due meal plans and sends upcoming delivery reminders.
type Processor struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	cfg        Config
	planRepo   plandomain.Repository
	orderRepo  orderdomain.Repository
	catalogSvc catalogdomain.Service
	ledgerSvc  ledgerdomain.Service
	dispatcher *notification.Dispatcher
	policy     *config.PolicyHolder
	locker     lock.Locker
	obsMetrics *obsmetrics.Metrics
	tracer     trace.Tracer

	processing sync.Mutex
	reminding  sync.Mutex
}

func NewProcessor(p ProcessorParams) (*Processor, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.PlanRepo == nil ||
		p.OrderRepo == nil || p.CatalogSvc == nil || p.LedgerSvc == nil || p.Dispatcher == nil {
		return nil, ErrInvalidConfig
	}
	policy := p.Policy
	if policy == nil {
		policy = config.NewStaticPolicyHolder(config.DefaultPolicy())
	}
	return &Processor{
		db:         p.DB,
		log:        p.Log.Named("scheduler.processor"),
		genID:      p.GenID,
		clock:      p.Clock,
		cfg:        p.Config.withDefaults(),
		planRepo:   p.PlanRepo,
		orderRepo:  p.OrderRepo,
		catalogSvc: p.CatalogSvc,
		ledgerSvc:  p.LedgerSvc,
		dispatcher: p.Dispatcher,
		policy:     policy,
		locker:     p.Locker,
		obsMetrics: p.ObsMetrics,
		tracer:     otel.Tracer("github.com/smallbiznis/mealplan/internal/scheduler"),
	}, nil
}

// TickResult summarizes one processing sweep.
type TickResult struct {
	Skipped        bool
	Scanned        int
	Charged        int
	AlreadyCharged int
	Failed         int
	Deactivated    int
}

func (r *TickResult) add(outcome planOutcome) {
	r.Scanned++
	switch outcome.kind {
	case obsmetrics.PlanOutcomeCharged:
		r.Charged++
	case obsmetrics.PlanOutcomeAlreadyCharged:
		r.AlreadyCharged++
	case obsmetrics.PlanOutcomeSkipped:
	default:
		r.Failed++
	}
	if outcome.deactivated {
		r.Deactivated++
	}
}

type planOutcome struct {
	kind        string
	deactivated bool
}

// Tick charges every plan due at now. Plans are processed independently: a
// failing plan is recorded and the sweep moves on. A tick that finds another
// tick running, in this process or behind the shared lease, returns a
// skipped result without touching any plan.
func (p *Processor) Tick(ctx context.Context, now time.Time) (TickResult, error) {
	var result TickResult
	if !p.processing.TryLock() {
		obsmetrics.Scheduler().IncSweepSkipped(obsmetrics.SchedulerSweepSkippedReasonInProgress)
		result.Skipped = true
		return result, nil
	}
	defer p.processing.Unlock()

	release, err := p.acquireLease(ctx, leaseKeyProcess)
	if errors.Is(err, ErrLeaseHeld) {
		result.Skipped = true
		return result, nil
	}
	if err != nil {
		return result, err
	}
	defer release()

	now = now.UTC()
	var (
		afterID snowflake.ID
		mu      sync.Mutex
	)
	for {
		lockStart := time.Now()
		plans, err := p.planRepo.ListDue(ctx, p.db, now, afterID, p.cfg.BatchSize)
		obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceDuePlans, time.Since(lockStart))
		if err != nil {
			return result, fmt.Errorf("list due plans: %w", err)
		}
		if len(plans) == 0 {
			break
		}
		afterID = plans[len(plans)-1].ID

		var g errgroup.Group
		g.SetLimit(p.cfg.Workers)
		for _, plan := range plans {
			g.Go(func() error {
				outcome := p.processPlan(ctx, plan, now)
				obsmetrics.Scheduler().IncPlanOutcome(outcome.kind)
				mu.Lock()
				result.add(outcome)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return result, err
		}
		if len(plans) < p.cfg.BatchSize {
			break
		}
	}
	return result, nil
}

func (p *Processor) processPlan(ctx context.Context, plan plandomain.MealPlan, now time.Time) planOutcome {
	ctx = withPlanContext(ctx, plan)
	ctx, span := p.tracer.Start(ctx, "mealplan.process")
	defer span.End()

	charged, err := p.chargeWithRetry(ctx, plan, now)
	switch {
	case err == nil:
		p.afterCharge(ctx, charged)
		return planOutcome{kind: obsmetrics.PlanOutcomeCharged, deactivated: charged.nextDueDate == nil}

	case errors.Is(err, errPlanNotChargeable):
		p.logger(ctx).Debug("mealplan.charge.skipped", zap.Error(err))
		return planOutcome{kind: obsmetrics.PlanOutcomeSkipped}

	case errors.Is(err, ledgerdomain.ErrDuplicateReference):
		advanced, advErr := p.advanceCharged(ctx, plan, now)
		if advErr != nil {
			span.RecordError(advErr)
			p.logPlanError(ctx, "mealplan.advance.failed", plan, advErr)
			return planOutcome{kind: obsmetrics.PlanOutcomeError}
		}
		p.logger(ctx).Info("mealplan.charge.already_recorded",
			zap.String("reference", plandomain.ChargeReference(plan.ID, plan.DueDateOf())),
		)
		return planOutcome{kind: obsmetrics.PlanOutcomeAlreadyCharged, deactivated: advanced != nil && advanced.nextDueDate == nil}
	}

	span.RecordError(err)
	failure := p.recordFailure(ctx, plan, err, now)
	return planOutcome{kind: failure.outcome, deactivated: failure.deactivated}
}

func (p *Processor) acquireLease(ctx context.Context, key string) (func(), error) {
	if p.locker == nil {
		return func() {}, nil
	}
	token, ok, err := p.locker.TryLock(ctx, key, p.cfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire scheduler lease: %w", err)
	}
	if !ok {
		obsmetrics.Scheduler().IncSweepSkipped(obsmetrics.SchedulerSweepSkippedReasonLeaseHeld)
		return nil, ErrLeaseHeld
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := p.locker.Release(releaseCtx, key, token); err != nil {
			p.log.Warn("release scheduler lease", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
