package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	"github.com/smallbiznis/mealplan/internal/clock"
	"github.com/smallbiznis/mealplan/internal/config"
	ledgerdomain "github.com/smallbiznis/mealplan/internal/ledger/domain"
	"github.com/smallbiznis/mealplan/internal/mealplan/domain"
	"github.com/smallbiznis/mealplan/internal/mealplan/recurrence"
	"github.com/smallbiznis/mealplan/internal/observability/logger"
	"github.com/smallbiznis/mealplan/internal/pricing"
	"github.com/smallbiznis/mealplan/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	CatalogSvc catalogdomain.Service
	LedgerSvc  ledgerdomain.Service
	Policy     *config.PolicyHolder `optional:"true"`
	Clock      clock.Clock          `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	catalogSvc catalogdomain.Service
	ledgerSvc  ledgerdomain.Service
	policy     *config.PolicyHolder
	clock      clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("mealplan.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		catalogSvc: p.CatalogSvc,
		ledgerSvc:  p.LedgerSvc,
		policy:     p.Policy,
		clock:      clk,
	}
}

// Create validates the request, checks the catalog and, when the policy asks
// for it, that the wallet covers one cycle before the plan is stored active.
func (s *Service) Create(ctx context.Context, req domain.CreatePlanRequest) (domain.MealPlan, error) {
	policy := s.policy.Get()
	plan, err := domain.NewMealPlan(req, s.defaults(policy))
	if err != nil {
		return domain.MealPlan{}, err
	}

	now := s.clock.Now()
	first, err := firstDueDate(plan.Schedule.Data(), now)
	if err != nil {
		return domain.MealPlan{}, err
	}

	cost, err := s.cycleCost(ctx, plan.Items, policy)
	if err != nil {
		return domain.MealPlan{}, err
	}
	if policy.RequireFundedOnCreate {
		balance, err := s.ledgerSvc.Balance(ctx, plan.OwnerID)
		if err != nil {
			return domain.MealPlan{}, err
		}
		if balance < cost {
			return domain.MealPlan{}, &ledgerdomain.InsufficientBalanceError{Required: cost, Available: balance}
		}
	}

	plan.ID = s.genID.Generate()
	plan.Active = true
	plan.NextDueDate = &first
	plan.CreatedAt = now
	plan.UpdatedAt = now

	if err := s.repo.Insert(ctx, s.db, &plan); err != nil {
		return domain.MealPlan{}, err
	}

	logger.WithContext(ctx, s.log).Info("meal plan created",
		zap.String("plan_id", plan.ID.String()),
		zap.String("owner_id", plan.OwnerID.String()),
		zap.String("frequency", string(plan.Schedule.Data().Frequency)),
		zap.Time("next_due_date", first),
		zap.Int64("cycle_cost", cost),
	)
	return plan, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdatePlanRequest) (domain.MealPlan, error) {
	current, err := s.load(ctx, req.OwnerID, req.PlanID)
	if err != nil {
		return domain.MealPlan{}, err
	}
	if current.Cancelled() {
		return domain.MealPlan{}, domain.ErrPlanCancelled
	}

	policy := s.policy.Get()
	rebuilt, err := domain.NewMealPlan(req.Apply(current.ToRequest()), s.defaults(policy))
	if err != nil {
		return domain.MealPlan{}, err
	}
	if req.Items != nil {
		if _, err := s.cycleCost(ctx, rebuilt.Items, policy); err != nil {
			return domain.MealPlan{}, err
		}
	}

	now := s.clock.Now()
	updated := current
	updated.VendorID = rebuilt.VendorID
	updated.Name = rebuilt.Name
	updated.Items = rebuilt.Items
	updated.Schedule = rebuilt.Schedule
	updated.DeliveryAddress = rebuilt.DeliveryAddress
	updated.ContactPhone = rebuilt.ContactPhone
	updated.ContactEmail = rebuilt.ContactEmail
	updated.Preferences = rebuilt.Preferences
	updated.MinimumBalance = rebuilt.MinimumBalance
	updated.MaxFailedAttempts = rebuilt.MaxFailedAttempts
	updated.UpdatedAt = now

	if req.Schedule != nil {
		next, err := firstDueDate(rebuilt.Schedule.Data(), now)
		if err != nil {
			return domain.MealPlan{}, err
		}
		updated.NextDueDate = &next
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.LockByID(ctx, tx, updated.ID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrPlanNotFound
		}
		if locked.Cancelled() {
			return domain.ErrPlanCancelled
		}
		// An active plan must stay below its cap or the processor never
		// selects it again.
		if locked.Active && locked.FailedAttempts >= updated.MaxFailedAttempts {
			return fmt.Errorf("%w: plan has %d failed attempts", domain.ErrInvalidMaxFailedAttempts, locked.FailedAttempts)
		}
		if req.Schedule == nil {
			updated.NextDueDate = locked.NextDueDate
		}
		updated.Active = locked.Active
		updated.FailedAttempts = locked.FailedAttempts
		updated.LastProcessedAt = locked.LastProcessedAt
		return s.repo.UpdateDetails(ctx, tx, &updated)
	})
	if err != nil {
		return domain.MealPlan{}, err
	}

	logger.WithContext(ctx, s.log).Info("meal plan updated",
		zap.String("plan_id", updated.ID.String()),
		zap.Bool("schedule_changed", req.Schedule != nil),
	)
	return updated, nil
}

// Pause only flips active; a charge already in flight finishes and the pause
// applies from the next tick.
func (s *Service) Pause(ctx context.Context, ownerID, planID snowflake.ID) (domain.MealPlan, error) {
	plan, err := s.load(ctx, ownerID, planID)
	if err != nil {
		return domain.MealPlan{}, err
	}
	if plan.Cancelled() {
		return domain.MealPlan{}, domain.ErrPlanCancelled
	}
	if !plan.Active {
		return plan, nil
	}

	now := s.clock.Now()
	if err := s.repo.Pause(ctx, s.db, plan.ID, now); err != nil {
		return domain.MealPlan{}, err
	}
	plan.Active = false
	plan.UpdatedAt = now

	logger.WithContext(ctx, s.log).Info("meal plan paused", zap.String("plan_id", plan.ID.String()))
	return plan, nil
}

// Resume reactivates a paused or deactivated plan with a clean failure count.
func (s *Service) Resume(ctx context.Context, ownerID, planID snowflake.ID) (domain.MealPlan, error) {
	plan, err := s.load(ctx, ownerID, planID)
	if err != nil {
		return domain.MealPlan{}, err
	}
	if plan.Cancelled() {
		return domain.MealPlan{}, domain.ErrPlanCancelled
	}

	now := s.clock.Now()
	today := domain.DateOf(now)
	next := plan.DueDateOf()
	if plan.NextDueDate == nil || next.Before(today) {
		first, ok := recurrence.First(plan.Schedule.Data(), today)
		if !ok {
			return domain.MealPlan{}, domain.ErrScheduleExhausted
		}
		next = first
	}

	if err := s.repo.Resume(ctx, s.db, plan.ID, next, now); err != nil {
		return domain.MealPlan{}, err
	}
	plan.Active = true
	plan.FailedAttempts = 0
	plan.NextDueDate = &next
	plan.UpdatedAt = now

	logger.WithContext(ctx, s.log).Info("meal plan resumed",
		zap.String("plan_id", plan.ID.String()),
		zap.Time("next_due_date", next),
	)
	return plan, nil
}

func (s *Service) Cancel(ctx context.Context, ownerID, planID snowflake.ID) (domain.MealPlan, error) {
	plan, err := s.load(ctx, ownerID, planID)
	if err != nil {
		return domain.MealPlan{}, err
	}
	if plan.Cancelled() {
		return plan, nil
	}

	now := s.clock.Now()
	if err := s.repo.Cancel(ctx, s.db, plan.ID, now); err != nil {
		return domain.MealPlan{}, err
	}
	plan.Active = false
	plan.CancelledAt = &now
	plan.UpdatedAt = now

	logger.WithContext(ctx, s.log).Info("meal plan cancelled", zap.String("plan_id", plan.ID.String()))
	return plan, nil
}

func (s *Service) Get(ctx context.Context, ownerID, planID snowflake.ID) (domain.MealPlan, error) {
	return s.load(ctx, ownerID, planID)
}

func (s *Service) ListForOwner(ctx context.Context, req domain.ListPlansRequest) (domain.ListPlansResponse, error) {
	if req.OwnerID == 0 {
		return domain.ListPlansResponse{}, domain.ErrInvalidOwner
	}
	beforeID, err := pagination.DecodeIDCursor(req.PageToken)
	if err != nil {
		return domain.ListPlansResponse{}, err
	}
	limit := pagination.NormalizePageSize(req.PageSize)

	plans, err := s.repo.ListByOwner(ctx, s.db, req.OwnerID, beforeID, limit+1)
	if err != nil {
		return domain.ListPlansResponse{}, err
	}
	page, info := pagination.BuildCursorPageInfo(plans, limit, func(p domain.MealPlan) pagination.Cursor {
		return pagination.Cursor{ID: p.ID.String(), CreatedAt: p.CreatedAt.Format(time.RFC3339)}
	})
	return domain.ListPlansResponse{Plans: page, PageInfo: info}, nil
}

func (s *Service) load(ctx context.Context, ownerID, planID snowflake.ID) (domain.MealPlan, error) {
	if ownerID == 0 {
		return domain.MealPlan{}, domain.ErrInvalidOwner
	}
	plan, err := s.repo.FindByID(ctx, s.db, planID)
	if err != nil {
		return domain.MealPlan{}, err
	}
	if plan == nil || plan.OwnerID != ownerID {
		return domain.MealPlan{}, domain.ErrPlanNotFound
	}
	return *plan, nil
}

// cycleCost prices one delivery the same way the processor will charge it.
func (s *Service) cycleCost(ctx context.Context, items []domain.PlanItem, policy config.Policy) (int64, error) {
	snapshot, err := s.catalogSvc.Snapshot(ctx, items)
	if err != nil {
		return 0, err
	}
	subtotal, err := pricing.Subtotal(items, snapshot)
	if err != nil {
		return 0, err
	}
	return subtotal + policy.ScheduledDeliveryFee + policy.Tax(subtotal), nil
}

func (s *Service) defaults(policy config.Policy) domain.Defaults {
	return domain.Defaults{
		MaxFailedAttempts: policy.DefaultMaxFailedAttempts,
		Country:           policy.DefaultCountry,
	}
}

func firstDueDate(schedule domain.Schedule, now time.Time) (time.Time, error) {
	first, ok := recurrence.First(schedule, now)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %w", domain.ErrInvalidSchedule, domain.ErrScheduleExhausted)
	}
	return first, nil
}
