package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	ledgerdomain "github.com/smallbiznis/mealplan/internal/ledger/domain"
	plandomain "github.com/smallbiznis/mealplan/internal/mealplan/domain"
	"github.com/smallbiznis/mealplan/internal/mealplan/recurrence"
	"github.com/smallbiznis/mealplan/internal/notification"
	obsmetrics "github.com/smallbiznis/mealplan/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/mealplan/internal/order/domain"
	orderservice "github.com/smallbiznis/mealplan/internal/order/service"
	"github.com/smallbiznis/mealplan/internal/pricing"
	"github.com/smallbiznis/mealplan/internal/scheduler/guard"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errPlanNotChargeable marks a plan that stopped being due between listing
// and locking: paused, advanced, or locked by another worker.
var errPlanNotChargeable = errors.New("plan_not_chargeable")

type chargeResult struct {
	plan        plandomain.MealPlan
	order       orderdomain.Order
	balance     int64
	nextDueDate *time.Time
}

func (p *Processor) chargeWithRetry(ctx context.Context, plan plandomain.MealPlan, now time.Time) (*chargeResult, error) {
	var err error
	for attempt := 1; attempt <= p.cfg.ConflictRetry; attempt++ {
		var res *chargeResult
		res, err = p.charge(ctx, plan, now)
		if !errors.Is(err, ledgerdomain.ErrLedgerConflict) {
			return res, err
		}
		p.logger(ctx).Warn("mealplan.charge.conflict", zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil, err
}

// charge prices the plan against the current catalog and, in one
// transaction, debits the wallet, inserts the order and advances the plan.
// Nothing is persisted when any step fails.
func (p *Processor) charge(ctx context.Context, plan plandomain.MealPlan, now time.Time) (*chargeResult, error) {
	due := plan.DueDateOf()
	draft, err := p.draftFor(ctx, plan, due)
	if err != nil {
		return nil, err
	}

	orderID := p.genID.Generate()
	reference := plandomain.ChargeReference(plan.ID, due)
	res := &chargeResult{}

	err = p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockStart := time.Now()
		locked, err := p.planRepo.LockDue(ctx, tx, plan.ID, now)
		obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourcePlanByID, time.Since(lockStart))
		if err != nil {
			return err
		}
		if locked == nil {
			return errPlanNotChargeable
		}
		if err := guard.EnsurePlanChargeable(*locked, due, now); err != nil {
			return fmt.Errorf("%w: %w", errPlanNotChargeable, err)
		}

		debit, err := p.ledgerSvc.DebitTx(ctx, tx, ledgerdomain.DebitRequest{
			OwnerID:        locked.OwnerID,
			Amount:         draft.Total,
			Reference:      reference,
			RelatedOrderID: &orderID,
			Description:    "Meal plan " + locked.Name + " for " + due.Format(time.DateOnly),
		})
		if err != nil {
			return err
		}

		draft.MarkPaid(reference, uuid.NewString())
		order := draft.Build(orderID, orderdomain.OrderStatusConfirmed, now)
		if err := p.orderRepo.Insert(ctx, tx, &order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		next := nextDueDate(locked.Schedule.Data(), due, now)
		if err := p.planRepo.RecordSuccess(ctx, tx, locked.ID, next, now); err != nil {
			return fmt.Errorf("advance plan: %w", err)
		}

		res.plan = *locked
		res.order = order
		res.balance = debit.NewBalance
		res.nextDueDate = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// draftFor snapshots the catalog and prices the plan's items. It runs
// before the charge transaction so catalog reads never hold plan locks.
func (p *Processor) draftFor(ctx context.Context, plan plandomain.MealPlan, due time.Time) (orderdomain.Draft, error) {
	items := []plandomain.PlanItem(plan.Items)
	snapshot, err := p.catalogSvc.Snapshot(ctx, items)
	if err != nil {
		return orderdomain.Draft{}, err
	}
	subtotal, err := pricing.Subtotal(items, snapshot)
	if err != nil {
		return orderdomain.Draft{}, err
	}

	policy := p.policy.Get()
	schedule := plan.Schedule.Data()
	scheduledFor := schedule.DeliveryAt(due)
	planID := plan.ID
	return orderservice.Materialize(orderdomain.MaterializeInput{
		OwnerID:         plan.OwnerID,
		VendorID:        plan.VendorID,
		MealPlanID:      &planID,
		Source:          orderdomain.OrderSourceMealPlan,
		Items:           items,
		DeliveryAddress: plan.DeliveryAddress.Data(),
		ContactPhone:    plan.ContactPhone,
		DeliveryFee:     policy.ScheduledDeliveryFee,
		Tax:             policy.Tax(subtotal),
		ScheduledFor:    &scheduledFor,
		Snapshot:        snapshot,
	})
}

// nextDueDate advances from the later of the charged date and today, so a
// plan that missed several cycles is charged once and then moves forward.
func nextDueDate(schedule plandomain.Schedule, due, now time.Time) *time.Time {
	asOf := due
	if today := plandomain.DateOf(now); today.After(asOf) {
		asOf = today
	}
	next, ok := recurrence.Next(schedule, asOf)
	if !ok {
		return nil
	}
	return &next
}

// advanceCharged moves a plan whose current cycle already has a ledger entry
// past that cycle without creating another order.
func (p *Processor) advanceCharged(ctx context.Context, plan plandomain.MealPlan, now time.Time) (*chargeResult, error) {
	due := plan.DueDateOf()
	var res *chargeResult
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := p.planRepo.LockDue(ctx, tx, plan.ID, now)
		if err != nil {
			return err
		}
		if locked == nil || guard.EnsurePlanChargeable(*locked, due, now) != nil {
			return nil
		}
		next := nextDueDate(locked.Schedule.Data(), due, now)
		if err := p.planRepo.RecordSuccess(ctx, tx, locked.ID, next, now); err != nil {
			return err
		}
		res = &chargeResult{plan: *locked, nextDueDate: next}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res != nil && res.nextDueDate == nil {
		p.notifyDeactivated(ctx, res.plan, obsmetrics.DeactivationReasonScheduleExhausted, 0, plandomain.ErrScheduleExhausted)
	}
	return res, nil
}

func (p *Processor) afterCharge(ctx context.Context, res *chargeResult) {
	plan := res.plan
	prefs := plan.Preferences.Data()
	p.obsMetrics.RecordOrder(ctx, string(orderdomain.OrderSourceMealPlan))

	fields := []zap.Field{
		zap.String("order_id", res.order.ID.String()),
		zap.String("order_number", res.order.OrderNumber),
		zap.Int64("total", res.order.Total),
		zap.Int64("balance", res.balance),
	}
	if res.nextDueDate != nil {
		fields = append(fields, zap.String("next_due_date", res.nextDueDate.Format(time.DateOnly)))
	}
	p.logger(ctx).Info("mealplan.charge.succeeded", fields...)

	if prefs.OrderProcessed {
		orderID := res.order.ID
		p.dispatcher.Dispatch(ctx, plan.OwnerID, notification.KindOrderProcessed, notification.Payload{
			PlanID:       plan.ID,
			PlanName:     plan.Name,
			ContactEmail: plan.ContactEmail,
			ContactPhone: plan.ContactPhone,
			OrderID:      &orderID,
			OrderNumber:  res.order.OrderNumber,
			Amount:       res.order.Total,
			DeliveryAt:   res.order.ScheduledFor,
		})
	}
	if plan.MinimumBalance > 0 && res.balance < plan.MinimumBalance && prefs.LowBalance {
		p.dispatcher.Dispatch(ctx, plan.OwnerID, notification.KindLowBalance, notification.Payload{
			PlanID:       plan.ID,
			PlanName:     plan.Name,
			ContactEmail: plan.ContactEmail,
			ContactPhone: plan.ContactPhone,
			Required:     plan.MinimumBalance,
			Available:    res.balance,
		})
	}
	if res.nextDueDate == nil {
		p.notifyDeactivated(ctx, plan, obsmetrics.DeactivationReasonScheduleExhausted, 0, plandomain.ErrScheduleExhausted)
	}
}

func (p *Processor) notifyDeactivated(ctx context.Context, plan plandomain.MealPlan, reason string, failedAttempts int, cause error) {
	obsmetrics.Scheduler().IncPlanDeactivated(reason)
	p.logger(ctx).Warn("mealplan.deactivated",
		zap.String("reason", reason),
		zap.Int("failed_attempts", failedAttempts),
		zap.Error(cause),
	)
	p.dispatcher.Dispatch(ctx, plan.OwnerID, notification.KindPlanDeactivated, notification.Payload{
		PlanID:         plan.ID,
		PlanName:       plan.Name,
		ContactEmail:   plan.ContactEmail,
		ContactPhone:   plan.ContactPhone,
		Reason:         reason,
		FailedAttempts: failedAttempts,
	})
}
