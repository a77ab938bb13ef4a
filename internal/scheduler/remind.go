package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	plandomain "github.com/smallbiznis/mealplan/internal/mealplan/domain"
	"github.com/smallbiznis/mealplan/internal/notification"
	obsmetrics "github.com/smallbiznis/mealplan/internal/observability/metrics"
	"go.uber.org/zap"
)

// RemindResult summarizes one reminder pass.
type RemindResult struct {
	Skipped bool
	Scanned int
	Sent    int
}

// Remind notifies owners whose plans fall due within the reminder window
// starting tomorrow. Each due date is reminded at most once per plan.
func (p *Processor) Remind(ctx context.Context, now time.Time) (RemindResult, error) {
	var result RemindResult
	if !p.reminding.TryLock() {
		obsmetrics.Scheduler().IncSweepSkipped(obsmetrics.SchedulerSweepSkippedReasonInProgress)
		result.Skipped = true
		return result, nil
	}
	defer p.reminding.Unlock()

	release, err := p.acquireLease(ctx, leaseKeyRemind)
	if errors.Is(err, ErrLeaseHeld) {
		result.Skipped = true
		return result, nil
	}
	if err != nil {
		return result, err
	}
	defer release()

	lookahead := p.policy.Get().ReminderLookahead
	if lookahead < 24*time.Hour {
		lookahead = 24 * time.Hour
	}
	from := plandomain.DateOf(now).AddDate(0, 0, 1)
	to := from.Add(lookahead)

	var afterID snowflake.ID
	for {
		lockStart := time.Now()
		plans, err := p.planRepo.ListUpcoming(ctx, p.db, from, to, afterID, p.cfg.BatchSize)
		obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourceReminderPlans, time.Since(lockStart))
		if err != nil {
			return result, fmt.Errorf("list upcoming plans: %w", err)
		}
		if len(plans) == 0 {
			break
		}
		afterID = plans[len(plans)-1].ID

		for _, plan := range plans {
			result.Scanned++
			sent, err := p.remindPlan(ctx, plan)
			if err != nil {
				p.logPlanError(withPlanContext(ctx, plan), "mealplan.remind.failed", plan, err)
				continue
			}
			if sent {
				result.Sent++
			}
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}
		if len(plans) < p.cfg.BatchSize {
			break
		}
	}
	return result, nil
}

func (p *Processor) remindPlan(ctx context.Context, plan plandomain.MealPlan) (bool, error) {
	if !plan.Preferences.Data().UpcomingOrder || plan.NextDueDate == nil {
		return false, nil
	}
	due := plan.DueDateOf()
	marked, err := p.planRepo.MarkReminded(ctx, p.db, plan.ID, due)
	if err != nil || !marked {
		return false, err
	}

	ctx = withPlanContext(ctx, plan)
	deliveryAt := plan.Schedule.Data().DeliveryAt(due)
	p.dispatcher.Dispatch(ctx, plan.OwnerID, notification.KindUpcomingDelivery, notification.Payload{
		PlanID:       plan.ID,
		PlanName:     plan.Name,
		ContactEmail: plan.ContactEmail,
		ContactPhone: plan.ContactPhone,
		DueDate:      &due,
		DeliveryAt:   &deliveryAt,
	})
	p.logger(ctx).Debug("mealplan.remind.sent", zap.String("due_date", due.Format(time.DateOnly)))
	return true, nil
}
