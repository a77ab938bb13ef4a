package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	ledgerdomain "github.com/smallbiznis/mealplan/internal/ledger/domain"
	plandomain "github.com/smallbiznis/mealplan/internal/mealplan/domain"
	"github.com/smallbiznis/mealplan/internal/notification"
	obsmetrics "github.com/smallbiznis/mealplan/internal/observability/metrics"
	"github.com/smallbiznis/mealplan/internal/scheduler/guard"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type failureResult struct {
	outcome        string
	deactivated    bool
	failedAttempts int
}

// recordFailure counts a failed charge against the plan and deactivates it
// once max_failed_attempts is reached. Cancellation of the sweep itself is
// not the owner's fault and is not counted.
func (p *Processor) recordFailure(ctx context.Context, plan plandomain.MealPlan, cause error, now time.Time) failureResult {
	result := failureResult{outcome: classifyFailure(cause)}
	p.logPlanError(ctx, "mealplan.charge.failed", plan, cause, zap.String("outcome", result.outcome))

	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return result
	}

	due := plan.DueDateOf()
	var locked *plandomain.MealPlan
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lockStart := time.Now()
		current, err := p.planRepo.LockByID(ctx, tx, plan.ID)
		obsmetrics.Scheduler().ObserveDBLockWait(obsmetrics.LockResourcePlanByID, time.Since(lockStart))
		if err != nil {
			return err
		}
		if current == nil || guard.EnsureFailureApplies(*current, due) != nil {
			return nil
		}

		result.failedAttempts = current.FailedAttempts + 1
		result.deactivated = result.failedAttempts >= current.MaxFailedAttempts
		if err := p.planRepo.RecordFailure(ctx, tx, current.ID, result.failedAttempts, result.deactivated, now); err != nil {
			return err
		}
		locked = current
		return nil
	})
	if err != nil {
		p.logPlanError(ctx, "mealplan.failure.record_failed", plan, err)
		result.deactivated = false
		return result
	}
	if locked == nil {
		return result
	}

	var insufficient *ledgerdomain.InsufficientBalanceError
	if errors.As(cause, &insufficient) && locked.Preferences.Data().LowBalance {
		p.dispatcher.Dispatch(ctx, locked.OwnerID, notification.KindLowBalance, notification.Payload{
			PlanID:         locked.ID,
			PlanName:       locked.Name,
			ContactEmail:   locked.ContactEmail,
			ContactPhone:   locked.ContactPhone,
			Required:       insufficient.Required,
			Available:      insufficient.Available,
			DueDate:        &due,
			FailedAttempts: result.failedAttempts,
		})
	}
	if result.deactivated {
		exhausted := fmt.Errorf("%w: %w", plandomain.ErrMaxRetriesExceeded, cause)
		p.notifyDeactivated(ctx, *locked, obsmetrics.DeactivationReasonMaxRetries, result.failedAttempts, exhausted)
	}
	return result
}

func classifyFailure(err error) string {
	switch {
	case errors.Is(err, ledgerdomain.ErrInsufficientBalance):
		return obsmetrics.PlanOutcomeInsufficientBalance
	case errors.Is(err, catalogdomain.ErrCatalogItemUnavailable),
		errors.Is(err, catalogdomain.ErrCatalogUnavailable):
		return obsmetrics.PlanOutcomeCatalogUnavailable
	default:
		return obsmetrics.PlanOutcomeError
	}
}
