package guard

import (
	"errors"
	"time"

	plandomain "github.com/smallbiznis/mealplan/internal/mealplan/domain"
)

var (
	ErrPlanNotActive      = errors.New("meal_plan_not_active")
	ErrPlanNotDue         = errors.New("meal_plan_not_due")
	ErrDueDateMoved       = errors.New("meal_plan_due_date_moved")
	ErrRetriesExhausted   = errors.New("meal_plan_retries_exhausted")
	ErrPlanMissingDueDate = errors.New("meal_plan_missing_due_date")
)

// EnsurePlanChargeable checks a freshly locked plan against the due date the
// sweep selected it for.
func EnsurePlanChargeable(plan plandomain.MealPlan, selectedDue, now time.Time) error {
	if !plan.Active || plan.Cancelled() {
		return ErrPlanNotActive
	}
	if plan.NextDueDate == nil {
		return ErrPlanMissingDueDate
	}
	if !plan.DueDateOf().Equal(plandomain.DateOf(selectedDue)) {
		return ErrDueDateMoved
	}
	if plan.NextDueDate.After(now) {
		return ErrPlanNotDue
	}
	if plan.FailedAttempts >= plan.MaxFailedAttempts {
		return ErrRetriesExhausted
	}
	return nil
}

// EnsureFailureApplies checks that a failure observed for selectedDue may
// still be counted against the locked plan.
func EnsureFailureApplies(plan plandomain.MealPlan, selectedDue time.Time) error {
	if !plan.Active || plan.Cancelled() {
		return ErrPlanNotActive
	}
	if plan.NextDueDate == nil {
		return ErrPlanMissingDueDate
	}
	if !plan.DueDateOf().Equal(plandomain.DateOf(selectedDue)) {
		return ErrDueDateMoved
	}
	return nil
}
