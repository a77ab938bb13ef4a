package guard

import (
	"testing"
	"time"

	plandomain "github.com/smallbiznis/mealplan/internal/mealplan/domain"
	"github.com/stretchr/testify/assert"
)

func TestEnsurePlanChargeable(t *testing.T) {
	due := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	now := due.Add(9 * time.Hour)
	base := func() plandomain.MealPlan {
		d := due
		return plandomain.MealPlan{Active: true, NextDueDate: &d, MaxFailedAttempts: 3}
	}

	cases := []struct {
		name   string
		mutate func(*plandomain.MealPlan)
		want   error
	}{
		{name: "chargeable", mutate: func(*plandomain.MealPlan) {}},
		{name: "paused", mutate: func(p *plandomain.MealPlan) { p.Active = false }, want: ErrPlanNotActive},
		{name: "cancelled", mutate: func(p *plandomain.MealPlan) { c := now; p.CancelledAt = &c }, want: ErrPlanNotActive},
		{name: "no due date", mutate: func(p *plandomain.MealPlan) { p.NextDueDate = nil }, want: ErrPlanMissingDueDate},
		{name: "advanced", mutate: func(p *plandomain.MealPlan) { d := due.AddDate(0, 0, 4); p.NextDueDate = &d }, want: ErrDueDateMoved},
		{name: "exhausted", mutate: func(p *plandomain.MealPlan) { p.FailedAttempts = 3 }, want: ErrRetriesExhausted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := base()
			tc.mutate(&plan)
			err := EnsurePlanChargeable(plan, due, now)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.ErrorIs(t, EnsurePlanChargeable(base(), due, due.Add(-time.Hour)), ErrPlanNotDue)
}

func TestEnsureFailureApplies(t *testing.T) {
	due := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	plan := plandomain.MealPlan{Active: true, NextDueDate: &due, FailedAttempts: 5}
	assert.NoError(t, EnsureFailureApplies(plan, due))
	assert.ErrorIs(t, EnsureFailureApplies(plan, due.AddDate(0, 0, 1)), ErrDueDateMoved)
}
