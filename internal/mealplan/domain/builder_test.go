package domain

import (
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	orderdomain "github.com/smallbiznis/mealplan/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() CreatePlanRequest {
	return CreatePlanRequest{
		OwnerID: 1,
		Name:    "  Lunch  ",
		Items: []PlanItem{{
			MenuItemID: 100,
			VendorID:   10,
			Quantity:   2,
			Modifiers: []catalogdomain.Selection{
				{Kind: catalogdomain.ModifierKindAdditive, ModifierID: 200, Count: 2},
			},
		}},
		Schedule: Schedule{
			Frequency:    FrequencyWeekly,
			DaysOfWeek:   []time.Weekday{time.Friday, time.Monday, time.Friday},
			StartDate:    time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC),
			DeliveryTime: "12:00",
		},
		DeliveryAddress: orderdomain.DeliveryAddress{Street: "1 Allen Ave", City: "Ikeja", State: "Lagos"},
		ContactPhone:    "+2348000000000",
		ContactEmail:    "Ada <ada@example.com>",
	}
}

func TestNewMealPlanNormalizes(t *testing.T) {
	plan, err := NewMealPlan(validRequest(), Defaults{MaxFailedAttempts: 3, Country: "Nigeria"})
	require.NoError(t, err)

	assert.Equal(t, "Lunch", plan.Name)
	assert.EqualValues(t, 10, plan.VendorID)
	assert.Equal(t, 3, plan.MaxFailedAttempts)
	assert.Equal(t, "ada@example.com", plan.ContactEmail)
	assert.Equal(t, "Nigeria", plan.DeliveryAddress.Data().Country)
	schedule := plan.Schedule.Data()
	assert.Equal(t, []time.Weekday{time.Monday, time.Friday}, schedule.DaysOfWeek)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), schedule.StartDate)
	assert.False(t, plan.Active)
	assert.Nil(t, plan.NextDueDate)
}

func TestNewMealPlanRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreatePlanRequest)
		want   error
	}{
		{"owner", func(r *CreatePlanRequest) { r.OwnerID = 0 }, ErrInvalidOwner},
		{"name", func(r *CreatePlanRequest) { r.Name = " " }, ErrInvalidName},
		{"no items", func(r *CreatePlanRequest) { r.Items = nil }, ErrInvalidItems},
		{"quantity", func(r *CreatePlanRequest) { r.Items[0].Quantity = 0 }, ErrInvalidQuantity},
		{"modifier kind", func(r *CreatePlanRequest) { r.Items[0].Modifiers[0].Kind = "dessert" }, ErrInvalidModifier},
		{"modifier count", func(r *CreatePlanRequest) { r.Items[0].Modifiers[0].Count = -2 }, ErrInvalidModifier},
		{"phone", func(r *CreatePlanRequest) { r.ContactPhone = "" }, ErrInvalidContactPhone},
		{"email", func(r *CreatePlanRequest) { r.ContactEmail = "not-an-email" }, ErrInvalidContactEmail},
		{"minimum balance", func(r *CreatePlanRequest) { r.MinimumBalance = -1 }, ErrInvalidMinimumBalance},
		{"address", func(r *CreatePlanRequest) { r.DeliveryAddress.Street = "" }, orderdomain.ErrInvalidDeliveryAddress},
		{"schedule", func(r *CreatePlanRequest) { r.Schedule.Frequency = "hourly" }, ErrInvalidSchedule},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			req.Items = append([]PlanItem(nil), req.Items...)
			req.Items[0].Modifiers = append([]catalogdomain.Selection(nil), req.Items[0].Modifiers...)
			tc.mutate(&req)
			_, err := NewMealPlan(req, Defaults{MaxFailedAttempts: 3, Country: "Nigeria"})
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUpdateApplyKeepsUnsetFields(t *testing.T) {
	plan, err := NewMealPlan(validRequest(), Defaults{MaxFailedAttempts: 3, Country: "Nigeria"})
	require.NoError(t, err)

	name := "Dinner"
	merged := UpdatePlanRequest{Name: &name}.Apply(plan.ToRequest())
	assert.Equal(t, "Dinner", merged.Name)
	assert.Equal(t, plan.ContactPhone, merged.ContactPhone)
	assert.Len(t, merged.Items, 1)
}

func TestChargeReference(t *testing.T) {
	due := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "42-2024-01-04", ChargeReference(42, due))
}

func TestDeliveryAt(t *testing.T) {
	s := Schedule{DeliveryTime: "12:30"}
	assert.Equal(t, time.Date(2024, 1, 4, 12, 30, 0, 0, time.UTC), s.DeliveryAt(time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)))
}
