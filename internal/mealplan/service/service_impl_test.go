package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	catalogrepo "github.com/smallbiznis/mealplan/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/mealplan/internal/catalog/service"
	"github.com/smallbiznis/mealplan/internal/clock"
	"github.com/smallbiznis/mealplan/internal/config"
	ledgerdomain "github.com/smallbiznis/mealplan/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/mealplan/internal/ledger/service"
	"github.com/smallbiznis/mealplan/internal/mealplan/domain"
	"github.com/smallbiznis/mealplan/internal/mealplan/repository"
	orderdomain "github.com/smallbiznis/mealplan/internal/order/domain"
	"github.com/smallbiznis/mealplan/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const ownerID snowflake.ID = 7

type fixture struct {
	svc    *Service
	clock  *clock.FakeClock
	ledger ledgerdomain.Service
	jollof catalogdomain.MenuItem
	db     *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t,
		&domain.MealPlan{},
		&catalogdomain.MenuItem{},
		&catalogdomain.PackageOption{},
		&catalogdomain.Modifier{},
		&ledgerdomain.Account{},
		&ledgerdomain.LedgerEntry{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC))
	log := zap.NewNop()

	catalogSvc := catalogservice.New(catalogservice.Params{DB: db, Log: log, GenID: node, Repo: catalogrepo.Provide(), Clock: clk})
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{DB: db, Log: log, GenID: node, Clock: clk})

	jollof, err := catalogSvc.CreateMenuItem(context.Background(), catalogdomain.CreateMenuItemRequest{VendorID: 10, Name: "Jollof Rice", Price: 1000})
	require.NoError(t, err)

	svc := New(Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Repo:       repository.Provide(),
		CatalogSvc: catalogSvc,
		LedgerSvc:  ledgerSvc,
		Policy:     config.NewStaticPolicyHolder(config.DefaultPolicy()),
		Clock:      clk,
	}).(*Service)

	return &fixture{svc: svc, clock: clk, ledger: ledgerSvc, jollof: jollof, db: db}
}

func (f *fixture) fund(t *testing.T, amount int64, ref string) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), ledgerdomain.CreditRequest{OwnerID: ownerID, Amount: amount, Reference: ref})
	require.NoError(t, err)
}

func (f *fixture) request() domain.CreatePlanRequest {
	return domain.CreatePlanRequest{
		OwnerID: ownerID,
		Name:    "Weekday lunch",
		Items: []domain.PlanItem{
			{MenuItemID: f.jollof.ID, VendorID: f.jollof.VendorID, Quantity: 1},
		},
		Schedule: domain.Schedule{
			Frequency:    domain.FrequencyWeekly,
			DaysOfWeek:   []time.Weekday{time.Thursday, time.Monday},
			StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			DeliveryTime: "12:30",
		},
		DeliveryAddress: orderdomain.DeliveryAddress{Street: "1 Allen Ave", City: "Ikeja", State: "Lagos"},
		ContactPhone:    "+2348000000000",
	}
}

func TestCreateComputesFirstDueDate(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 5000, "fund-1")

	plan, err := f.svc.Create(context.Background(), f.request())
	require.NoError(t, err)

	assert.True(t, plan.Active)
	require.NotNil(t, plan.NextDueDate)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), *plan.NextDueDate)
	assert.Equal(t, 3, plan.MaxFailedAttempts)
	assert.Equal(t, "Nigeria", plan.DeliveryAddress.Data().Country)
	assert.Equal(t, []time.Weekday{time.Monday, time.Thursday}, plan.Schedule.Data().DaysOfWeek)
	assert.True(t, plan.Preferences.Data().OrderProcessed)

	stored, err := f.svc.Get(context.Background(), ownerID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, plan.Name, stored.Name)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, f.jollof.ID, stored.Items[0].MenuItemID)
}

func TestCreateRequiresFundedWallet(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 500, "fund-1")

	_, err := f.svc.Create(context.Background(), f.request())
	assert.ErrorIs(t, err, ledgerdomain.ErrInsufficientBalance)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 5000, "fund-1")
	ctx := context.Background()

	req := f.request()
	req.Schedule.DaysOfWeek = nil
	_, err := f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	req = f.request()
	req.Schedule.DeliveryTime = "noon"
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidSchedule)

	req = f.request()
	req.Items = append(req.Items, domain.PlanItem{MenuItemID: f.jollof.ID, VendorID: 99, Quantity: 1})
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, domain.ErrMixedVendors)

	req = f.request()
	req.DeliveryAddress.City = ""
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, orderdomain.ErrInvalidDeliveryAddress)

	req = f.request()
	req.Items[0].MenuItemID = 12345
	_, err = f.svc.Create(ctx, req)
	assert.ErrorIs(t, err, catalogdomain.ErrCatalogItemUnavailable)
}

func TestPauseResumeCancel(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 5000, "fund-1")
	ctx := context.Background()

	plan, err := f.svc.Create(ctx, f.request())
	require.NoError(t, err)

	paused, err := f.svc.Pause(ctx, ownerID, plan.ID)
	require.NoError(t, err)
	assert.False(t, paused.Active)

	// two weeks later the stored due date is in the past
	f.clock.Advance(14 * 24 * time.Hour)
	resumed, err := f.svc.Resume(ctx, ownerID, plan.ID)
	require.NoError(t, err)
	assert.True(t, resumed.Active)
	assert.Zero(t, resumed.FailedAttempts)
	require.NotNil(t, resumed.NextDueDate)
	assert.Equal(t, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC), *resumed.NextDueDate)

	cancelled, err := f.svc.Cancel(ctx, ownerID, plan.ID)
	require.NoError(t, err)
	assert.False(t, cancelled.Active)
	require.NotNil(t, cancelled.CancelledAt)

	_, err = f.svc.Resume(ctx, ownerID, plan.ID)
	assert.ErrorIs(t, err, domain.ErrPlanCancelled)

	name := "renamed"
	_, err = f.svc.Update(ctx, domain.UpdatePlanRequest{OwnerID: ownerID, PlanID: plan.ID, Name: &name})
	assert.ErrorIs(t, err, domain.ErrPlanCancelled)
}

func TestUpdateRecomputesDueDateOnScheduleChange(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 5000, "fund-1")
	ctx := context.Background()

	plan, err := f.svc.Create(ctx, f.request())
	require.NoError(t, err)

	schedule := domain.Schedule{
		Frequency:    domain.FrequencyDaily,
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		DeliveryTime: "09:00",
	}
	name := "Daily breakfast"
	updated, err := f.svc.Update(ctx, domain.UpdatePlanRequest{OwnerID: ownerID, PlanID: plan.ID, Schedule: &schedule, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Daily breakfast", updated.Name)
	require.NotNil(t, updated.NextDueDate)
	assert.Equal(t, time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC), *updated.NextDueDate)

	stored, err := f.svc.Get(ctx, ownerID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.FrequencyDaily, stored.Schedule.Data().Frequency)
}

func TestOwnerScoping(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 5000, "fund-1")
	ctx := context.Background()

	plan, err := f.svc.Create(ctx, f.request())
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, 8, plan.ID)
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
	_, err = f.svc.Pause(ctx, 8, plan.ID)
	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestListForOwner(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 5000, "fund-1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.Create(ctx, f.request())
		require.NoError(t, err)
	}

	page, err := f.svc.ListForOwner(ctx, domain.ListPlansRequest{OwnerID: ownerID, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, page.Plans, 2)
	assert.True(t, page.PageInfo.HasMore)

	rest, err := f.svc.ListForOwner(ctx, domain.ListPlansRequest{OwnerID: ownerID, PageSize: 2, PageToken: page.PageInfo.NextPageToken})
	require.NoError(t, err)
	assert.Len(t, rest.Plans, 1)
	assert.False(t, rest.PageInfo.HasMore)
}

func TestUpdateRejectsCapAtOrBelowFailedAttempts(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 5000, "fund-1")
	ctx := context.Background()

	plan, err := f.svc.Create(ctx, f.request())
	require.NoError(t, err)
	require.NoError(t, f.db.Exec(`UPDATE meal_plans SET failed_attempts = 2 WHERE id = ?`, plan.ID).Error)

	for _, limit := range []int{1, 2} {
		capped := limit
		_, err = f.svc.Update(ctx, domain.UpdatePlanRequest{OwnerID: ownerID, PlanID: plan.ID, MaxFailedAttempts: &capped})
		assert.ErrorIs(t, err, domain.ErrInvalidMaxFailedAttempts, "cap %d", limit)
	}

	stored, err := f.svc.Get(ctx, ownerID, plan.ID)
	require.NoError(t, err)
	assert.True(t, stored.Active)
	assert.Equal(t, 2, stored.FailedAttempts)
	assert.Equal(t, 3, stored.MaxFailedAttempts)

	raised := 5
	updated, err := f.svc.Update(ctx, domain.UpdatePlanRequest{OwnerID: ownerID, PlanID: plan.ID, MaxFailedAttempts: &raised})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.MaxFailedAttempts)
	assert.Equal(t, 2, updated.FailedAttempts)
	require.NotNil(t, updated.NextDueDate)
	assert.True(t, plan.NextDueDate.Equal(*updated.NextDueDate))

	// a paused plan is not selected, so any cap is accepted
	_, err = f.svc.Pause(ctx, ownerID, plan.ID)
	require.NoError(t, err)
	lowered := 1
	updated, err = f.svc.Update(ctx, domain.UpdatePlanRequest{OwnerID: ownerID, PlanID: plan.ID, MaxFailedAttempts: &lowered})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.MaxFailedAttempts)
	assert.False(t, updated.Active)
}

func TestUpdateKeepsDueDateAdvancedByProcessor(t *testing.T) {
	f := newFixture(t)
	f.fund(t, 5000, "fund-1")
	ctx := context.Background()

	plan, err := f.svc.Create(ctx, f.request())
	require.NoError(t, err)
	advanced := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	require.NoError(t, f.db.Exec(`UPDATE meal_plans SET next_due_date = ? WHERE id = ?`, advanced, plan.ID).Error)

	name := "renamed"
	updated, err := f.svc.Update(ctx, domain.UpdatePlanRequest{OwnerID: ownerID, PlanID: plan.ID, Name: &name})
	require.NoError(t, err)
	require.NotNil(t, updated.NextDueDate)
	assert.True(t, advanced.Equal(*updated.NextDueDate))
}
