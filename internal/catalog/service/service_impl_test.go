package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/catalog/domain"
	"github.com/smallbiznis/mealplan/internal/catalog/repository"
	"github.com/smallbiznis/mealplan/internal/clock"
	"github.com/smallbiznis/mealplan/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t, &domain.MenuItem{}, &domain.PackageOption{}, &domain.Modifier{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.Provide(),
		Clock: clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	})
	return svc, db
}

func TestSnapshotLoadsReferencedEntries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rice, err := svc.CreateMenuItem(ctx, domain.CreateMenuItemRequest{VendorID: 10, Name: " Jollof Rice ", Price: 1000})
	require.NoError(t, err)
	assert.Equal(t, "Jollof Rice", rice.Name)
	assert.True(t, rice.Available)

	cooler, err := svc.CreatePackageOption(ctx, domain.CreatePackageOptionRequest{VendorID: 10, Name: "Cooler", Price: 200})
	require.NoError(t, err)
	beef, err := svc.CreateModifier(ctx, domain.CreateModifierRequest{VendorID: 10, Kind: domain.ModifierKindMeat, Name: "Beef", Price: 300})
	require.NoError(t, err)
	_, err = svc.CreateMenuItem(ctx, domain.CreateMenuItemRequest{VendorID: 10, Name: "Fried Rice", Price: 900})
	require.NoError(t, err)

	items := []domain.LineItem{
		{MenuItemID: rice.ID, PackageOptionID: &cooler.ID, Modifiers: []domain.Selection{{Kind: domain.ModifierKindMeat, ModifierID: beef.ID}}, Quantity: 1},
		{MenuItemID: rice.ID, Quantity: 2},
		{MenuItemID: 42, Quantity: 1},
	}
	snapshot, err := svc.Snapshot(ctx, items)
	require.NoError(t, err)

	assert.Len(t, snapshot.MenuItems, 1)
	assert.Equal(t, int64(1000), snapshot.MenuItems[rice.ID].Price)
	assert.Equal(t, "Cooler", snapshot.PackageOptions[cooler.ID].Name)
	assert.Equal(t, domain.ModifierKindMeat, snapshot.Modifiers[beef.ID].Kind)
	_, found := snapshot.MenuItems[42]
	assert.False(t, found)
}

func TestSnapshotKeepsUnavailableEntries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	rice, err := svc.CreateMenuItem(ctx, domain.CreateMenuItemRequest{VendorID: 10, Name: "Jollof Rice", Price: 1000})
	require.NoError(t, err)
	require.NoError(t, svc.SetMenuItemAvailability(ctx, rice.ID, false))

	snapshot, err := svc.Snapshot(ctx, []domain.LineItem{{MenuItemID: rice.ID, Quantity: 1}})
	require.NoError(t, err)
	require.Contains(t, snapshot.MenuItems, rice.ID)
	assert.False(t, snapshot.MenuItems[rice.ID].Available)

	assert.ErrorIs(t, svc.SetMenuItemAvailability(ctx, 999, true), domain.ErrNotFound)
}

func TestSnapshotReportsStoreFailure(t *testing.T) {
	svc, db := newTestService(t)
	require.NoError(t, db.Migrator().DropTable(&domain.MenuItem{}))

	_, err := svc.Snapshot(context.Background(), []domain.LineItem{{MenuItemID: 1, Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestCreateValidates(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		run  func() error
		want error
	}{
		{"missing vendor", func() error {
			_, err := svc.CreateMenuItem(ctx, domain.CreateMenuItemRequest{Name: "Rice", Price: 100})
			return err
		}, domain.ErrInvalidVendor},
		{"blank name", func() error {
			_, err := svc.CreatePackageOption(ctx, domain.CreatePackageOptionRequest{VendorID: 1, Name: "  ", Price: 100})
			return err
		}, domain.ErrInvalidName},
		{"negative price", func() error {
			_, err := svc.CreateMenuItem(ctx, domain.CreateMenuItemRequest{VendorID: 1, Name: "Rice", Price: -1})
			return err
		}, domain.ErrInvalidPrice},
		{"unknown kind", func() error {
			_, err := svc.CreateModifier(ctx, domain.CreateModifierRequest{VendorID: 1, Kind: "sauce", Name: "Ketchup", Price: 50})
			return err
		}, domain.ErrInvalidModifierKind},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.run(), tc.want)
		})
	}
}

func TestCollectRefsDeduplicates(t *testing.T) {
	opt := snowflake.ID(5)
	refs := domain.CollectRefs([]domain.LineItem{
		{MenuItemID: 1, PackageOptionID: &opt, Modifiers: []domain.Selection{{ModifierID: 7}, {ModifierID: 8}}},
		{MenuItemID: 1, PackageOptionID: &opt, Modifiers: []domain.Selection{{ModifierID: 7}}},
		{MenuItemID: 2},
	})
	assert.Equal(t, []snowflake.ID{1, 2}, refs.MenuItemIDs)
	assert.Equal(t, []snowflake.ID{5}, refs.PackageOptionIDs)
	assert.Equal(t, []snowflake.ID{7, 8}, refs.ModifierIDs)
}
