package service

import (
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	"github.com/smallbiznis/mealplan/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapshotFixture() *catalogdomain.Snapshot {
	snap := catalogdomain.NewSnapshot()
	snap.MenuItems[100] = catalogdomain.MenuItem{ID: 100, VendorID: 10, Name: "Jollof Rice", Price: 1000, Available: true}
	snap.MenuItems[101] = catalogdomain.MenuItem{ID: 101, VendorID: 11, Name: "Amala", Price: 900, Available: true}
	snap.Modifiers[200] = catalogdomain.Modifier{ID: 200, Kind: catalogdomain.ModifierKindAdditive, Name: "Plantain", Price: 200, Available: true}
	snap.PackageOptions[300] = catalogdomain.PackageOption{ID: 300, VendorID: 10, Name: "Bowl", Price: 100, Available: true}
	return snap
}

func TestMaterializeCopiesPrices(t *testing.T) {
	pkg := snowflake.ID(300)
	planID := snowflake.ID(77)
	in := domain.MaterializeInput{
		OwnerID:    1,
		VendorID:   10,
		MealPlanID: &planID,
		Source:     domain.OrderSourceMealPlan,
		Items: []catalogdomain.LineItem{
			{
				MenuItemID:      100,
				VendorID:        10,
				PackageOptionID: &pkg,
				Quantity:        2,
				Note:            "  extra pepper ",
				Modifiers: []catalogdomain.Selection{
					{Kind: catalogdomain.ModifierKindAdditive, ModifierID: 200, Count: 2},
				},
			},
		},
		DeliveryAddress: domain.DeliveryAddress{Street: "1 Allen Ave", City: "Ikeja", State: "Lagos", Country: "Nigeria"},
		ContactPhone:    "+2348000000000",
		DeliveryFee:     500,
		Tax:             75,
		Snapshot:        snapshotFixture(),
	}

	draft, err := Materialize(in)
	require.NoError(t, err)

	require.Len(t, draft.Items, 1)
	item := draft.Items[0]
	assert.Equal(t, "Jollof Rice", item.Name)
	assert.Equal(t, int64(1000), item.BasePrice)
	assert.Equal(t, int64(1500), item.UnitPrice)
	assert.Equal(t, int64(3000), item.LineTotal)
	assert.Equal(t, "extra pepper", item.Note)
	require.NotNil(t, item.PackageOption)
	assert.Equal(t, "Bowl", item.PackageOption.Name)
	require.Len(t, item.Modifiers, 1)
	assert.Equal(t, 2, item.Modifiers[0].Count)
	assert.Equal(t, "Plantain", item.Modifiers[0].Name)

	assert.Equal(t, int64(3000), draft.Subtotal)
	assert.Equal(t, int64(3575), draft.Total)
	assert.Equal(t, domain.PaymentStatusPending, draft.Payment.Status)
	assert.Equal(t, domain.PaymentMethodWallet, draft.Payment.Method)
	assert.Equal(t, draft.Total, draft.Payment.Amount)

	// later catalog changes do not reach the copied draft
	in.Snapshot.MenuItems[100] = catalogdomain.MenuItem{ID: 100, VendorID: 10, Name: "Jollof Rice", Price: 5000, Available: true}
	assert.Equal(t, int64(1000), draft.Items[0].BasePrice)
}

func TestMaterializeRejectsMixedVendors(t *testing.T) {
	_, err := Materialize(domain.MaterializeInput{
		OwnerID: 1,
		Items: []catalogdomain.LineItem{
			{MenuItemID: 100, Quantity: 1},
			{MenuItemID: 101, Quantity: 1},
		},
		Snapshot: snapshotFixture(),
	})
	assert.ErrorIs(t, err, domain.ErrMixedVendors)
}

func TestMaterializeEmptyAndUnavailable(t *testing.T) {
	_, err := Materialize(domain.MaterializeInput{OwnerID: 1})
	assert.ErrorIs(t, err, domain.ErrEmptyOrder)

	_, err = Materialize(domain.MaterializeInput{
		OwnerID:  1,
		Items:    []catalogdomain.LineItem{{MenuItemID: 999, Quantity: 1}},
		Snapshot: snapshotFixture(),
	})
	assert.ErrorIs(t, err, catalogdomain.ErrCatalogItemUnavailable)
}

func TestDraftBuildAndMarkPaid(t *testing.T) {
	draft, err := Materialize(domain.MaterializeInput{
		OwnerID:  1,
		Source:   domain.OrderSourceCart,
		Items:    []catalogdomain.LineItem{{MenuItemID: 100, Quantity: 1}},
		Snapshot: snapshotFixture(),
	})
	require.NoError(t, err)

	draft.MarkPaid("checkout-1", "tx-1")
	order := draft.Build(42, domain.OrderStatusPending, fixedNow)

	assert.Equal(t, snowflake.ID(10), order.VendorID)
	assert.False(t, order.IsScheduled)
	assert.True(t, strings.HasPrefix(order.OrderNumber, "ORD-"))
	assert.Equal(t, domain.PaymentStatusCompleted, order.Payment.Data().Status)
	assert.Equal(t, "checkout-1", order.Payment.Data().Reference)
	assert.Equal(t, int64(1000), order.Total)
}
