package domain

import (
	"cmp"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	"gorm.io/datatypes"
)

// Line is one entry in a cart. Lines with the same dish, package option and
// modifier selections are merged by adding their quantities.
type Line struct {
	ID snowflake.ID `json:"id"`
	catalogdomain.LineItem
}

// Cart holds an owner's pending on-demand order. Prices are resolved against
// the live catalog on every read and at checkout, never stored.
type Cart struct {
	OwnerID   snowflake.ID              `gorm:"primaryKey;autoIncrement:false"`
	Items     datatypes.JSONSlice[Line] `gorm:"not null"`
	Version   int64                     `gorm:"not null;default:0"`
	CreatedAt time.Time                 `gorm:"not null"`
	UpdatedAt time.Time                 `gorm:"not null"`
}

func (Cart) TableName() string { return "carts" }

// LineItems returns the catalog line items of the cart in order.
func (c Cart) LineItems() []catalogdomain.LineItem {
	out := make([]catalogdomain.LineItem, 0, len(c.Items))
	for _, line := range c.Items {
		out = append(out, line.LineItem)
	}
	return out
}

// VendorID is the vendor every line belongs to, or 0 for an empty cart.
func (c Cart) VendorID() snowflake.ID {
	if len(c.Items) == 0 {
		return 0
	}
	return c.Items[0].VendorID
}

// PricedLine is a cart line with its current price.
type PricedLine struct {
	Line
	Name        string
	UnitPrice   int64
	LineTotal   int64
	Unavailable bool
}

// Summary is a cart priced against the current catalog and policy.
// Unavailable lines are listed but not counted.
type Summary struct {
	OwnerID     snowflake.ID
	Lines       []PricedLine
	Subtotal    int64
	DeliveryFee int64
	Tax         int64
	Total       int64
}

// SameSelection reports whether two line items would produce the same dish.
// Notes are not part of the comparison.
func SameSelection(a, b catalogdomain.LineItem) bool {
	if a.MenuItemID != b.MenuItemID {
		return false
	}
	switch {
	case a.PackageOptionID == nil && b.PackageOptionID == nil:
	case a.PackageOptionID == nil || b.PackageOptionID == nil:
		return false
	case *a.PackageOptionID != *b.PackageOptionID:
		return false
	}
	return slices.Equal(selectionKey(a.Modifiers), selectionKey(b.Modifiers))
}

type selection struct {
	kind  catalogdomain.ModifierKind
	id    snowflake.ID
	count int
}

func selectionKey(mods []catalogdomain.Selection) []selection {
	out := make([]selection, 0, len(mods))
	for _, m := range mods {
		out = append(out, selection{kind: m.Kind, id: m.ModifierID, count: m.EffectiveCount()})
	}
	slices.SortFunc(out, func(a, b selection) int {
		return cmp.Or(cmp.Compare(a.kind, b.kind), cmp.Compare(a.id, b.id), cmp.Compare(a.count, b.count))
	})
	return out
}
