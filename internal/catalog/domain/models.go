package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ModifierKind groups modifiers by what they add to a meal.
type ModifierKind string

const (
	ModifierKindAdditive ModifierKind = "additive"
	ModifierKindDrink    ModifierKind = "drink"
	ModifierKindMeat     ModifierKind = "meat"
	ModifierKindStew     ModifierKind = "stew"
)

// ModifierKinds lists the kinds in pricing order.
var ModifierKinds = []ModifierKind{
	ModifierKindAdditive,
	ModifierKindDrink,
	ModifierKindMeat,
	ModifierKindStew,
}

func (k ModifierKind) Valid() bool {
	switch k {
	case ModifierKindAdditive, ModifierKindDrink, ModifierKindMeat, ModifierKindStew:
		return true
	default:
		return false
	}
}

// MenuItem is a vendor's sellable dish.
type MenuItem struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	VendorID  snowflake.ID `gorm:"not null;index"`
	Name      string       `gorm:"type:text;not null"`
	Price     int64        `gorm:"not null"`
	Available bool         `gorm:"not null;default:true"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (MenuItem) TableName() string { return "menu_items" }

// PackageOption is a container or packaging choice priced on top of the dish.
type PackageOption struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	VendorID  snowflake.ID `gorm:"not null;index"`
	Name      string       `gorm:"type:text;not null"`
	Price     int64        `gorm:"not null"`
	Available bool         `gorm:"not null;default:true"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (PackageOption) TableName() string { return "package_options" }

// Modifier is an add-on of a single kind.
type Modifier struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	VendorID  snowflake.ID `gorm:"not null;index"`
	Kind      ModifierKind `gorm:"type:text;not null;index"`
	Name      string       `gorm:"type:text;not null"`
	Price     int64        `gorm:"not null"`
	Available bool         `gorm:"not null;default:true"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

func (Modifier) TableName() string { return "modifiers" }

// Selection picks Count units of one modifier.
type Selection struct {
	Kind       ModifierKind `json:"kind"`
	ModifierID snowflake.ID `json:"modifier_id"`
	Count      int          `json:"count,omitempty"`
}

// EffectiveCount treats an unset count as one.
func (s Selection) EffectiveCount() int {
	if s.Count == 0 {
		return 1
	}
	return s.Count
}

// LineItem references catalog entries by id. Plans and carts store these
// and resolve prices against a Snapshot when an order is built.
type LineItem struct {
	MenuItemID      snowflake.ID  `json:"menu_item_id"`
	VendorID        snowflake.ID  `json:"vendor_id"`
	PackageOptionID *snowflake.ID `json:"package_option_id,omitempty"`
	Modifiers       []Selection   `json:"modifiers,omitempty"`
	Quantity        int           `json:"quantity"`
	Note            string        `json:"note,omitempty"`
}

// Snapshot is a point-in-time view of the catalog entries a set of line items reference.
// Entries missing from the maps were not found.
type Snapshot struct {
	MenuItems      map[snowflake.ID]MenuItem
	PackageOptions map[snowflake.ID]PackageOption
	Modifiers      map[snowflake.ID]Modifier
}

func NewSnapshot() *Snapshot {
	return &Snapshot{
		MenuItems:      map[snowflake.ID]MenuItem{},
		PackageOptions: map[snowflake.ID]PackageOption{},
		Modifiers:      map[snowflake.ID]Modifier{},
	}
}

// Refs collects the distinct ids referenced by items.
type Refs struct {
	MenuItemIDs      []snowflake.ID
	PackageOptionIDs []snowflake.ID
	ModifierIDs      []snowflake.ID
}

func CollectRefs(items []LineItem) Refs {
	var refs Refs
	seenMenu := map[snowflake.ID]struct{}{}
	seenPkg := map[snowflake.ID]struct{}{}
	seenMod := map[snowflake.ID]struct{}{}
	for _, item := range items {
		if _, ok := seenMenu[item.MenuItemID]; !ok {
			seenMenu[item.MenuItemID] = struct{}{}
			refs.MenuItemIDs = append(refs.MenuItemIDs, item.MenuItemID)
		}
		if item.PackageOptionID != nil {
			if _, ok := seenPkg[*item.PackageOptionID]; !ok {
				seenPkg[*item.PackageOptionID] = struct{}{}
				refs.PackageOptionIDs = append(refs.PackageOptionIDs, *item.PackageOptionID)
			}
		}
		for _, sel := range item.Modifiers {
			if _, ok := seenMod[sel.ModifierID]; !ok {
				seenMod[sel.ModifierID] = struct{}{}
				refs.ModifierIDs = append(refs.ModifierIDs, sel.ModifierID)
			}
		}
	}
	return refs
}
