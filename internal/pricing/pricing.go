// Package pricing resolves line item prices against a catalog snapshot.
//
// A unit is priced as the menu item's base price, plus the package option
// when one is chosen, plus price times count for every selected modifier.
// Nothing here touches storage; callers load a Snapshot first.
package pricing

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
)

var (
	ErrInvalidQuantity      = errors.New("invalid_quantity")
	ErrInvalidModifierCount = errors.New("invalid_modifier_count")
)

// ResolvedModifier is a priced modifier selection.
type ResolvedModifier struct {
	Modifier catalogdomain.Modifier
	Count    int
	Amount   int64
}

// ResolvedLine carries the catalog entries and amounts behind one line item.
type ResolvedLine struct {
	MenuItem      catalogdomain.MenuItem
	PackageOption *catalogdomain.PackageOption
	Modifiers     []ResolvedModifier
	UnitPrice     int64
	Quantity      int
	LineTotal     int64
}

// Resolve prices a single line. Any referenced entry that is missing,
// unavailable, or of the wrong modifier kind yields ErrCatalogItemUnavailable.
func Resolve(item catalogdomain.LineItem, snapshot *catalogdomain.Snapshot) (ResolvedLine, error) {
	if item.Quantity < 1 {
		return ResolvedLine{}, ErrInvalidQuantity
	}
	if snapshot == nil {
		snapshot = catalogdomain.NewSnapshot()
	}

	menuItem, ok := snapshot.MenuItems[item.MenuItemID]
	if !ok || !menuItem.Available {
		return ResolvedLine{}, unavailable("menu item", item.MenuItemID)
	}
	if item.VendorID != 0 && menuItem.VendorID != item.VendorID {
		return ResolvedLine{}, unavailable("menu item", item.MenuItemID)
	}

	line := ResolvedLine{
		MenuItem:  menuItem,
		UnitPrice: menuItem.Price,
		Quantity:  item.Quantity,
	}

	if item.PackageOptionID != nil {
		option, ok := snapshot.PackageOptions[*item.PackageOptionID]
		if !ok || !option.Available {
			return ResolvedLine{}, unavailable("package option", *item.PackageOptionID)
		}
		line.PackageOption = &option
		line.UnitPrice += option.Price
	}

	for _, kind := range catalogdomain.ModifierKinds {
		for _, sel := range item.Modifiers {
			if sel.Kind != kind {
				continue
			}
			count := sel.EffectiveCount()
			if count < 1 {
				return ResolvedLine{}, ErrInvalidModifierCount
			}
			modifier, ok := snapshot.Modifiers[sel.ModifierID]
			if !ok || !modifier.Available || modifier.Kind != sel.Kind {
				return ResolvedLine{}, unavailable(string(sel.Kind)+" modifier", sel.ModifierID)
			}
			amount := modifier.Price * int64(count)
			line.Modifiers = append(line.Modifiers, ResolvedModifier{
				Modifier: modifier,
				Count:    count,
				Amount:   amount,
			})
			line.UnitPrice += amount
		}
	}
	for _, sel := range item.Modifiers {
		if !sel.Kind.Valid() {
			return ResolvedLine{}, unavailable(string(sel.Kind)+" modifier", sel.ModifierID)
		}
	}

	line.LineTotal = line.UnitPrice * int64(item.Quantity)
	return line, nil
}

// UnitPrice returns the price of one unit of item.
func UnitPrice(item catalogdomain.LineItem, snapshot *catalogdomain.Snapshot) (int64, error) {
	if item.Quantity == 0 {
		item.Quantity = 1
	}
	line, err := Resolve(item, snapshot)
	if err != nil {
		return 0, err
	}
	return line.UnitPrice, nil
}

// Subtotal sums the line totals of items.
func Subtotal(items []catalogdomain.LineItem, snapshot *catalogdomain.Snapshot) (int64, error) {
	var subtotal int64
	for _, item := range items {
		line, err := Resolve(item, snapshot)
		if err != nil {
			return 0, err
		}
		subtotal += line.LineTotal
	}
	return subtotal, nil
}

func unavailable(what string, id snowflake.ID) error {
	return fmt.Errorf("%w: %s %s", catalogdomain.ErrCatalogItemUnavailable, what, id)
}
