package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	"github.com/stretchr/testify/assert"
)

func TestSameSelection(t *testing.T) {
	opt := snowflake.ID(5)
	otherOpt := snowflake.ID(6)
	base := catalogdomain.LineItem{
		MenuItemID:      1,
		PackageOptionID: &opt,
		Modifiers: []catalogdomain.Selection{
			{Kind: catalogdomain.ModifierKindMeat, ModifierID: 3, Count: 1},
			{Kind: catalogdomain.ModifierKindAdditive, ModifierID: 2, Count: 2},
		},
		Quantity: 1,
		Note:     "no onions",
	}

	reordered := base
	reordered.Modifiers = []catalogdomain.Selection{
		{Kind: catalogdomain.ModifierKindAdditive, ModifierID: 2, Count: 2},
		{Kind: catalogdomain.ModifierKindMeat, ModifierID: 3},
	}
	reordered.Quantity = 4
	reordered.Note = ""
	assert.True(t, SameSelection(base, reordered))

	differentOption := base
	differentOption.PackageOptionID = &otherOpt
	assert.False(t, SameSelection(base, differentOption))

	noOption := base
	noOption.PackageOptionID = nil
	assert.False(t, SameSelection(base, noOption))

	differentCount := base
	differentCount.Modifiers = []catalogdomain.Selection{
		{Kind: catalogdomain.ModifierKindMeat, ModifierID: 3, Count: 1},
		{Kind: catalogdomain.ModifierKindAdditive, ModifierID: 2, Count: 3},
	}
	assert.False(t, SameSelection(base, differentCount))
}
