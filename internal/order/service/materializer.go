package service

import (
	"strings"

	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	"github.com/smallbiznis/mealplan/internal/order/domain"
	"github.com/smallbiznis/mealplan/internal/pricing"
)

// Materialize prices the items against the snapshot and copies every name and
// price into a draft. It does not check the owner's balance.
func Materialize(in domain.MaterializeInput) (domain.Draft, error) {
	if in.OwnerID == 0 {
		return domain.Draft{}, domain.ErrInvalidOwner
	}
	if len(in.Items) == 0 {
		return domain.Draft{}, domain.ErrEmptyOrder
	}

	draft := domain.Draft{
		OwnerID:         in.OwnerID,
		VendorID:        in.VendorID,
		MealPlanID:      in.MealPlanID,
		Source:          in.Source,
		Items:           make([]domain.OrderItem, 0, len(in.Items)),
		DeliveryFee:     in.DeliveryFee,
		Tax:             in.Tax,
		DeliveryAddress: in.DeliveryAddress,
		ContactPhone:    strings.TrimSpace(in.ContactPhone),
		ScheduledFor:    in.ScheduledFor,
	}

	for _, item := range in.Items {
		line, err := pricing.Resolve(item, in.Snapshot)
		if err != nil {
			return domain.Draft{}, err
		}
		if draft.VendorID == 0 {
			draft.VendorID = line.MenuItem.VendorID
		}
		if line.MenuItem.VendorID != draft.VendorID {
			return domain.Draft{}, domain.ErrMixedVendors
		}
		draft.Items = append(draft.Items, copyLine(item, line))
		draft.Subtotal += line.LineTotal
	}

	draft.Total = draft.Subtotal + draft.DeliveryFee + draft.Tax
	draft.Payment = domain.Payment{
		Method: domain.PaymentMethodWallet,
		Status: domain.PaymentStatusPending,
		Amount: draft.Total,
	}
	return draft, nil
}

func copyLine(item catalogdomain.LineItem, line pricing.ResolvedLine) domain.OrderItem {
	out := domain.OrderItem{
		MenuItemID: line.MenuItem.ID,
		Name:       line.MenuItem.Name,
		BasePrice:  line.MenuItem.Price,
		UnitPrice:  line.UnitPrice,
		Quantity:   line.Quantity,
		LineTotal:  line.LineTotal,
		Note:       strings.TrimSpace(item.Note),
	}
	if opt := line.PackageOption; opt != nil {
		out.PackageOption = &domain.OrderOption{ID: opt.ID, Name: opt.Name, Price: opt.Price}
	}
	for _, mod := range line.Modifiers {
		out.Modifiers = append(out.Modifiers, domain.OrderModifier{
			Kind:       mod.Modifier.Kind,
			ModifierID: mod.Modifier.ID,
			Name:       mod.Modifier.Name,
			UnitPrice:  mod.Modifier.Price,
			Count:      mod.Count,
		})
	}
	return out
}
