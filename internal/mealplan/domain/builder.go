package domain

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Defaults are the operator policy values a new plan falls back to.
type Defaults struct {
	MaxFailedAttempts int
	Country           string
}

// NewMealPlan validates req and returns a normalized, inactive plan without
// an id or due date. Callers assign both before persisting.
func NewMealPlan(req CreatePlanRequest, defaults Defaults) (MealPlan, error) {
	if req.OwnerID == 0 {
		return MealPlan{}, ErrInvalidOwner
	}

	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > 120 {
		return MealPlan{}, ErrInvalidName
	}

	items, vendorID, err := normalizeItems(req.Items)
	if err != nil {
		return MealPlan{}, err
	}

	schedule := req.Schedule.Normalized()
	if err := schedule.Validate(); err != nil {
		return MealPlan{}, err
	}

	address := req.DeliveryAddress.Normalize(defaults.Country)
	if err := address.Validate(); err != nil {
		return MealPlan{}, err
	}

	phone := strings.TrimSpace(req.ContactPhone)
	if phone == "" {
		return MealPlan{}, ErrInvalidContactPhone
	}

	email := strings.TrimSpace(req.ContactEmail)
	if email != "" {
		parsed, err := mail.ParseAddress(email)
		if err != nil {
			return MealPlan{}, ErrInvalidContactEmail
		}
		email = parsed.Address
	}

	if req.MinimumBalance < 0 {
		return MealPlan{}, ErrInvalidMinimumBalance
	}

	maxFailed := req.MaxFailedAttempts
	if maxFailed == 0 {
		maxFailed = defaults.MaxFailedAttempts
	}
	if maxFailed <= 0 {
		return MealPlan{}, ErrInvalidMaxFailedAttempts
	}

	prefs := DefaultNotificationPreferences()
	if req.Preferences != nil {
		prefs = *req.Preferences
	}

	return MealPlan{
		OwnerID:           req.OwnerID,
		VendorID:          vendorID,
		Name:              name,
		Items:             datatypes.NewJSONSlice(items),
		Schedule:          datatypes.NewJSONType(schedule),
		DeliveryAddress:   datatypes.NewJSONType(address),
		ContactPhone:      phone,
		ContactEmail:      email,
		Preferences:       datatypes.NewJSONType(prefs),
		MinimumBalance:    req.MinimumBalance,
		MaxFailedAttempts: maxFailed,
	}, nil
}

// ToRequest rebuilds the create request a plan was made from, so patches can
// be validated through NewMealPlan.
func (p MealPlan) ToRequest() CreatePlanRequest {
	prefs := p.Preferences.Data()
	return CreatePlanRequest{
		OwnerID:           p.OwnerID,
		Name:              p.Name,
		Items:             []PlanItem(p.Items),
		Schedule:          p.Schedule.Data(),
		DeliveryAddress:   p.DeliveryAddress.Data(),
		ContactPhone:      p.ContactPhone,
		ContactEmail:      p.ContactEmail,
		Preferences:       &prefs,
		MinimumBalance:    p.MinimumBalance,
		MaxFailedAttempts: p.MaxFailedAttempts,
	}
}

// Apply merges the non-nil fields of req into base.
func (req UpdatePlanRequest) Apply(base CreatePlanRequest) CreatePlanRequest {
	if req.Name != nil {
		base.Name = *req.Name
	}
	if req.Items != nil {
		base.Items = req.Items
	}
	if req.Schedule != nil {
		base.Schedule = *req.Schedule
	}
	if req.DeliveryAddress != nil {
		base.DeliveryAddress = *req.DeliveryAddress
	}
	if req.ContactPhone != nil {
		base.ContactPhone = *req.ContactPhone
	}
	if req.ContactEmail != nil {
		base.ContactEmail = *req.ContactEmail
	}
	if req.Preferences != nil {
		prefs := *req.Preferences
		base.Preferences = &prefs
	}
	if req.MinimumBalance != nil {
		base.MinimumBalance = *req.MinimumBalance
	}
	if req.MaxFailedAttempts != nil {
		base.MaxFailedAttempts = *req.MaxFailedAttempts
	}
	return base
}

func normalizeItems(items []PlanItem) ([]PlanItem, snowflake.ID, error) {
	if len(items) == 0 {
		return nil, 0, ErrInvalidItems
	}
	var vendorID snowflake.ID
	out := make([]PlanItem, 0, len(items))
	for i, item := range items {
		if item.MenuItemID == 0 || item.VendorID == 0 {
			return nil, 0, fmt.Errorf("%w: item %d has no menu item or vendor", ErrInvalidItems, i)
		}
		if vendorID == 0 {
			vendorID = item.VendorID
		}
		if item.VendorID != vendorID {
			return nil, 0, ErrMixedVendors
		}
		if item.Quantity < 1 {
			return nil, 0, ErrInvalidQuantity
		}
		for _, sel := range item.Modifiers {
			if !sel.Kind.Valid() || sel.ModifierID == 0 || sel.Count < 0 {
				return nil, 0, fmt.Errorf("%w: item %d", ErrInvalidModifier, i)
			}
		}
		item.Note = strings.TrimSpace(item.Note)
		out = append(out, item)
	}
	return out, vendorID, nil
}

// DueDateOf returns the plan's due date or the zero time.
func (p MealPlan) DueDateOf() time.Time {
	if p.NextDueDate == nil {
		return time.Time{}
	}
	return DateOf(*p.NextDueDate)
}
