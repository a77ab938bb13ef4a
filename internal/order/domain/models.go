package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	"gorm.io/datatypes"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusPreparing  OrderStatus = "preparing"
	OrderStatusReady      OrderStatus = "ready"
	OrderStatusOnDelivery OrderStatus = "on_delivery"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var statusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:  {OrderStatusReady, OrderStatusCancelled},
	OrderStatusReady:      {OrderStatusOnDelivery},
	OrderStatusOnDelivery: {OrderStatusDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodWallet PaymentMethod = "wallet"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
)

type OrderSource string

const (
	OrderSourceMealPlan OrderSource = "meal_plan"
	OrderSourceCart     OrderSource = "cart"
)

// DeliveryAddress is shared by plans, carts and orders.
type DeliveryAddress struct {
	Street      string       `json:"street"`
	City        string       `json:"city"`
	State       string       `json:"state"`
	Country     string       `json:"country"`
	PostalCode  string       `json:"postal_code,omitempty"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
}

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Normalize trims fields and fills the country when it is empty.
func (a DeliveryAddress) Normalize(defaultCountry string) DeliveryAddress {
	a.Street = strings.TrimSpace(a.Street)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.Country = strings.TrimSpace(a.Country)
	a.PostalCode = strings.TrimSpace(a.PostalCode)
	if a.Country == "" {
		a.Country = defaultCountry
	}
	return a
}

func (a DeliveryAddress) Validate() error {
	if a.Street == "" || a.City == "" || a.State == "" {
		return ErrInvalidDeliveryAddress
	}
	if c := a.Coordinates; c != nil {
		if c.Latitude < -90 || c.Latitude > 90 || c.Longitude < -180 || c.Longitude > 180 {
			return ErrInvalidDeliveryAddress
		}
	}
	return nil
}

// OrderOption is a copied package option.
type OrderOption struct {
	ID    snowflake.ID `json:"id"`
	Name  string       `json:"name"`
	Price int64        `json:"price"`
}

// OrderModifier is a copied modifier selection.
type OrderModifier struct {
	Kind       catalogdomain.ModifierKind `json:"kind"`
	ModifierID snowflake.ID               `json:"modifier_id"`
	Name       string                     `json:"name"`
	UnitPrice  int64                      `json:"unit_price"`
	Count      int                        `json:"count"`
}

// OrderItem holds names and prices as they were when the order was created.
type OrderItem struct {
	MenuItemID    snowflake.ID    `json:"menu_item_id"`
	Name          string          `json:"name"`
	BasePrice     int64           `json:"base_price"`
	PackageOption *OrderOption    `json:"package_option,omitempty"`
	Modifiers     []OrderModifier `json:"modifiers,omitempty"`
	UnitPrice     int64           `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	LineTotal     int64           `json:"line_total"`
	Note          string          `json:"note,omitempty"`
}

type Payment struct {
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	Amount        int64         `json:"amount"`
	Reference     string        `json:"reference,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
}

// Order is an immutable snapshot except for Status and DeliveryPerson.
type Order struct {
	ID              snowflake.ID                        `gorm:"primaryKey"`
	OrderNumber     string                              `gorm:"type:text;not null;uniqueIndex"`
	OwnerID         snowflake.ID                        `gorm:"not null;index"`
	VendorID        snowflake.ID                        `gorm:"not null;index"`
	MealPlanID      *snowflake.ID                       `gorm:"index"`
	Source          OrderSource                         `gorm:"type:text;not null"`
	IsScheduled     bool                                `gorm:"not null;default:false"`
	Items           datatypes.JSONSlice[OrderItem]      `gorm:"not null"`
	Subtotal        int64                               `gorm:"not null"`
	DeliveryFee     int64                               `gorm:"not null"`
	Tax             int64                               `gorm:"not null"`
	Total           int64                               `gorm:"not null"`
	Status          OrderStatus                         `gorm:"type:text;not null;index"`
	Payment         datatypes.JSONType[Payment]         `gorm:"not null"`
	DeliveryAddress datatypes.JSONType[DeliveryAddress] `gorm:"not null"`
	ContactPhone    string                              `gorm:"type:text;not null"`
	DeliveryPerson  *string                             `gorm:"type:text"`
	ScheduledFor    *time.Time
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
}

func (Order) TableName() string { return "orders" }
