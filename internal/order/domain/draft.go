package domain

import (
	"crypto/rand"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
)

// Draft is a priced order that has not been persisted yet.
type Draft struct {
	OwnerID         snowflake.ID
	VendorID        snowflake.ID
	MealPlanID      *snowflake.ID
	Source          OrderSource
	Items           []OrderItem
	Subtotal        int64
	DeliveryFee     int64
	Tax             int64
	Total           int64
	Payment         Payment
	DeliveryAddress DeliveryAddress
	ContactPhone    string
	ScheduledFor    *time.Time
}

// MarkPaid records a completed wallet payment. Only call it after the ledger
// debit for Total has committed or is part of the same transaction.
func (d *Draft) MarkPaid(reference, transactionID string) {
	d.Payment.Status = PaymentStatusCompleted
	d.Payment.Reference = reference
	d.Payment.TransactionID = transactionID
}

// Build turns the draft into an order row.
func (d Draft) Build(id snowflake.ID, status OrderStatus, now time.Time) Order {
	return Order{
		ID:              id,
		OrderNumber:     NewOrderNumber(now),
		OwnerID:         d.OwnerID,
		VendorID:        d.VendorID,
		MealPlanID:      d.MealPlanID,
		Source:          d.Source,
		IsScheduled:     d.Source == OrderSourceMealPlan,
		Items:           datatypes.NewJSONSlice(d.Items),
		Subtotal:        d.Subtotal,
		DeliveryFee:     d.DeliveryFee,
		Tax:             d.Tax,
		Total:           d.Total,
		Status:          status,
		Payment:         datatypes.NewJSONType(d.Payment),
		DeliveryAddress: datatypes.NewJSONType(d.DeliveryAddress),
		ContactPhone:    d.ContactPhone,
		ScheduledFor:    d.ScheduledFor,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// NewOrderNumber returns a sortable, human-quotable order number.
func NewOrderNumber(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader)
	return "ORD-" + id.String()
}
