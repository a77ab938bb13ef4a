// Package notification delivers owner-facing notices about meal plans.
package notification

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Kind string

const (
	KindOrderProcessed   Kind = "order_processed"
	KindLowBalance       Kind = "low_balance"
	KindPlanDeactivated  Kind = "plan_deactivated"
	KindUpcomingDelivery Kind = "upcoming_delivery"
)

// Payload carries whatever the kind needs; unused fields stay zero.
type Payload struct {
	PlanID       snowflake.ID
	PlanName     string
	ContactEmail string
	ContactPhone string

	OrderID     *snowflake.ID
	OrderNumber string
	Amount      int64

	Required  int64
	Available int64

	DueDate    *time.Time
	DeliveryAt *time.Time

	Reason         string
	FailedAttempts int
}

//go:generate mockgen -source=notification.go -destination=mocks/mock_gateway.go -package=mocks

// Gateway sends a single notice. Implementations may block on I/O.
type Gateway interface {
	Notify(ctx context.Context, ownerID snowflake.ID, kind Kind, payload Payload) error
}
