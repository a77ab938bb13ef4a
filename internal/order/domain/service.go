package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	"github.com/smallbiznis/mealplan/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Order, error)
	ListByOwner(ctx context.Context, db *gorm.DB, ownerID, beforeID snowflake.ID, limit int) ([]Order, error)
	ListByPlan(ctx context.Context, db *gorm.DB, planID snowflake.ID) ([]Order, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to OrderStatus, deliveryPerson *string, now time.Time) (bool, error)
}

type Service interface {
	Get(ctx context.Context, ownerID, orderID snowflake.ID) (Order, error)
	ListForOwner(ctx context.Context, req ListOrdersRequest) (ListOrdersResponse, error)
	UpdateStatus(ctx context.Context, req UpdateStatusRequest) (Order, error)
}

// MaterializeInput is everything needed to build an order snapshot.
type MaterializeInput struct {
	OwnerID         snowflake.ID
	VendorID        snowflake.ID
	MealPlanID      *snowflake.ID
	Source          OrderSource
	Items           []catalogdomain.LineItem
	DeliveryAddress DeliveryAddress
	ContactPhone    string
	DeliveryFee     int64
	Tax             int64
	ScheduledFor    *time.Time
	Snapshot        *catalogdomain.Snapshot
}

type ListOrdersRequest struct {
	OwnerID   snowflake.ID
	PageToken string
	PageSize  int
}

type ListOrdersResponse struct {
	Orders   []Order
	PageInfo pagination.PageInfo
}

type UpdateStatusRequest struct {
	OrderID        snowflake.ID
	Status         OrderStatus
	DeliveryPerson string
}

var (
	ErrOrderNotFound          = errors.New("order_not_found")
	ErrInvalidStatus          = errors.New("invalid_order_status")
	ErrInvalidTransition      = errors.New("invalid_order_status_transition")
	ErrDeliveryPersonRequired = errors.New("delivery_person_required")
	ErrInvalidDeliveryAddress = errors.New("invalid_delivery_address")
	ErrEmptyOrder             = errors.New("empty_order")
	ErrMixedVendors           = errors.New("mixed_vendors")
	ErrMaxRetriesExceeded     = errors.New("max_retries_exceeded")
	ErrInvalidOwner           = errors.New("invalid_owner")
)
