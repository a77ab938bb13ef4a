package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	orderdomain "github.com/smallbiznis/mealplan/internal/order/domain"
	"gorm.io/gorm"
)

type Repository interface {
	FindByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*Cart, error)
	LockByOwner(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID) (*Cart, error)
	// Create inserts an empty cart unless the owner already has one.
	Create(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, now time.Time) error
	// UpdateItems replaces the lines if the cart is still at version.
	UpdateItems(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, items []Line, version int64, now time.Time) (bool, error)
}

type Service interface {
	Get(ctx context.Context, ownerID snowflake.ID) (Summary, error)
	AddItem(ctx context.Context, req AddItemRequest) (Summary, error)
	UpdateItem(ctx context.Context, req UpdateItemRequest) (Summary, error)
	RemoveItem(ctx context.Context, ownerID, lineID snowflake.ID) (Summary, error)
	Clear(ctx context.Context, ownerID snowflake.ID) (Summary, error)
	// Checkout pays for the cart from the owner's wallet, creates a pending
	// order and empties the cart, all in one transaction.
	Checkout(ctx context.Context, req CheckoutRequest) (orderdomain.Order, error)
}

type AddItemRequest struct {
	OwnerID snowflake.ID
	Item    catalogdomain.LineItem
}

// UpdateItemRequest changes a line; nil fields are left unchanged.
type UpdateItemRequest struct {
	OwnerID  snowflake.ID
	LineID   snowflake.ID
	Quantity *int
	Note     *string
}

type CheckoutRequest struct {
	OwnerID         snowflake.ID
	DeliveryAddress orderdomain.DeliveryAddress
	ContactPhone    string
}

var (
	ErrInvalidOwner        = errors.New("invalid_owner")
	ErrInvalidQuantity     = errors.New("invalid_quantity")
	ErrLineNotFound        = errors.New("cart_line_not_found")
	ErrMixedVendors        = errors.New("mixed_vendors")
	ErrEmptyCart           = errors.New("empty_cart")
	ErrInvalidContactPhone = errors.New("invalid_contact_phone")
	ErrConcurrentUpdate    = errors.New("cart_concurrent_update")
)
