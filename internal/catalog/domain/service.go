package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertMenuItem(ctx context.Context, db *gorm.DB, item *MenuItem) error
	InsertPackageOption(ctx context.Context, db *gorm.DB, option *PackageOption) error
	InsertModifier(ctx context.Context, db *gorm.DB, modifier *Modifier) error
	SetMenuItemAvailability(ctx context.Context, db *gorm.DB, id snowflake.ID, available bool) error
	ListMenuItems(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]MenuItem, error)
	ListPackageOptions(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]PackageOption, error)
	ListModifiers(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Modifier, error)
}

type Service interface {
	CreateMenuItem(ctx context.Context, req CreateMenuItemRequest) (MenuItem, error)
	CreatePackageOption(ctx context.Context, req CreatePackageOptionRequest) (PackageOption, error)
	CreateModifier(ctx context.Context, req CreateModifierRequest) (Modifier, error)
	SetMenuItemAvailability(ctx context.Context, id snowflake.ID, available bool) error
	Snapshot(ctx context.Context, items []LineItem) (*Snapshot, error)
}

type CreateMenuItemRequest struct {
	VendorID snowflake.ID
	Name     string
	Price    int64
}

type CreatePackageOptionRequest struct {
	VendorID snowflake.ID
	Name     string
	Price    int64
}

type CreateModifierRequest struct {
	VendorID snowflake.ID
	Kind     ModifierKind
	Name     string
	Price    int64
}

var (
	ErrCatalogItemUnavailable = errors.New("catalog_item_unavailable")
	ErrCatalogUnavailable     = errors.New("catalog_unavailable")
	ErrInvalidVendor          = errors.New("invalid_vendor")
	ErrInvalidName            = errors.New("invalid_name")
	ErrInvalidPrice           = errors.New("invalid_price")
	ErrInvalidModifierKind    = errors.New("invalid_modifier_kind")
	ErrNotFound               = errors.New("catalog_entry_not_found")
)
