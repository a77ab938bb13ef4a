package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/catalog/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertMenuItem(ctx context.Context, db *gorm.DB, item *domain.MenuItem) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO menu_items (id, vendor_id, name, price, available, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		item.ID,
		item.VendorID,
		item.Name,
		item.Price,
		item.Available,
		item.CreatedAt,
		item.UpdatedAt,
	).Error
}

func (r *repo) InsertPackageOption(ctx context.Context, db *gorm.DB, option *domain.PackageOption) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO package_options (id, vendor_id, name, price, available, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		option.ID,
		option.VendorID,
		option.Name,
		option.Price,
		option.Available,
		option.CreatedAt,
		option.UpdatedAt,
	).Error
}

func (r *repo) InsertModifier(ctx context.Context, db *gorm.DB, modifier *domain.Modifier) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO modifiers (id, vendor_id, kind, name, price, available, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		modifier.ID,
		modifier.VendorID,
		modifier.Kind,
		modifier.Name,
		modifier.Price,
		modifier.Available,
		modifier.CreatedAt,
		modifier.UpdatedAt,
	).Error
}

func (r *repo) SetMenuItemAvailability(ctx context.Context, db *gorm.DB, id snowflake.ID, available bool) error {
	result := db.WithContext(ctx).Exec(
		`UPDATE menu_items SET available = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		available,
		id,
	)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) ListMenuItems(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.MenuItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.MenuItem
	err := db.WithContext(ctx).Raw(
		`SELECT id, vendor_id, name, price, available, created_at, updated_at
		 FROM menu_items WHERE id IN ?`,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListPackageOptions(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.PackageOption, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.PackageOption
	err := db.WithContext(ctx).Raw(
		`SELECT id, vendor_id, name, price, available, created_at, updated_at
		 FROM package_options WHERE id IN ?`,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListModifiers(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]domain.Modifier, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var items []domain.Modifier
	err := db.WithContext(ctx).Raw(
		`SELECT id, vendor_id, kind, name, price, available, created_at, updated_at
		 FROM modifiers WHERE id IN ?`,
		ids,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
