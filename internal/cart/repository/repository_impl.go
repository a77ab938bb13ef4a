package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/cart/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByOwner(ctx context.Context, db *gorm.DB, ownerID snowflake.ID) (*domain.Cart, error) {
	return r.findOne(ctx, db,
		`SELECT owner_id, items, version, created_at, updated_at FROM carts WHERE owner_id = ?`,
		ownerID,
	)
}

func (r *repo) LockByOwner(ctx context.Context, tx *gorm.DB, ownerID snowflake.ID) (*domain.Cart, error) {
	return r.findOne(ctx, tx,
		`SELECT owner_id, items, version, created_at, updated_at FROM carts WHERE owner_id = ? FOR UPDATE`,
		ownerID,
	)
}

func (r *repo) Create(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO carts (owner_id, items, version, created_at, updated_at)
		 VALUES (?, ?, 0, ?, ?)
		 ON CONFLICT (owner_id) DO NOTHING`,
		ownerID,
		datatypes.NewJSONSlice([]domain.Line{}),
		now,
		now,
	).Error
}

func (r *repo) UpdateItems(ctx context.Context, db *gorm.DB, ownerID snowflake.ID, items []domain.Line, version int64, now time.Time) (bool, error) {
	if items == nil {
		items = []domain.Line{}
	}
	result := db.WithContext(ctx).Exec(
		`UPDATE carts
		 SET items = ?, version = version + 1, updated_at = ?
		 WHERE owner_id = ? AND version = ?`,
		datatypes.NewJSONSlice(items),
		now,
		ownerID,
		version,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, stmt string, args ...any) (*domain.Cart, error) {
	var cart domain.Cart
	if err := db.WithContext(ctx).Raw(stmt, args...).Scan(&cart).Error; err != nil {
		return nil, err
	}
	if cart.OwnerID == 0 {
		return nil, nil
	}
	return &cart, nil
}
