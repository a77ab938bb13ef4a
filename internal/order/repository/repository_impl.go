package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/order/domain"
	"gorm.io/gorm"
)

const orderColumns = `id, order_number, owner_id, vendor_id, meal_plan_id, source, is_scheduled,
	items, subtotal, delivery_fee, tax, total, status, payment, delivery_address,
	contact_phone, delivery_person, scheduled_for, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (`+orderColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.OrderNumber,
		order.OwnerID,
		order.VendorID,
		order.MealPlanID,
		order.Source,
		order.IsScheduled,
		order.Items,
		order.Subtotal,
		order.DeliveryFee,
		order.Tax,
		order.Total,
		order.Status,
		order.Payment,
		order.DeliveryAddress,
		order.ContactPhone,
		order.DeliveryPerson,
		order.ScheduledFor,
		order.CreatedAt,
		order.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`,
		id,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, nil
	}
	return &order, nil
}

// ListByOwner returns newest orders first. Pass limit+1 to detect another page.
func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, ownerID, beforeID snowflake.ID, limit int) ([]domain.Order, error) {
	stmt := `SELECT ` + orderColumns + ` FROM orders WHERE owner_id = ?`
	args := []any{ownerID}
	if beforeID != 0 {
		stmt += ` AND id < ?`
		args = append(args, beforeID)
	}
	stmt += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var orders []domain.Order
	if err := db.WithContext(ctx).Raw(stmt, args...).Scan(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) ListByPlan(ctx context.Context, db *gorm.DB, planID snowflake.ID) ([]domain.Order, error) {
	var orders []domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT `+orderColumns+` FROM orders WHERE meal_plan_id = ? ORDER BY id ASC`,
		planID,
	).Scan(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus is a compare-and-set on status; false means another writer got there first.
func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.OrderStatus, deliveryPerson *string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET status = ?, delivery_person = COALESCE(?, delivery_person), updated_at = ?
		 WHERE id = ? AND status = ?`,
		to,
		deliveryPerson,
		now,
		id,
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
