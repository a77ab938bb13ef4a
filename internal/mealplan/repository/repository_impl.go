package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/mealplan/domain"
	"gorm.io/gorm"
)

const planColumns = `id, owner_id, vendor_id, name, items, schedule, delivery_address,
	contact_phone, contact_email, preferences, minimum_balance, active, next_due_date,
	last_processed_at, failed_attempts, max_failed_attempts, reminded_for, cancelled_at,
	created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, plan *domain.MealPlan) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO meal_plans (`+planColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		plan.ID,
		plan.OwnerID,
		plan.VendorID,
		plan.Name,
		plan.Items,
		plan.Schedule,
		plan.DeliveryAddress,
		plan.ContactPhone,
		plan.ContactEmail,
		plan.Preferences,
		plan.MinimumBalance,
		plan.Active,
		plan.NextDueDate,
		plan.LastProcessedAt,
		plan.FailedAttempts,
		plan.MaxFailedAttempts,
		plan.RemindedFor,
		plan.CancelledAt,
		plan.CreatedAt,
		plan.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.MealPlan, error) {
	return r.findOne(ctx, db, `SELECT `+planColumns+` FROM meal_plans WHERE id = ?`, id)
}

func (r *repo) ListByOwner(ctx context.Context, db *gorm.DB, ownerID, beforeID snowflake.ID, limit int) ([]domain.MealPlan, error) {
	stmt := `SELECT ` + planColumns + ` FROM meal_plans WHERE owner_id = ?`
	args := []any{ownerID}
	if beforeID != 0 {
		stmt += ` AND id < ?`
		args = append(args, beforeID)
	}
	stmt += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	var plans []domain.MealPlan
	if err := db.WithContext(ctx).Raw(stmt, args...).Scan(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}

// UpdateDetails writes owner-editable columns. Processor-owned columns other
// than next_due_date are left alone.
func (r *repo) UpdateDetails(ctx context.Context, db *gorm.DB, plan *domain.MealPlan) error {
	return db.WithContext(ctx).Exec(
		`UPDATE meal_plans
		 SET vendor_id = ?, name = ?, items = ?, schedule = ?, delivery_address = ?,
		     contact_phone = ?, contact_email = ?, preferences = ?, minimum_balance = ?,
		     max_failed_attempts = ?, next_due_date = ?, updated_at = ?
		 WHERE id = ?`,
		plan.VendorID,
		plan.Name,
		plan.Items,
		plan.Schedule,
		plan.DeliveryAddress,
		plan.ContactPhone,
		plan.ContactEmail,
		plan.Preferences,
		plan.MinimumBalance,
		plan.MaxFailedAttempts,
		plan.NextDueDate,
		plan.UpdatedAt,
		plan.ID,
	).Error
}

func (r *repo) Pause(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE meal_plans SET active = ?, updated_at = ? WHERE id = ?`,
		false,
		now,
		id,
	).Error
}

func (r *repo) Resume(ctx context.Context, db *gorm.DB, id snowflake.ID, nextDueDate time.Time, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE meal_plans
		 SET active = ?, failed_attempts = 0, next_due_date = ?, updated_at = ?
		 WHERE id = ? AND cancelled_at IS NULL`,
		true,
		nextDueDate,
		now,
		id,
	).Error
}

func (r *repo) Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE meal_plans
		 SET active = ?, cancelled_at = COALESCE(cancelled_at, ?), updated_at = ?
		 WHERE id = ?`,
		false,
		now,
		now,
		id,
	).Error
}

// ListDue pages through plans due at asOf in id order. It takes no locks;
// LockDue re-checks each plan inside the charge transaction.
func (r *repo) ListDue(ctx context.Context, db *gorm.DB, asOf time.Time, afterID snowflake.ID, limit int) ([]domain.MealPlan, error) {
	var plans []domain.MealPlan
	err := db.WithContext(ctx).Raw(
		`SELECT `+planColumns+`
		 FROM meal_plans
		 WHERE active = ?
		   AND next_due_date IS NOT NULL
		   AND next_due_date <= ?
		   AND failed_attempts < max_failed_attempts
		   AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		true,
		asOf,
		afterID,
		limit,
	).Scan(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// LockDue locks a plan for charging if it is still due. A nil plan means it
// was paused, advanced, or is locked by another worker.
func (r *repo) LockDue(ctx context.Context, tx *gorm.DB, id snowflake.ID, asOf time.Time) (*domain.MealPlan, error) {
	return r.findOne(ctx, tx,
		`SELECT `+planColumns+`
		 FROM meal_plans
		 WHERE id = ?
		   AND active = ?
		   AND next_due_date IS NOT NULL
		   AND next_due_date <= ?
		   AND failed_attempts < max_failed_attempts
		 FOR UPDATE SKIP LOCKED`,
		id,
		true,
		asOf,
	)
}

// LockByID waits for the row lock so failure bookkeeping and owner edits are
// never skipped.
func (r *repo) LockByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*domain.MealPlan, error) {
	return r.findOne(ctx, tx, `SELECT `+planColumns+` FROM meal_plans WHERE id = ? FOR UPDATE`, id)
}

// RecordSuccess resets the failure counter and advances the due date. A nil
// due date means the schedule is exhausted and the plan is deactivated.
func (r *repo) RecordSuccess(ctx context.Context, tx *gorm.DB, id snowflake.ID, nextDueDate *time.Time, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE meal_plans
		 SET next_due_date = ?,
		     last_processed_at = ?,
		     failed_attempts = 0,
		     active = CASE WHEN ? THEN active ELSE ? END,
		     updated_at = ?
		 WHERE id = ?`,
		nextDueDate,
		now,
		nextDueDate != nil,
		false,
		now,
		id,
	).Error
}

func (r *repo) RecordFailure(ctx context.Context, tx *gorm.DB, id snowflake.ID, failedAttempts int, deactivate bool, now time.Time) error {
	return tx.WithContext(ctx).Exec(
		`UPDATE meal_plans
		 SET failed_attempts = ?,
		     active = CASE WHEN ? THEN ? ELSE active END,
		     updated_at = ?
		 WHERE id = ?`,
		failedAttempts,
		deactivate,
		false,
		now,
		id,
	).Error
}

// ListUpcoming returns active plans due in [from, to) that have not been
// reminded about that due date yet.
func (r *repo) ListUpcoming(ctx context.Context, db *gorm.DB, from, to time.Time, afterID snowflake.ID, limit int) ([]domain.MealPlan, error) {
	var plans []domain.MealPlan
	err := db.WithContext(ctx).Raw(
		`SELECT `+planColumns+`
		 FROM meal_plans
		 WHERE active = ?
		   AND next_due_date >= ?
		   AND next_due_date < ?
		   AND (reminded_for IS NULL OR reminded_for <> next_due_date)
		   AND id > ?
		 ORDER BY id ASC
		 LIMIT ?`,
		true,
		from,
		to,
		afterID,
		limit,
	).Scan(&plans).Error
	if err != nil {
		return nil, err
	}
	return plans, nil
}

// MarkReminded is a compare-and-set so concurrent reminder passes send once.
func (r *repo) MarkReminded(ctx context.Context, db *gorm.DB, id snowflake.ID, dueDate time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE meal_plans
		 SET reminded_for = ?
		 WHERE id = ? AND next_due_date = ? AND (reminded_for IS NULL OR reminded_for <> ?)`,
		dueDate,
		id,
		dueDate,
		dueDate,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, stmt string, args ...any) (*domain.MealPlan, error) {
	var plan domain.MealPlan
	if err := db.WithContext(ctx).Raw(stmt, args...).Scan(&plan).Error; err != nil {
		return nil, err
	}
	if plan.ID == 0 {
		return nil, nil
	}
	return &plan, nil
}
