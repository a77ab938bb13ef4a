package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	orderdomain "github.com/smallbiznis/mealplan/internal/order/domain"
	"github.com/smallbiznis/mealplan/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *MealPlan) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*MealPlan, error)
	ListByOwner(ctx context.Context, db *gorm.DB, ownerID, beforeID snowflake.ID, limit int) ([]MealPlan, error)
	UpdateDetails(ctx context.Context, db *gorm.DB, plan *MealPlan) error
	Pause(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error
	Resume(ctx context.Context, db *gorm.DB, id snowflake.ID, nextDueDate time.Time, now time.Time) error
	Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) error

	// Processor access.
	ListDue(ctx context.Context, db *gorm.DB, asOf time.Time, afterID snowflake.ID, limit int) ([]MealPlan, error)
	LockDue(ctx context.Context, tx *gorm.DB, id snowflake.ID, asOf time.Time) (*MealPlan, error)
	LockByID(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*MealPlan, error)
	RecordSuccess(ctx context.Context, tx *gorm.DB, id snowflake.ID, nextDueDate *time.Time, now time.Time) error
	RecordFailure(ctx context.Context, tx *gorm.DB, id snowflake.ID, failedAttempts int, deactivate bool, now time.Time) error
	ListUpcoming(ctx context.Context, db *gorm.DB, from, to time.Time, afterID snowflake.ID, limit int) ([]MealPlan, error)
	MarkReminded(ctx context.Context, db *gorm.DB, id snowflake.ID, dueDate time.Time) (bool, error)
}

type Service interface {
	Create(ctx context.Context, req CreatePlanRequest) (MealPlan, error)
	Update(ctx context.Context, req UpdatePlanRequest) (MealPlan, error)
	Pause(ctx context.Context, ownerID, planID snowflake.ID) (MealPlan, error)
	Resume(ctx context.Context, ownerID, planID snowflake.ID) (MealPlan, error)
	Cancel(ctx context.Context, ownerID, planID snowflake.ID) (MealPlan, error)
	Get(ctx context.Context, ownerID, planID snowflake.ID) (MealPlan, error)
	ListForOwner(ctx context.Context, req ListPlansRequest) (ListPlansResponse, error)
}

type CreatePlanRequest struct {
	OwnerID           snowflake.ID
	Name              string
	Items             []PlanItem
	Schedule          Schedule
	DeliveryAddress   orderdomain.DeliveryAddress
	ContactPhone      string
	ContactEmail      string
	Preferences       *NotificationPreferences
	MinimumBalance    int64
	MaxFailedAttempts int
}

// UpdatePlanRequest patches a plan; nil fields are left unchanged.
type UpdatePlanRequest struct {
	OwnerID           snowflake.ID
	PlanID            snowflake.ID
	Name              *string
	Items             []PlanItem
	Schedule          *Schedule
	DeliveryAddress   *orderdomain.DeliveryAddress
	ContactPhone      *string
	ContactEmail      *string
	Preferences       *NotificationPreferences
	MinimumBalance    *int64
	MaxFailedAttempts *int
}

type ListPlansRequest struct {
	OwnerID    snowflake.ID
	PageToken  string
	PageSize   int
}

type ListPlansResponse struct {
	Plans    []MealPlan
	PageInfo pagination.PageInfo
}

var (
	ErrInvalidSchedule          = errors.New("invalid_schedule")
	ErrInvalidOwner             = errors.New("invalid_owner")
	ErrInvalidName              = errors.New("invalid_name")
	ErrInvalidItems             = errors.New("invalid_items")
	ErrInvalidQuantity          = errors.New("invalid_quantity")
	ErrInvalidModifier          = errors.New("invalid_modifier")
	ErrMixedVendors             = errors.New("mixed_vendors")
	ErrInvalidContactPhone      = errors.New("invalid_contact_phone")
	ErrInvalidContactEmail      = errors.New("invalid_contact_email")
	ErrInvalidMinimumBalance    = errors.New("invalid_minimum_balance")
	ErrInvalidMaxFailedAttempts = errors.New("invalid_max_failed_attempts")
	ErrScheduleExhausted        = errors.New("schedule_exhausted")
	ErrMaxRetriesExceeded       = errors.New("max_retries_exceeded")
	ErrPlanNotFound             = errors.New("plan_not_found")
	ErrPlanCancelled            = errors.New("plan_cancelled")
)
