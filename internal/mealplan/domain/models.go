package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	orderdomain "github.com/smallbiznis/mealplan/internal/order/domain"
	"gorm.io/datatypes"
)

type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyCustom   Frequency = "custom"
)

// PlanItem is one dish ordered on every cycle.
type PlanItem = catalogdomain.LineItem

// NotificationPreferences gates the optional notices. Deactivation notices are always sent.
type NotificationPreferences struct {
	LowBalance     bool `json:"low_balance"`
	UpcomingOrder  bool `json:"upcoming_order"`
	OrderProcessed bool `json:"order_processed"`
}

func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{LowBalance: true, UpcomingOrder: true, OrderProcessed: true}
}

// MealPlan is a recurring order paid from the owner's wallet.
//
// Owner operations write the descriptive columns and active/cancelled_at.
// The processor writes next_due_date, last_processed_at, failed_attempts,
// reminded_for, and may only ever set active to false.
type MealPlan struct {
	ID                snowflake.ID                                    `gorm:"primaryKey"`
	OwnerID           snowflake.ID                                    `gorm:"not null;index"`
	VendorID          snowflake.ID                                    `gorm:"not null"`
	Name              string                                          `gorm:"type:text;not null"`
	Items             datatypes.JSONSlice[PlanItem]                   `gorm:"not null"`
	Schedule          datatypes.JSONType[Schedule]                    `gorm:"not null"`
	DeliveryAddress   datatypes.JSONType[orderdomain.DeliveryAddress] `gorm:"not null"`
	ContactPhone      string                                          `gorm:"type:text;not null"`
	ContactEmail      string                                          `gorm:"type:text"`
	Preferences       datatypes.JSONType[NotificationPreferences]     `gorm:"not null"`
	MinimumBalance    int64                                           `gorm:"not null;default:0"`
	Active            bool                                            `gorm:"not null;index:idx_meal_plans_due,priority:1"`
	NextDueDate       *time.Time                                      `gorm:"index:idx_meal_plans_due,priority:2"`
	LastProcessedAt   *time.Time
	FailedAttempts    int `gorm:"not null;default:0"`
	MaxFailedAttempts int `gorm:"not null;default:3"`
	RemindedFor       *time.Time
	CancelledAt       *time.Time
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (MealPlan) TableName() string { return "meal_plans" }

func (p MealPlan) Cancelled() bool { return p.CancelledAt != nil }

// ChargeReference is the ledger idempotency key for one cycle of a plan.
func ChargeReference(planID snowflake.ID, dueDate time.Time) string {
	return planID.String() + "-" + DateOf(dueDate).Format("2006-01-02")
}
