package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// LedgerEntryDirection represents debit or credit postings.
type LedgerEntryDirection string

const (
	LedgerEntryDirectionDebit  LedgerEntryDirection = "debit"
	LedgerEntryDirectionCredit LedgerEntryDirection = "credit"
)

// Account holds an owner's prepaid balance. The balance is only written
// inside a ledger transaction together with the entry that explains it.
type Account struct {
	OwnerID   snowflake.ID `gorm:"primaryKey;autoIncrement:false"`
	Balance   int64        `gorm:"not null;default:0;check:balance >= 0"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (Account) TableName() string { return "accounts" }

// LedgerEntry is an append-only record of one balance movement.
type LedgerEntry struct {
	ID             snowflake.ID         `gorm:"primaryKey"`
	OwnerID        snowflake.ID         `gorm:"not null;index"`
	Amount         int64                `gorm:"not null"`
	Direction      LedgerEntryDirection `gorm:"type:text;not null"`
	Reference      string               `gorm:"type:text;not null;uniqueIndex"`
	RelatedOrderID *snowflake.ID        `gorm:"index"`
	BalanceAfter   int64                `gorm:"not null"`
	Description    string               `gorm:"type:text"`
	CreatedAt      time.Time            `gorm:"not null"`
}

// TableName sets the database table name.
func (LedgerEntry) TableName() string { return "ledger_entries" }

// Signed returns the entry amount with debits negated.
func (e LedgerEntry) Signed() int64 {
	if e.Direction == LedgerEntryDirectionDebit {
		return -e.Amount
	}
	return e.Amount
}
