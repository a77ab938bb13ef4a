package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/pkg/db/pagination"
	"gorm.io/gorm"
)

type Service interface {
	Credit(ctx context.Context, req CreditRequest) (Result, error)
	Debit(ctx context.Context, req DebitRequest) (Result, error)
	// CreditTx and DebitTx run inside the caller's transaction. Conflicts are
	// returned as ErrLedgerConflict and the caller decides whether to retry.
	CreditTx(ctx context.Context, tx *gorm.DB, req CreditRequest) (Result, error)
	DebitTx(ctx context.Context, tx *gorm.DB, req DebitRequest) (Result, error)
	Balance(ctx context.Context, ownerID snowflake.ID) (int64, error)
	History(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

type DebitRequest struct {
	OwnerID        snowflake.ID
	Amount         int64
	Reference      string
	RelatedOrderID *snowflake.ID
	Description    string
}

type CreditRequest struct {
	OwnerID     snowflake.ID
	Amount      int64
	Reference   string
	Description string
}

type Result struct {
	NewBalance int64
	Entry      LedgerEntry
}

type HistoryRequest struct {
	OwnerID   snowflake.ID
	PageToken string
	PageSize  int
}

type HistoryResponse struct {
	Entries  []LedgerEntry
	PageInfo pagination.PageInfo
}

var (
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrDuplicateReference  = errors.New("duplicate_reference")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidReference    = errors.New("invalid_reference")
	ErrInvalidOwner        = errors.New("invalid_owner")
	ErrLedgerConflict      = errors.New("ledger_conflict")
)

// InsufficientBalanceError carries the amounts behind a rejected debit.
type InsufficientBalanceError struct {
	Required  int64
	Available int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("%s: required %d, available %d", ErrInsufficientBalance, e.Required, e.Available)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }
