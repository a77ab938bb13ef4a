package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/clock"
	ledgerdomain "github.com/smallbiznis/mealplan/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/mealplan/internal/observability/metrics"
	"github.com/smallbiznis/mealplan/pkg/db"
	"github.com/smallbiznis/mealplan/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxConflictAttempts = 3

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock         `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Debit(ctx context.Context, req ledgerdomain.DebitRequest) (ledgerdomain.Result, error) {
	result, err := s.withRetry(ctx, req.OwnerID, func(tx *gorm.DB) (ledgerdomain.Result, error) {
		return s.DebitTx(ctx, tx, req)
	})
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	s.obsMetrics.RecordLedgerEntry(ctx, string(ledgerdomain.LedgerEntryDirectionDebit), req.Amount)
	return result, nil
}

func (s *Service) Credit(ctx context.Context, req ledgerdomain.CreditRequest) (ledgerdomain.Result, error) {
	result, err := s.withRetry(ctx, req.OwnerID, func(tx *gorm.DB) (ledgerdomain.Result, error) {
		return s.CreditTx(ctx, tx, req)
	})
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	s.obsMetrics.RecordLedgerEntry(ctx, string(ledgerdomain.LedgerEntryDirectionCredit), req.Amount)
	return result, nil
}

// DebitTx removes req.Amount from the owner's balance and appends the entry.
// The balance check and the decrement are one conditional UPDATE, so two
// concurrent debits can never take the balance below zero.
func (s *Service) DebitTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.DebitRequest) (ledgerdomain.Result, error) {
	reference, err := validate(req.OwnerID, req.Amount, req.Reference)
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	if err := s.ensureUnusedReference(ctx, tx, reference); err != nil {
		return ledgerdomain.Result{}, err
	}

	now := s.clock.Now()
	result := tx.WithContext(ctx).Exec(
		`UPDATE accounts
		 SET balance = balance - ?, updated_at = ?
		 WHERE owner_id = ? AND balance >= ?`,
		req.Amount,
		now,
		req.OwnerID,
		req.Amount,
	)
	if result.Error != nil {
		return ledgerdomain.Result{}, wrapConflict(result.Error)
	}
	if result.RowsAffected == 0 {
		available, err := s.balance(ctx, tx, req.OwnerID)
		if err != nil {
			return ledgerdomain.Result{}, wrapConflict(err)
		}
		return ledgerdomain.Result{}, &ledgerdomain.InsufficientBalanceError{
			Required:  req.Amount,
			Available: available,
		}
	}

	return s.appendEntry(ctx, tx, ledgerdomain.LedgerEntry{
		OwnerID:        req.OwnerID,
		Amount:         req.Amount,
		Direction:      ledgerdomain.LedgerEntryDirectionDebit,
		Reference:      reference,
		RelatedOrderID: req.RelatedOrderID,
		Description:    strings.TrimSpace(req.Description),
		CreatedAt:      now,
	})
}

// CreditTx adds req.Amount to the owner's balance, opening the account on first use.
func (s *Service) CreditTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.CreditRequest) (ledgerdomain.Result, error) {
	reference, err := validate(req.OwnerID, req.Amount, req.Reference)
	if err != nil {
		return ledgerdomain.Result{}, err
	}
	if err := s.ensureUnusedReference(ctx, tx, reference); err != nil {
		return ledgerdomain.Result{}, err
	}

	now := s.clock.Now()
	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO accounts (owner_id, balance, created_at, updated_at)
		 VALUES (?, 0, ?, ?)
		 ON CONFLICT (owner_id) DO NOTHING`,
		req.OwnerID,
		now,
		now,
	).Error; err != nil {
		return ledgerdomain.Result{}, wrapConflict(err)
	}

	if err := tx.WithContext(ctx).Exec(
		`UPDATE accounts SET balance = balance + ?, updated_at = ? WHERE owner_id = ?`,
		req.Amount,
		now,
		req.OwnerID,
	).Error; err != nil {
		return ledgerdomain.Result{}, wrapConflict(err)
	}

	return s.appendEntry(ctx, tx, ledgerdomain.LedgerEntry{
		OwnerID:     req.OwnerID,
		Amount:      req.Amount,
		Direction:   ledgerdomain.LedgerEntryDirectionCredit,
		Reference:   reference,
		Description: strings.TrimSpace(req.Description),
		CreatedAt:   now,
	})
}

func (s *Service) Balance(ctx context.Context, ownerID snowflake.ID) (int64, error) {
	if ownerID == 0 {
		return 0, ledgerdomain.ErrInvalidOwner
	}
	return s.balance(ctx, s.db, ownerID)
}

// History lists entries newest first.
func (s *Service) History(ctx context.Context, req ledgerdomain.HistoryRequest) (ledgerdomain.HistoryResponse, error) {
	if req.OwnerID == 0 {
		return ledgerdomain.HistoryResponse{}, ledgerdomain.ErrInvalidOwner
	}
	beforeID, err := pagination.DecodeIDCursor(req.PageToken)
	if err != nil {
		return ledgerdomain.HistoryResponse{}, err
	}
	limit := pagination.NormalizePageSize(req.PageSize)

	stmt := `SELECT id, owner_id, amount, direction, reference, related_order_id, balance_after, description, created_at
		FROM ledger_entries WHERE owner_id = ?`
	args := []any{req.OwnerID}
	if beforeID != 0 {
		stmt += ` AND id < ?`
		args = append(args, beforeID)
	}
	stmt += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit+1)

	var entries []ledgerdomain.LedgerEntry
	if err := s.db.WithContext(ctx).Raw(stmt, args...).Scan(&entries).Error; err != nil {
		return ledgerdomain.HistoryResponse{}, err
	}

	page, info := pagination.BuildCursorPageInfo(entries, limit, func(e ledgerdomain.LedgerEntry) pagination.Cursor {
		return pagination.Cursor{ID: e.ID.String(), CreatedAt: e.CreatedAt.Format(time.RFC3339)}
	})
	return ledgerdomain.HistoryResponse{Entries: page, PageInfo: info}, nil
}

func (s *Service) withRetry(ctx context.Context, ownerID snowflake.ID, fn func(tx *gorm.DB) (ledgerdomain.Result, error)) (ledgerdomain.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= maxConflictAttempts; attempt++ {
		var result ledgerdomain.Result
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			r, err := fn(tx)
			if err != nil {
				return err
			}
			result = r
			return nil
		})
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ledgerdomain.ErrLedgerConflict) {
			return ledgerdomain.Result{}, err
		}
		lastErr = err
		s.log.Warn("ledger transaction conflict",
			zap.String("owner_id", ownerID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return ledgerdomain.Result{}, lastErr
}

func (s *Service) ensureUnusedReference(ctx context.Context, tx *gorm.DB, reference string) error {
	var count int64
	if err := tx.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM ledger_entries WHERE reference = ?`,
		reference,
	).Scan(&count).Error; err != nil {
		return wrapConflict(err)
	}
	if count > 0 {
		return ledgerdomain.ErrDuplicateReference
	}
	return nil
}

func (s *Service) appendEntry(ctx context.Context, tx *gorm.DB, entry ledgerdomain.LedgerEntry) (ledgerdomain.Result, error) {
	balance, err := s.balance(ctx, tx, entry.OwnerID)
	if err != nil {
		return ledgerdomain.Result{}, wrapConflict(err)
	}
	entry.ID = s.genID.Generate()
	entry.BalanceAfter = balance

	if err := tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (
			id, owner_id, amount, direction, reference, related_order_id, balance_after, description, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.OwnerID,
		entry.Amount,
		string(entry.Direction),
		entry.Reference,
		entry.RelatedOrderID,
		entry.BalanceAfter,
		entry.Description,
		entry.CreatedAt,
	).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return ledgerdomain.Result{}, ledgerdomain.ErrDuplicateReference
		}
		return ledgerdomain.Result{}, wrapConflict(err)
	}

	return ledgerdomain.Result{NewBalance: balance, Entry: entry}, nil
}

func (s *Service) balance(ctx context.Context, q *gorm.DB, ownerID snowflake.ID) (int64, error) {
	var balance int64
	if err := q.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(balance), 0) FROM accounts WHERE owner_id = ?`,
		ownerID,
	).Scan(&balance).Error; err != nil {
		return 0, err
	}
	return balance, nil
}

func validate(ownerID snowflake.ID, amount int64, reference string) (string, error) {
	if ownerID == 0 {
		return "", ledgerdomain.ErrInvalidOwner
	}
	if amount <= 0 {
		return "", ledgerdomain.ErrInvalidAmount
	}
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return "", ledgerdomain.ErrInvalidReference
	}
	return reference, nil
}

func wrapConflict(err error) error {
	if err == nil {
		return nil
	}
	if db.IsConflictErr(err) {
		return fmt.Errorf("%w: %v", ledgerdomain.ErrLedgerConflict, err)
	}
	return err
}
