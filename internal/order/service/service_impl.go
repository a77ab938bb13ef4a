package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/clock"
	"github.com/smallbiznis/mealplan/internal/order/domain"
	"github.com/smallbiznis/mealplan/pkg/db"
	"github.com/smallbiznis/mealplan/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const statusUpdateAttempts = 3

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  domain.Repository
	clock clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("order.service"),
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) Get(ctx context.Context, ownerID, orderID snowflake.ID) (domain.Order, error) {
	order, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order == nil || order.OwnerID != ownerID {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return *order, nil
}

func (s *Service) ListForOwner(ctx context.Context, req domain.ListOrdersRequest) (domain.ListOrdersResponse, error) {
	if req.OwnerID == 0 {
		return domain.ListOrdersResponse{}, domain.ErrInvalidOwner
	}
	beforeID, err := pagination.DecodeIDCursor(req.PageToken)
	if err != nil {
		return domain.ListOrdersResponse{}, err
	}
	limit := pagination.NormalizePageSize(req.PageSize)

	orders, err := s.repo.ListByOwner(ctx, s.db, req.OwnerID, beforeID, limit+1)
	if err != nil {
		return domain.ListOrdersResponse{}, err
	}
	page, info := pagination.BuildCursorPageInfo(orders, limit, func(o domain.Order) pagination.Cursor {
		return pagination.Cursor{ID: o.ID.String(), CreatedAt: o.CreatedAt.Format(time.RFC3339)}
	})
	return domain.ListOrdersResponse{Orders: page, PageInfo: info}, nil
}

// UpdateStatus applies one transition from the status table. Lost races and
// transient lock conflicts are retried a few times before giving up.
func (s *Service) UpdateStatus(ctx context.Context, req domain.UpdateStatusRequest) (domain.Order, error) {
	target := domain.OrderStatus(strings.TrimSpace(string(req.Status)))
	if !isKnownStatus(target) {
		return domain.Order{}, domain.ErrInvalidStatus
	}
	var deliveryPerson *string
	if target == domain.OrderStatusOnDelivery {
		person := strings.TrimSpace(req.DeliveryPerson)
		if person == "" {
			return domain.Order{}, domain.ErrDeliveryPersonRequired
		}
		deliveryPerson = &person
	}

	for attempt := 1; attempt <= statusUpdateAttempts; attempt++ {
		order, err := s.repo.FindByID(ctx, s.db, req.OrderID)
		if err != nil {
			return domain.Order{}, err
		}
		if order == nil {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		if !domain.CanTransition(order.Status, target) {
			return domain.Order{}, domain.ErrInvalidTransition
		}

		now := s.clock.Now()
		updated, err := s.repo.UpdateStatus(ctx, s.db, order.ID, order.Status, target, deliveryPerson, now)
		if err != nil {
			if db.IsConflictErr(err) {
				s.log.Warn("order status update conflict",
					zap.String("order_id", order.ID.String()),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
				continue
			}
			return domain.Order{}, err
		}
		if !updated {
			continue
		}

		order.Status = target
		if deliveryPerson != nil {
			order.DeliveryPerson = deliveryPerson
		}
		order.UpdatedAt = now
		s.log.Info("order status updated",
			zap.String("order_id", order.ID.String()),
			zap.String("status", string(target)),
		)
		return *order, nil
	}
	return domain.Order{}, fmt.Errorf("%w: order %s", domain.ErrMaxRetriesExceeded, req.OrderID)
}

func isKnownStatus(status domain.OrderStatus) bool {
	switch status {
	case domain.OrderStatusPending,
		domain.OrderStatusConfirmed,
		domain.OrderStatusPreparing,
		domain.OrderStatusReady,
		domain.OrderStatusOnDelivery,
		domain.OrderStatusDelivered,
		domain.OrderStatusCancelled:
		return true
	default:
		return false
	}
}
