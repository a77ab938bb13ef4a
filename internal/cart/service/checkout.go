package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/mealplan/internal/cart/domain"
	ledgerdomain "github.com/smallbiznis/mealplan/internal/ledger/domain"
	"github.com/smallbiznis/mealplan/internal/observability/logger"
	orderdomain "github.com/smallbiznis/mealplan/internal/order/domain"
	orderservice "github.com/smallbiznis/mealplan/internal/order/service"
	"github.com/smallbiznis/mealplan/internal/pricing"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Checkout prices the cart with the same resolver and materializer the meal
// plan processor uses, so equal selections always cost the same.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (orderdomain.Order, error) {
	if req.OwnerID == 0 {
		return orderdomain.Order{}, domain.ErrInvalidOwner
	}
	phone := strings.TrimSpace(req.ContactPhone)
	if phone == "" {
		return orderdomain.Order{}, domain.ErrInvalidContactPhone
	}
	address := req.DeliveryAddress.Normalize(s.policy.Get().DefaultCountry)
	if err := address.Validate(); err != nil {
		return orderdomain.Order{}, err
	}

	for attempt := 1; attempt <= checkoutAttempts; attempt++ {
		order, err := s.checkout(ctx, req.OwnerID, address, phone)
		if errors.Is(err, errCartChanged) || errors.Is(err, ledgerdomain.ErrLedgerConflict) {
			logger.WithContext(ctx, s.log).Warn("cart checkout retry", zap.Int("attempt", attempt), zap.Error(err))
			continue
		}
		return order, err
	}
	return orderdomain.Order{}, fmt.Errorf("%w: owner %s", domain.ErrConcurrentUpdate, req.OwnerID)
}

func (s *Service) checkout(ctx context.Context, ownerID snowflake.ID, address orderdomain.DeliveryAddress, phone string) (orderdomain.Order, error) {
	cart, err := s.repo.FindByOwner(ctx, s.db, ownerID)
	if err != nil {
		return orderdomain.Order{}, err
	}
	if cart == nil || len(cart.Items) == 0 {
		return orderdomain.Order{}, domain.ErrEmptyCart
	}

	items := cart.LineItems()
	snapshot, err := s.catalogSvc.Snapshot(ctx, items)
	if err != nil {
		return orderdomain.Order{}, err
	}
	subtotal, err := pricing.Subtotal(items, snapshot)
	if err != nil {
		return orderdomain.Order{}, err
	}
	policy := s.policy.Get()
	draft, err := orderservice.Materialize(orderdomain.MaterializeInput{
		OwnerID:         ownerID,
		VendorID:        cart.VendorID(),
		Source:          orderdomain.OrderSourceCart,
		Items:           items,
		DeliveryAddress: address,
		ContactPhone:    phone,
		DeliveryFee:     policy.CartDeliveryFee,
		Tax:             policy.Tax(subtotal),
		Snapshot:        snapshot,
	})
	if err != nil {
		return orderdomain.Order{}, err
	}

	orderID := s.genID.Generate()
	reference := "cart-" + orderID.String()
	var order orderdomain.Order

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.LockByOwner(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		if locked == nil || locked.Version != cart.Version {
			return errCartChanged
		}

		if _, err := s.ledgerSvc.DebitTx(ctx, tx, ledgerdomain.DebitRequest{
			OwnerID:        ownerID,
			Amount:         draft.Total,
			Reference:      reference,
			RelatedOrderID: &orderID,
			Description:    "Cart checkout",
		}); err != nil {
			return err
		}

		draft.MarkPaid(reference, uuid.NewString())
		now := s.clock.Now()
		order = draft.Build(orderID, orderdomain.OrderStatusPending, now)
		if err := s.orderRepo.Insert(ctx, tx, &order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		cleared, err := s.repo.UpdateItems(ctx, tx, ownerID, nil, locked.Version, now)
		if err != nil {
			return err
		}
		if !cleared {
			return errCartChanged
		}
		return nil
	})
	if err != nil {
		return orderdomain.Order{}, err
	}

	s.obsMetrics.RecordOrder(ctx, string(orderdomain.OrderSourceCart))
	logger.WithContext(ctx, s.log).Info("cart checked out",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("total", order.Total),
	)
	return order, nil
}
