package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	"github.com/smallbiznis/mealplan/internal/clock"
	"github.com/smallbiznis/mealplan/internal/config"
	ledgerdomain "github.com/smallbiznis/mealplan/internal/ledger/domain"
	"github.com/smallbiznis/mealplan/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/mealplan/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/mealplan/internal/order/domain"
	"github.com/smallbiznis/mealplan/internal/pricing"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	mutationAttempts = 3
	checkoutAttempts = 3
)

var errCartChanged = errors.New("cart_changed")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	OrderRepo  orderdomain.Repository
	CatalogSvc catalogdomain.Service
	LedgerSvc  ledgerdomain.Service
	Policy     *config.PolicyHolder `optional:"true"`
	Clock      clock.Clock          `optional:"true"`
	ObsMetrics *obsmetrics.Metrics  `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	orderRepo  orderdomain.Repository
	catalogSvc catalogdomain.Service
	ledgerSvc  ledgerdomain.Service
	policy     *config.PolicyHolder
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("cart.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		orderRepo:  p.OrderRepo,
		catalogSvc: p.CatalogSvc,
		ledgerSvc:  p.LedgerSvc,
		policy:     p.Policy,
		clock:      clk,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Get(ctx context.Context, ownerID snowflake.ID) (domain.Summary, error) {
	if ownerID == 0 {
		return domain.Summary{}, domain.ErrInvalidOwner
	}
	cart, err := s.repo.FindByOwner(ctx, s.db, ownerID)
	if err != nil {
		return domain.Summary{}, err
	}
	if cart == nil {
		return domain.Summary{OwnerID: ownerID}, nil
	}
	return s.summarize(ctx, *cart)
}

// AddItem prices the item against the catalog before accepting it, so a cart
// never holds a line that could not be ordered when it was added.
func (s *Service) AddItem(ctx context.Context, req domain.AddItemRequest) (domain.Summary, error) {
	if req.OwnerID == 0 {
		return domain.Summary{}, domain.ErrInvalidOwner
	}
	item := req.Item
	switch {
	case item.Quantity == 0:
		item.Quantity = 1
	case item.Quantity < 0:
		return domain.Summary{}, domain.ErrInvalidQuantity
	}
	item.Note = strings.TrimSpace(item.Note)

	snapshot, err := s.catalogSvc.Snapshot(ctx, []catalogdomain.LineItem{item})
	if err != nil {
		return domain.Summary{}, err
	}
	line, err := pricing.Resolve(item, snapshot)
	if err != nil {
		return domain.Summary{}, err
	}
	item.VendorID = line.MenuItem.VendorID

	return s.mutate(ctx, req.OwnerID, func(lines []domain.Line) ([]domain.Line, error) {
		if len(lines) > 0 && lines[0].VendorID != item.VendorID {
			return nil, domain.ErrMixedVendors
		}
		for i := range lines {
			if domain.SameSelection(lines[i].LineItem, item) {
				lines[i].Quantity += item.Quantity
				return lines, nil
			}
		}
		return append(lines, domain.Line{ID: s.genID.Generate(), LineItem: item}), nil
	})
}

func (s *Service) UpdateItem(ctx context.Context, req domain.UpdateItemRequest) (domain.Summary, error) {
	if req.OwnerID == 0 {
		return domain.Summary{}, domain.ErrInvalidOwner
	}
	if req.Quantity != nil && *req.Quantity < 1 {
		return domain.Summary{}, domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, req.OwnerID, func(lines []domain.Line) ([]domain.Line, error) {
		idx := slices.IndexFunc(lines, func(l domain.Line) bool { return l.ID == req.LineID })
		if idx < 0 {
			return nil, domain.ErrLineNotFound
		}
		if req.Quantity != nil {
			lines[idx].Quantity = *req.Quantity
		}
		if req.Note != nil {
			lines[idx].Note = strings.TrimSpace(*req.Note)
		}
		return lines, nil
	})
}

func (s *Service) RemoveItem(ctx context.Context, ownerID, lineID snowflake.ID) (domain.Summary, error) {
	if ownerID == 0 {
		return domain.Summary{}, domain.ErrInvalidOwner
	}
	return s.mutate(ctx, ownerID, func(lines []domain.Line) ([]domain.Line, error) {
		idx := slices.IndexFunc(lines, func(l domain.Line) bool { return l.ID == lineID })
		if idx < 0 {
			return nil, domain.ErrLineNotFound
		}
		return slices.Delete(lines, idx, idx+1), nil
	})
}

func (s *Service) Clear(ctx context.Context, ownerID snowflake.ID) (domain.Summary, error) {
	if ownerID == 0 {
		return domain.Summary{}, domain.ErrInvalidOwner
	}
	return s.mutate(ctx, ownerID, func([]domain.Line) ([]domain.Line, error) {
		return nil, nil
	})
}

// mutate applies fn to the owner's lines with an optimistic version check,
// retrying when another request changed the cart in between.
func (s *Service) mutate(ctx context.Context, ownerID snowflake.ID, fn func([]domain.Line) ([]domain.Line, error)) (domain.Summary, error) {
	for attempt := 1; attempt <= mutationAttempts; attempt++ {
		cart, err := s.loadOrCreate(ctx, ownerID)
		if err != nil {
			return domain.Summary{}, err
		}
		lines, err := fn(slices.Clone([]domain.Line(cart.Items)))
		if err != nil {
			return domain.Summary{}, err
		}

		now := s.clock.Now()
		ok, err := s.repo.UpdateItems(ctx, s.db, ownerID, lines, cart.Version, now)
		if err != nil {
			return domain.Summary{}, err
		}
		if !ok {
			logger.WithContext(ctx, s.log).Debug("cart update lost race", zap.Int("attempt", attempt))
			continue
		}
		cart.Items = lines
		cart.Version++
		cart.UpdatedAt = now
		return s.summarize(ctx, *cart)
	}
	return domain.Summary{}, fmt.Errorf("%w: owner %s", domain.ErrConcurrentUpdate, ownerID)
}

func (s *Service) loadOrCreate(ctx context.Context, ownerID snowflake.ID) (*domain.Cart, error) {
	cart, err := s.repo.FindByOwner(ctx, s.db, ownerID)
	if err != nil || cart != nil {
		return cart, err
	}
	if err := s.repo.Create(ctx, s.db, ownerID, s.clock.Now()); err != nil {
		return nil, err
	}
	cart, err = s.repo.FindByOwner(ctx, s.db, ownerID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, fmt.Errorf("cart for owner %s vanished after create", ownerID)
	}
	return cart, nil
}

func (s *Service) summarize(ctx context.Context, cart domain.Cart) (domain.Summary, error) {
	summary := domain.Summary{OwnerID: cart.OwnerID}
	if len(cart.Items) == 0 {
		return summary, nil
	}
	snapshot, err := s.catalogSvc.Snapshot(ctx, cart.LineItems())
	if err != nil {
		return domain.Summary{}, err
	}

	for _, line := range cart.Items {
		priced := domain.PricedLine{Line: line}
		resolved, err := pricing.Resolve(line.LineItem, snapshot)
		switch {
		case errors.Is(err, catalogdomain.ErrCatalogItemUnavailable):
			priced.Unavailable = true
			if item, ok := snapshot.MenuItems[line.MenuItemID]; ok {
				priced.Name = item.Name
			}
		case err != nil:
			return domain.Summary{}, err
		default:
			priced.Name = resolved.MenuItem.Name
			priced.UnitPrice = resolved.UnitPrice
			priced.LineTotal = resolved.LineTotal
			summary.Subtotal += resolved.LineTotal
		}
		summary.Lines = append(summary.Lines, priced)
	}

	policy := s.policy.Get()
	if summary.Subtotal > 0 {
		summary.DeliveryFee = policy.CartDeliveryFee
		summary.Tax = policy.Tax(summary.Subtotal)
	}
	summary.Total = summary.Subtotal + summary.DeliveryFee + summary.Tax
	return summary, nil
}
