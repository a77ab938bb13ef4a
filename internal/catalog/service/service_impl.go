package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/catalog/domain"
	"github.com/smallbiznis/mealplan/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
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
		log:   p.Log.Named("catalog.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) CreateMenuItem(ctx context.Context, req domain.CreateMenuItemRequest) (domain.MenuItem, error) {
	name, err := validateEntry(req.VendorID, req.Name, req.Price)
	if err != nil {
		return domain.MenuItem{}, err
	}
	now := s.clock.Now()
	item := domain.MenuItem{
		ID:        s.genID.Generate(),
		VendorID:  req.VendorID,
		Name:      name,
		Price:     req.Price,
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertMenuItem(ctx, s.db, &item); err != nil {
		return domain.MenuItem{}, err
	}
	return item, nil
}

func (s *Service) CreatePackageOption(ctx context.Context, req domain.CreatePackageOptionRequest) (domain.PackageOption, error) {
	name, err := validateEntry(req.VendorID, req.Name, req.Price)
	if err != nil {
		return domain.PackageOption{}, err
	}
	now := s.clock.Now()
	option := domain.PackageOption{
		ID:        s.genID.Generate(),
		VendorID:  req.VendorID,
		Name:      name,
		Price:     req.Price,
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertPackageOption(ctx, s.db, &option); err != nil {
		return domain.PackageOption{}, err
	}
	return option, nil
}

func (s *Service) CreateModifier(ctx context.Context, req domain.CreateModifierRequest) (domain.Modifier, error) {
	if !req.Kind.Valid() {
		return domain.Modifier{}, domain.ErrInvalidModifierKind
	}
	name, err := validateEntry(req.VendorID, req.Name, req.Price)
	if err != nil {
		return domain.Modifier{}, err
	}
	now := s.clock.Now()
	modifier := domain.Modifier{
		ID:        s.genID.Generate(),
		VendorID:  req.VendorID,
		Kind:      req.Kind,
		Name:      name,
		Price:     req.Price,
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.InsertModifier(ctx, s.db, &modifier); err != nil {
		return domain.Modifier{}, err
	}
	return modifier, nil
}

func (s *Service) SetMenuItemAvailability(ctx context.Context, id snowflake.ID, available bool) error {
	return s.repo.SetMenuItemAvailability(ctx, s.db, id, available)
}

// Snapshot loads every catalog entry the items reference in three queries.
// Lookup failures surface as ErrCatalogUnavailable so callers can tell them
// apart from entries that are simply gone.
func (s *Service) Snapshot(ctx context.Context, items []domain.LineItem) (*domain.Snapshot, error) {
	refs := domain.CollectRefs(items)
	snapshot := domain.NewSnapshot()

	menuItems, err := s.repo.ListMenuItems(ctx, s.db, refs.MenuItemIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: menu items: %v", domain.ErrCatalogUnavailable, err)
	}
	for _, item := range menuItems {
		snapshot.MenuItems[item.ID] = item
	}

	options, err := s.repo.ListPackageOptions(ctx, s.db, refs.PackageOptionIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: package options: %v", domain.ErrCatalogUnavailable, err)
	}
	for _, option := range options {
		snapshot.PackageOptions[option.ID] = option
	}

	modifiers, err := s.repo.ListModifiers(ctx, s.db, refs.ModifierIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: modifiers: %v", domain.ErrCatalogUnavailable, err)
	}
	for _, modifier := range modifiers {
		snapshot.Modifiers[modifier.ID] = modifier
	}

	return snapshot, nil
}

func validateEntry(vendorID snowflake.ID, name string, price int64) (string, error) {
	if vendorID == 0 {
		return "", domain.ErrInvalidVendor
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.ErrInvalidName
	}
	if price < 0 {
		return "", domain.ErrInvalidPrice
	}
	return name, nil
}
