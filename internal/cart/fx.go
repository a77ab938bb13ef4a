package cart

import (
	"github.com/smallbiznis/mealplan/internal/cart/repository"
	"github.com/smallbiznis/mealplan/internal/cart/service"
	"go.uber.org/fx"
)

var Module = fx.Module("cart.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
