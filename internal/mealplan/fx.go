package mealplan

import (
	"github.com/smallbiznis/mealplan/internal/mealplan/repository"
	"github.com/smallbiznis/mealplan/internal/mealplan/service"
	"go.uber.org/fx"
)

var Module = fx.Module("mealplan.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
