package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mealplan/internal/cart"
	"github.com/smallbiznis/mealplan/internal/catalog"
	"github.com/smallbiznis/mealplan/internal/clock"
	"github.com/smallbiznis/mealplan/internal/config"
	"github.com/smallbiznis/mealplan/internal/ledger"
	"github.com/smallbiznis/mealplan/internal/lock"
	"github.com/smallbiznis/mealplan/internal/mealplan"
	"github.com/smallbiznis/mealplan/internal/migration"
	"github.com/smallbiznis/mealplan/internal/notification"
	"github.com/smallbiznis/mealplan/internal/observability"
	"github.com/smallbiznis/mealplan/internal/order"
	"github.com/smallbiznis/mealplan/internal/scheduler"
	"github.com/smallbiznis/mealplan/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		lock.Module,

		// Functional Domains
		catalog.Module,
		ledger.Module,
		order.Module,
		mealplan.Module,
		cart.Module,
		notification.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
