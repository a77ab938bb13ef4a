package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	cartdomain "github.com/smallbiznis/mealplan/internal/cart/domain"
	catalogdomain "github.com/smallbiznis/mealplan/internal/catalog/domain"
	ledgerdomain "github.com/smallbiznis/mealplan/internal/ledger/domain"
	mealplandomain "github.com/smallbiznis/mealplan/internal/mealplan/domain"
	orderdomain "github.com/smallbiznis/mealplan/internal/order/domain"
	"gorm.io/gorm"
)

// RunMigrations applies the embedded postgres migrations.
func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table the service owns.
func Models() []any {
	return []any{
		&ledgerdomain.Account{},
		&ledgerdomain.LedgerEntry{},
		&catalogdomain.MenuItem{},
		&catalogdomain.PackageOption{},
		&catalogdomain.Modifier{},
		&orderdomain.Order{},
		&mealplandomain.MealPlan{},
		&cartdomain.Cart{},
	}
}

// AutoMigrate builds the schema from the models. Used for sqlite and mysql,
// where the embedded postgres SQL does not apply.
func AutoMigrate(conn *gorm.DB) error {
	if err := conn.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
