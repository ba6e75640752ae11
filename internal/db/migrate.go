package db

import (
	"embed"
	"errors"
	"fmt"

	"github.com/diewo77/go-pos/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// registers the postgres database driver
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Models lists every persisted model, in dependency order.
func Models() []any {
	return []any{
		// Auth & Authorization
		&models.Permission{},
		&models.Profile{},
		&models.User{},
		// Catalog and ledger
		&models.Product{},
		&models.StockMovement{},
		// Sales
		&models.TicketCounter{},
		&models.ChainHead{},
		&models.Sale{},
		&models.SaleLine{},
		&models.Payment{},
		&models.AuditLog{},
	}
}

// Migrate runs AutoMigrate for all models.
func Migrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// RunSQLMigrations applies the embedded SQL migrations to a postgres
// database. dsn may be a URL or a key=value list.
func RunSQLMigrations(dsn string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, ToURLDSN(dsn))
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
