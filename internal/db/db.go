// Package db opens the database, creates the schema and seeds reference data.
package db

import (
	"fmt"
	"strings"
	"time"

	"github.com/diewo77/go-pos/internal/config"
	"github.com/diewo77/go-pos/internal/logging"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	connectAttempts = 10
	connectDelay    = 2 * time.Second
)

// Open connects to the configured database, retrying while postgres starts.
// Driver errors are translated so unique violations surface as
// gorm.ErrDuplicatedKey.
func Open(cfg config.DatabaseConfig, log *logging.Logger) (*gorm.DB, error) {
	logLevel := logger.Silent
	if cfg.Debug {
		logLevel = logger.Info
	}
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(SQLiteDSN(cfg.SQLitePath))
	case "postgres", "":
		dsn := PostgresDSN(cfg)
		log.Info("Connecting to database", "dsn", maskDSN(dsn))
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	var db *gorm.DB
	var err error
	for i := 1; i <= connectAttempts; i++ {
		db, err = gorm.Open(dialector, gcfg)
		if err == nil {
			err = db.Exec("SELECT 1").Error
		}
		if err == nil {
			break
		}
		log.WithError(err).Warn("Database not ready, retrying", "attempt", i, "of", connectAttempts)
		time.Sleep(connectDelay)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// one writer at a time; the busy timeout covers readers
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// PostgresDSN returns DATABASE_DSN when set, the DSN built from the
// individual settings otherwise.
func PostgresDSN(cfg config.DatabaseConfig) string {
	if dsn := NormalizeDSN(cfg.DSNOverride); dsn != "" {
		return dsn
	}
	return cfg.DSN()
}

// SQLiteDSN enables foreign keys and a busy timeout on a sqlite file.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
}
