package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/diewo77/go-pos/auth"
	"github.com/diewo77/go-pos/internal/config"
	"github.com/diewo77/go-pos/internal/db"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/metrics"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/services"
	"github.com/diewo77/go-pos/internal/uow"
	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
	verifyChainFlag = flag.Bool("verify-chain", false, "Verify the fiscal chain and exit (status 1 on violation)")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()
	cfg := config.Load()

	log := logging.New(&logging.Config{
		Level:       logging.LogLevel(cfg.Log.Level),
		ServiceName: cfg.Log.Service,
		Environment: cfg.Log.Environment,
		Version:     cfg.Log.Version,
		Output:      os.Stdout,
	})

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("Server exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logging.Logger) error {
	dbConn, err := db.Open(cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	if *migrateOnlyFlag {
		if err := migrate(cfg, dbConn); err != nil {
			return err
		}
		log.Info("Migrations completed successfully")
		return nil
	}
	if *seedOnlyFlag {
		if err := seed(cfg, dbConn); err != nil {
			return err
		}
		log.Info("Seeding completed successfully")
		return nil
	}

	if err := migrate(cfg, dbConn); err != nil {
		return err
	}
	if err := seed(cfg, dbConn); err != nil {
		return err
	}

	m := metrics.New()
	opts := []services.Option{
		services.WithLogger(log),
		services.WithMetrics(m),
		services.WithLocation(cfg.App.Location()),
	}

	if *verifyChainFlag {
		return verifyChain(dbConn, opts)
	}

	u := uow.New(dbConn, uow.Options{
		MaxAttempts:  cfg.Sales.MaxAttempts,
		Backoff:      cfg.Sales.RetryBackoff,
		LockTimeout:  cfg.Sales.LockTimeout,
		Serializable: cfg.Sales.Serializable,
	})
	u.OnRetry(func(attempt int, err error) {
		m.Retry()
		log.Debug("Commit retried", "attempt", attempt, "error", err.Error())
	})

	sessions := auth.NewSessions(cfg.App.SessionSecret, 0)
	sessions.Secure = !cfg.App.Dev
	sessions.SetUserVerifier(func(ctx context.Context, uid uint) bool {
		var count int64
		dbConn.WithContext(ctx).Model(&models.User{}).Where("id = ? AND active = ?", uid, true).Count(&count)
		return count > 0
	})

	app := NewApp(Deps{
		DB:             dbConn,
		UoW:            u,
		Log:            log,
		Metrics:        m,
		Sessions:       sessions,
		ServiceOptions: opts,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      app,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", "port", cfg.Server.Port, "dev", cfg.App.Dev, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	log.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Server stopped gracefully")
	return nil
}

// migrate applies the embedded SQL migrations on postgres when MIGRATIONS is
// set, AutoMigrate otherwise.
func migrate(cfg *config.Config, dbConn *gorm.DB) error {
	if cfg.App.Migrations && cfg.Database.Driver == "postgres" {
		if err := db.RunSQLMigrations(db.PostgresDSN(cfg.Database)); err != nil {
			return fmt.Errorf("sql migrations: %w", err)
		}
		return nil
	}
	if err := db.Migrate(dbConn); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	return nil
}

func seed(cfg *config.Config, dbConn *gorm.DB) error {
	if err := db.Seed(dbConn, db.AdminSeed{Email: cfg.App.AdminEmail, Password: cfg.App.AdminPassword}); err != nil {
		return fmt.Errorf("seed: %w", err)
	}
	return nil
}

// verifyChain runs the chain audit as the system user.
func verifyChain(dbConn *gorm.DB, opts []services.Option) error {
	system := services.Actor{Caps: services.CapElevated}
	report, err := services.NewChainAuditor(dbConn, opts...).Verify(context.Background(), system)
	if err != nil {
		return err
	}
	fmt.Printf("chain ok: %d sales, head %s\n", report.Checked, report.HeadDigest)
	return nil
}
