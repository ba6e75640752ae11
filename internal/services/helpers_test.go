package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	cfg "github.com/diewo77/go-pos/internal/config"
	"github.com/diewo77/go-pos/internal/db"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/models"
	"github.com/diewo77/go-pos/internal/uow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var (
	admin   = Actor{UserID: 1, Caps: CapSell | CapStock | CapElevated}
	cashier = Actor{UserID: 2, Caps: CapSell}
	keeper  = Actor{UserID: 3, Caps: CapStock}
)

type fixture struct {
	db      *gorm.DB
	ledger  *StockLedger
	engine  *SaleEngine
	auditor *ChainAuditor
	catalog *CatalogService

	mu  sync.Mutex
	now time.Time
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open(cfg.DatabaseConfig{
		Driver:     "sqlite",
		SQLitePath: "file:" + name + "?mode=memory&cache=shared",
	}, logging.Discard())
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gdb))
	return gdb
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		db:  setupDB(t),
		now: time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC),
	}
	u := uow.New(f.db, uow.Options{MaxAttempts: 5, Backoff: time.Millisecond, LockTimeout: 5 * time.Second})
	opts := []Option{WithClock(f.clock), WithLocation(time.UTC)}
	f.ledger = NewStockLedger(u, opts...)
	f.engine = NewSaleEngine(u, opts...)
	f.auditor = NewChainAuditor(f.db, opts...)
	f.catalog = NewCatalogService(f.db, opts...)
	return f
}

// clock returns the fixture time and moves it one second forward.
func (f *fixture) clock() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now
	f.now = f.now.Add(time.Second)
	return now
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// product creates an active product priced HT with an initial stock entry.
func (f *fixture) product(t *testing.T, name, salePrice, vat string, stock int64) *models.Product {
	t.Helper()
	p, err := f.catalog.Create(context.Background(), admin, ProductInput{
		Name:          name,
		PurchasePrice: dec("1.00"),
		SalePrice:     dec(salePrice),
		VATRate:       dec(vat),
	})
	require.NoError(t, err)
	if stock > 0 {
		_, err = f.ledger.Record(context.Background(), keeper, MovementRequest{
			ProductID: p.ID,
			Kind:      models.MovementEntry,
			Quantity:  stock,
		})
		require.NoError(t, err)
	}
	return p
}

func (f *fixture) stock(t *testing.T, productID uint) int64 {
	t.Helper()
	s, err := f.ledger.CurrentStock(context.Background(), productID)
	require.NoError(t, err)
	return s
}

func cashCart(amount string, lines ...CartLine) Cart {
	return Cart{
		Lines:    lines,
		Payments: []PaymentInput{{Method: models.PaymentCash, Amount: dec(amount)}},
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decp(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}
