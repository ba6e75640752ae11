package main

import (
	"net/http"
	"time"

	"github.com/diewo77/go-pos/auth"
	"github.com/diewo77/go-pos/gate"
	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/handlers"
	"github.com/diewo77/go-pos/internal/logging"
	"github.com/diewo77/go-pos/internal/metrics"
	"github.com/diewo77/go-pos/internal/policy"
	"github.com/diewo77/go-pos/internal/services"
	"github.com/diewo77/go-pos/internal/uow"
	"gorm.io/gorm"
)

// Deps are the collaborators the application is assembled from.
type Deps struct {
	DB       *gorm.DB
	UoW      *uow.UnitOfWork
	Log      *logging.Logger
	Metrics  *metrics.Metrics
	Sessions *auth.Sessions
	// ServiceOptions are passed to every domain service.
	ServiceOptions []services.Option
	// ProfileCacheTTL bounds how long a profile change takes to apply.
	ProfileCacheTTL time.Duration
}

// App is the main application handler that sets up all routes.
type App struct {
	mux      *http.ServeMux
	db       *gorm.DB
	log      *logging.Logger
	metrics  *metrics.Metrics
	sessions *auth.Sessions
	authGate *policy.AuthGate

	sales    *handlers.SaleHandler
	stock    *handlers.StockHandler
	products *handlers.ProductHandler
	audit    *handlers.AuditHandler
	authH    *handlers.AuthHandler
	admin    *handlers.AdminHandler
}

// NewApp creates a new application with all routes configured.
func NewApp(d Deps) *App {
	if d.ProfileCacheTTL <= 0 {
		d.ProfileCacheTTL = 5 * time.Minute
	}
	authGate := policy.NewAuthGate(d.DB, d.ProfileCacheTTL)
	authGate.CacheResolver.Observe(d.Metrics.ProfileLookup)

	app := &App{
		mux:      http.NewServeMux(),
		db:       d.DB,
		log:      d.Log,
		metrics:  d.Metrics,
		sessions: d.Sessions,
		authGate: authGate,
		sales:    handlers.NewSaleHandler(services.NewSaleEngine(d.UoW, d.ServiceOptions...), authGate, d.Log),
		stock:    handlers.NewStockHandler(services.NewStockLedger(d.UoW, d.ServiceOptions...), authGate, d.Log),
		products: handlers.NewProductHandler(services.NewCatalogService(d.DB, d.ServiceOptions...), authGate, d.Log),
		audit:    handlers.NewAuditHandler(services.NewChainAuditor(d.DB, d.ServiceOptions...), authGate, d.Log),
		authH:    handlers.NewAuthHandler(d.DB, d.Sessions, d.Log),
		admin:    handlers.NewAdminHandler(d.DB, authGate.CacheResolver, d.Log),
	}
	app.setupRoutes()
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// request id first so every later log line carries it
	handler := httpx.RequestID(a.sessions.Middleware(a.withLogging(a.mux)))
	handler.ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// Public
	a.handle("GET /health", http.HandlerFunc(a.health))
	a.handle("GET /healthz", http.HandlerFunc(a.health))
	a.mux.Handle("GET /metrics", a.metrics.Handler())
	a.handle("POST /login", http.HandlerFunc(a.authH.Login))
	a.handle("POST /logout", http.HandlerFunc(a.authH.Logout))

	// Sales
	a.handle("POST /api/sales", a.requirePermission("sale", gate.ActionCreate, a.sales.Submit))
	a.handle("GET /api/sales", a.requirePermission("sale", gate.ActionList, a.sales.List))
	a.handle("GET /api/sales/revenue", a.requirePermission("sale", gate.ActionList, a.sales.Revenue))
	a.handle("GET /api/sales/{id}", a.requirePermission("sale", gate.ActionView, a.sales.Get))
	a.handle("POST /api/sales/{id}/cancel", a.requireAdmin(a.sales.Cancel))
	a.handle("POST /api/sales/{id}/refund", a.requireAdmin(a.sales.Refund))

	// Stock
	a.handle("POST /api/stock/movements", a.requirePermission("stock", gate.ActionCreate, a.stock.Record))
	a.handle("GET /api/stock/movements", a.requirePermission("stock", gate.ActionView, a.stock.List))
	a.handle("GET /api/stock/alerts", a.requirePermission("stock", gate.ActionView, a.stock.Alerts))
	a.handle("GET /api/products/{id}/stock", a.requirePermission("stock", gate.ActionView, a.stock.ProductStock))

	// Catalog
	a.handle("GET /api/products", a.requirePermission("product", gate.ActionList, a.products.List))
	a.handle("GET /api/products/{id}", a.requirePermission("product", gate.ActionView, a.products.View))
	a.handle("POST /api/products", a.requireAdmin(a.products.Create))
	a.handle("POST /api/products/{id}", a.requireAdmin(a.products.Update))
	a.handle("POST /api/products/{id}/deactivate", a.requireAdmin(a.products.Deactivate))

	// Audit and administration
	a.handle("GET /api/audit/chain", a.requireAdmin(a.audit.Chain))
	a.handle("GET /api/admin/profiles", a.requireAdmin(a.admin.Profiles))
	a.handle("POST /api/admin/profiles/{id}/permissions", a.requireAdmin(a.admin.SavePermissions))
	a.handle("GET /api/admin/permissions", a.requireAdmin(a.admin.Permissions))
	a.handle("GET /api/admin/users", a.requireAdmin(a.admin.Users))
	a.handle("POST /api/admin/users/{id}/profile", a.requireAdmin(a.admin.AssignProfile))
}

// handle registers h under pattern with per-route metrics.
func (a *App) handle(pattern string, h http.Handler) {
	a.mux.Handle(pattern, a.metrics.Instrument(pattern, h))
}

func (a *App) requirePermission(resourceType string, action gate.Action, h http.HandlerFunc) http.Handler {
	return a.sessions.RequireAuth(a.authGate.RequirePermission(resourceType, action)(h))
}

func (a *App) requireAdmin(h http.HandlerFunc) http.Handler {
	return a.sessions.RequireAuth(a.authGate.RequireAdmin()(h))
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withLogging logs one line per request.
func (a *App) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.HTTPRequest(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
