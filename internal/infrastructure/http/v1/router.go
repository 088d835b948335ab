// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-gonic/gin"

	"stockpost/internal/domain/audit"
	"stockpost/internal/domain/catalogs/location"
	"stockpost/internal/domain/documents/movement"
	"stockpost/internal/domain/documents/stocktake"
	"stockpost/internal/domain/ledger"
	"stockpost/internal/domain/notify"
	"stockpost/internal/domain/rules"
	"stockpost/internal/infrastructure/http/v1/handlers"
	"stockpost/internal/infrastructure/http/v1/middleware"
	"stockpost/internal/infrastructure/storage/postgres"
	"stockpost/internal/infrastructure/storage/postgres/catalog_repo"
	"stockpost/internal/infrastructure/storage/postgres/document_repo"
	"stockpost/internal/infrastructure/storage/postgres/register_repo"
	"stockpost/pkg/logger"
	"stockpost/pkg/numerator"
)

// ApproverRole is the role claim required for approval decisions.
const ApproverRole = "approver"

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Pool is the database connection pool (health checks, idempotency store)
	Pool *postgres.Pool

	// TxManager provides transaction management for repositories
	TxManager *postgres.TxManager

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Numerator for document number generation
	Numerator *numerator.Service

	// Guard evaluates the configured posting rule before posting
	Guard *rules.PostingGuard

	// AuditSink records document lifecycle transitions
	AuditSink audit.Sink

	// Notifier enqueues lifecycle events for asynchronous delivery
	Notifier notify.Sink

	// IdempotencyEnabled enables idempotency middleware
	IdempotencyEnabled bool

	// IdempotencyTTL is how long replay records are kept
	IdempotencyTTL time.Duration
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	// Health endpoints (no auth required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	// API v1
	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		if cfg.IdempotencyEnabled {
			ttl := cfg.IdempotencyTTL
			if ttl <= 0 {
				ttl = 10 * time.Minute
			}
			store := postgres.NewIdempotencyStore(cfg.TxManager, ttl)
			protected.Use(middleware.Idempotency(store))
		}

		registerCatalogRoutes(protected, cfg)
		registerDocumentRoutes(protected, cfg)
		registerStockRoutes(protected, cfg)
	}

	return router
}

// registerCatalogRoutes registers catalog endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	catalogs := rg.Group("/catalog")
	baseHandler := handlers.NewBaseHandler()

	// --- LOCATIONS ---
	{
		repo := catalog_repo.NewLocationRepo(cfg.TxManager)
		service := location.NewService(repo, cfg.Numerator, cfg.TxManager)
		handler := handlers.NewLocationHandler(baseHandler, service)
		RegisterCatalogRoutes(catalogs.Group("/locations"), handler, "catalog:location")
	}
}

// registerDocumentRoutes registers document endpoints.
func registerDocumentRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	docsGroup := rg.Group("/document")
	baseHandler := handlers.NewBaseHandler()

	// Shared dependencies. Both document types write stock effects
	// through the same ledger executor.
	ledgerRepo := register_repo.NewLedgerRepo(cfg.TxManager)
	executor := ledger.NewExecutor(ledgerRepo)

	locationRepo := catalog_repo.NewLocationRepo(cfg.TxManager)
	locationService := location.NewService(locationRepo, cfg.Numerator, cfg.TxManager)

	movementRepo := document_repo.NewMovementRepo(cfg.TxManager)
	movementService := movement.NewService(
		movementRepo, executor, cfg.Numerator, cfg.TxManager,
		cfg.Guard, cfg.AuditSink, cfg.Notifier,
	)

	// --- MOVEMENTS ---
	{
		handler := handlers.NewMovementHandler(baseHandler, movementService)
		RegisterMovementRoutes(docsGroup.Group("/movements"), handler, "document:movement", ApproverRole)
	}

	// --- STOCK TAKES ---
	{
		repo := document_repo.NewStockTakeRepo(cfg.TxManager)
		service := stocktake.NewService(
			repo, ledgerRepo, locationService, movementService,
			cfg.Numerator, cfg.TxManager,
			cfg.AuditSink, cfg.Notifier,
		)
		handler := handlers.NewStockTakeHandler(baseHandler, service)
		RegisterStockTakeRoutes(docsGroup.Group("/stock-takes"), handler, "document:stock_take", ApproverRole)
	}
}

// registerStockRoutes registers stock ledger read endpoints.
func registerStockRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	baseHandler := handlers.NewBaseHandler()

	ledgerRepo := register_repo.NewLedgerRepo(cfg.TxManager)
	handler := handlers.NewStockHandler(baseHandler, ledgerRepo)

	stockGroup := rg.Group("/stock")
	stockGroup.GET("/balances", middleware.RequirePermission("stock:read"), handler.GetBalances)
	stockGroup.GET("/balance", middleware.RequirePermission("stock:read"), handler.GetBalance)
	stockGroup.GET("/products/:productId/balances", middleware.RequirePermission("stock:read"), handler.GetProductBalances)
	stockGroup.GET("/products/:productId/history", middleware.RequirePermission("stock:read"), handler.GetHistory)
}
