// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockkeeper/internal/core/numerator"
	"stockkeeper/internal/domain/audit"
	"stockkeeper/internal/domain/catalogs/product"
	"stockkeeper/internal/domain/documents/adjustment"
	"stockkeeper/internal/domain/documents/opname"
	"stockkeeper/internal/infrastructure/http/v1/handlers"
	"stockkeeper/internal/infrastructure/http/v1/middleware"
	"stockkeeper/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Mode is the gin mode; release when empty.
	Mode string

	// Logger for request logging
	Logger *logger.Logger

	// Database backs the readiness probe
	Database handlers.Database
	Version  string

	// Numerator for code allocation endpoints
	Numerator numerator.Generator

	Products    *product.Service
	Opnames     *opname.Service
	Adjustments *adjustment.Service

	// Audit serves /audit history; the route is absent when nil
	Audit audit.Reader

	// Idempotency enables X-Idempotency-Key handling when set
	Idempotency middleware.IdempotencyStore

	// RetryAttempts bounds retries on concurrent modification
	RetryAttempts int
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	router := gin.New()

	// ErrorHandler wraps Recovery so recovered panics are rendered too.
	router.Use(middleware.Trace(log))
	router.Use(middleware.Logger(log))
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.Recovery())

	healthHandler := handlers.NewHealthHandler(cfg.Database, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Actor())
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler(cfg.RetryAttempts)
	registerCodeRoutes(api, base, cfg)
	registerProductRoutes(api, base, cfg)
	registerOpnameRoutes(api, base, cfg)
	registerAdjustmentRoutes(api, base, cfg)
	if cfg.Audit != nil {
		h := handlers.NewAuditHandler(base, cfg.Audit)
		api.GET("/audit/:entityType/:id", h.History)
	}

	return router
}

func registerCodeRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewCodeHandler(base, cfg.Numerator)
	codes := rg.Group("/codes")
	{
		codes.GET("/parse", h.Parse)
		codes.POST("/:entityType", h.Allocate)
		codes.GET("/:entityType/next", h.Peek)
	}
}

func registerProductRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewProductHandler(base, cfg.Products)
	products := rg.Group("/products")
	RegisterReadRoutes(products, h)
	products.POST("", h.Create)
	products.GET("/:id/movements", h.Movements)
}

func registerOpnameRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewOpnameHandler(base, cfg.Opnames, cfg.Adjustments)
	opnames := rg.Group("/opnames")
	RegisterDocumentRoutes(opnames, h)
	opnames.PUT("/:id/items", h.UpdateItems)
	opnames.PATCH("/:id/notes", h.UpdateNotes)
	opnames.POST("/:id/reconcile", h.Reconcile)
	opnames.POST("/:id/adjustment", h.CreateAdjustment)
}

func registerAdjustmentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewAdjustmentHandler(base, cfg.Adjustments)
	adjustments := rg.Group("/adjustments")
	RegisterDocumentRoutes(adjustments, h)
	adjustments.PATCH("/:id", h.Update)
}
