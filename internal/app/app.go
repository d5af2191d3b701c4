// Package app wires configuration, storage and domain services together.
package app

import (
	"context"
	"fmt"

	"stockkeeper/internal/config"
	"stockkeeper/internal/domain"
	"stockkeeper/internal/domain/audit"
	"stockkeeper/internal/domain/catalogs/product"
	"stockkeeper/internal/domain/documents/adjustment"
	"stockkeeper/internal/domain/documents/opname"
	"stockkeeper/internal/domain/registers/stock"
	"stockkeeper/internal/infrastructure/numerator"
	"stockkeeper/internal/infrastructure/storage/postgres"
	"stockkeeper/internal/infrastructure/storage/postgres/catalog_repo"
	"stockkeeper/internal/infrastructure/storage/postgres/document_repo"
	"stockkeeper/internal/infrastructure/storage/postgres/register_repo"
	"stockkeeper/pkg/logger"
)

// App holds the wired dependencies shared by every binary.
type App struct {
	Config    *config.Config
	Log       *logger.Logger
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Numerator *numerator.Service

	Ledger      *stock.Service
	Products    *product.Service
	Opnames     *opname.Service
	Adjustments *adjustment.Service

	Idempotency *postgres.IdempotencyStore
	Audit       *postgres.AuditLog
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Development: cfg.IsDevelopment(),
	})
}

// New connects to the database and builds the services.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	policy, err := cfg.NumeratorPolicy()
	if err != nil {
		return nil, err
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.DatabaseURL)
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	txm := postgres.NewTxManager(pool).WithStatementTimeout(cfg.DBStatementTimeout)
	gen := numerator.New(
		func(ctx context.Context) numerator.Querier { return txm.GetQuerier(ctx) },
		txm.Direct(),
		numerator.WithLocation(loc),
		numerator.WithPolicy(policy),
	)

	auditLog, err := postgres.NewAuditLog(txm, cfg.AuditCompressThreshold)
	if err != nil {
		pool.Close()
		return nil, err
	}

	ledger := stock.NewService(register_repo.NewStockRepo(txm), cfg.AllowNegativeStock)
	productRepo := catalog_repo.NewProductRepo(txm)
	opnames := opname.NewService(document_repo.NewOpnameRepo(txm), productRepo, gen, txm)
	opnames.Hooks().On(domain.BeforeDelete, audit.SnapshotOnDelete[*opname.Opname](auditLog, string(opname.CodeEntityType)))
	adjustments := adjustment.NewService(document_repo.NewAdjustmentRepo(txm), ledger, opnames, gen, txm)
	adjustments.Hooks().On(domain.BeforeDelete, audit.SnapshotOnDelete[*adjustment.ManagementStock](auditLog, string(adjustment.CodeEntityType)))

	a := &App{
		Config:      cfg,
		Log:         log,
		Pool:        pool,
		TxManager:   txm,
		Numerator:   gen,
		Ledger:      ledger,
		Products:    product.NewService(productRepo, ledger, gen, txm),
		Opnames:     opnames,
		Adjustments: adjustments,
		Idempotency: postgres.NewIdempotencyStore(txm, cfg.IdempotencyTTL),
		Audit:       auditLog,
	}

	log.Infow("application wired",
		"allow_negative_stock", cfg.AllowNegativeStock,
		"code_timezone", loc.String(),
		"cached_code_types", cfg.NumeratorCachedTypes,
	)
	return a, nil
}

// Close releases the database pool.
func (a *App) Close() {
	a.Pool.Close()
}
