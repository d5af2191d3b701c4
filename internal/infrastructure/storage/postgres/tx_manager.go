package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stockkeeper/internal/core/tx"
	"stockkeeper/pkg/logger"
)

var tracer = otel.Tracer("stockkeeper/tx")

var _ tx.Manager = (*TxManager)(nil)

// TxManager runs functions in a READ COMMITTED transaction carried in ctx.
// Nested calls join the outer transaction. Serialization failures, deadlocks
// and lock timeouts surface as CONCURRENT_MODIFICATION so callers can retry
// them with tx.Retry.
type TxManager struct {
	pool             *pgxpool.Pool
	statementTimeout time.Duration
	lockTimeout      time.Duration
}

// NewTxManager creates a transaction manager with a 30s statement timeout
// and a 10s lock timeout.
func NewTxManager(pool *Pool) *TxManager {
	return &TxManager{
		pool:             pool.Pool,
		statementTimeout: 30 * time.Second,
		lockTimeout:      10 * time.Second,
	}
}

// WithStatementTimeout returns a copy of m using timeout for new transactions.
func (m *TxManager) WithStatementTimeout(timeout time.Duration) *TxManager {
	c := *m
	c.statementTimeout = timeout
	return &c
}

// WithLockTimeout returns a copy of m that gives up waiting for row locks
// after timeout.
func (m *TxManager) WithLockTimeout(timeout time.Duration) *TxManager {
	c := *m
	c.lockTimeout = timeout
	return &c
}

type txKey struct{}

// RunInTransaction executes fn within a transaction. An error from fn or
// from commit rolls everything back and is returned translated.
func (m *TxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.GetTx(ctx) != nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, "transaction", trace.WithAttributes(
		attribute.String("tx.isolation", "read_committed"),
		attribute.Int64("tx.lock_timeout_ms", m.lockTimeout.Milliseconds()),
	))
	defer span.End()

	err := m.run(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (m *TxManager) run(ctx context.Context, fn func(ctx context.Context) error) error {
	t, err := m.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return translateError(fmt.Errorf("begin transaction: %w", err))
	}

	if err := m.setLocalTimeouts(ctx, t); err != nil {
		_ = t.Rollback(context.Background())
		return err
	}

	if err := fn(context.WithValue(ctx, txKey{}, t)); err != nil {
		// rollback must complete even if ctx is already cancelled
		if rbErr := t.Rollback(context.Background()); rbErr != nil {
			logger.Error(ctx, "rollback failed", "error", rbErr, "original_error", err)
		}
		return translateError(err)
	}

	if err := t.Commit(ctx); err != nil {
		return translateError(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (m *TxManager) setLocalTimeouts(ctx context.Context, t pgx.Tx) error {
	settings := []struct {
		name  string
		value time.Duration
	}{
		{"statement_timeout", m.statementTimeout},
		{"lock_timeout", m.lockTimeout},
	}
	for _, s := range settings {
		if s.value <= 0 {
			continue
		}
		sql := fmt.Sprintf("SET LOCAL %s = '%dms'", s.name, s.value.Milliseconds())
		if _, err := t.Exec(ctx, sql); err != nil {
			return fmt.Errorf("set %s: %w", s.name, err)
		}
	}
	return nil
}

// GetTx returns the transaction carried by ctx, or nil.
func (m *TxManager) GetTx(ctx context.Context) pgx.Tx {
	if t, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return t
	}
	return nil
}

// Querier is satisfied by both the pool and an open transaction, so repos
// work inside and outside transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// GetQuerier returns the transaction in ctx, or the pool outside one.
func (m *TxManager) GetQuerier(ctx context.Context) Querier {
	if t := m.GetTx(ctx); t != nil {
		return t
	}
	return m.pool
}

// Direct returns the pool, ignoring any transaction in ctx.
func (m *TxManager) Direct() Querier {
	return m.pool
}
