// Package register_repo provides PostgreSQL implementations for register repositories.
package register_repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain/registers/stock"
	"stockkeeper/internal/infrastructure/storage/postgres"
)

const (
	stockMovementsTable = "stock_movements"
	productsTable       = "products"
)

var movementCols = postgres.ExtractDBColumns[entity.StockMovement]()

// StockRepo implements stock.Repository.
type StockRepo struct {
	txManager *postgres.TxManager
	inserter  *postgres.BatchInserter
	builder   squirrel.StatementBuilderType
}

var _ stock.Repository = (*StockRepo)(nil)

// NewStockRepo creates a new stock ledger repository.
func NewStockRepo(txManager *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txManager: txManager,
		inserter:  postgres.NewBatchInserter(txManager),
		builder:   squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// applyDeltaQuery adds delta in a single statement so concurrent updates of
// the same row serialize on its lock and none is lost.
func (r *StockRepo) applyDeltaQuery(productID id.ID, delta int64, guard bool) squirrel.UpdateBuilder {
	q := r.builder.
		Update(productsTable).
		Set("current_stock", squirrel.Expr("current_stock + ?", delta)).
		Set("version", squirrel.Expr("version + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": productID})
	if guard {
		q = q.Where(squirrel.Expr("current_stock + ? >= 0", delta))
	}
	return q.Suffix("RETURNING current_stock")
}

// ApplyDelta implements stock.Repository.
func (r *StockRepo) ApplyDelta(ctx context.Context, productID id.ID, delta int64, guard bool) (int64, bool, error) {
	sql, args, err := r.applyDeltaQuery(productID, delta, guard).ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build update: %w", err)
	}

	querier := r.txManager.GetQuerier(ctx)
	var balance int64
	err = querier.QueryRow(ctx, sql, args...).Scan(&balance)
	if err == nil {
		return balance, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, postgres.TranslateError(fmt.Errorf("apply stock delta: %w", err))
	}

	// No row: either the product is missing or the guard refused.
	err = querier.QueryRow(ctx, `SELECT current_stock FROM products WHERE id = $1`, productID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, apperror.NewNotFound(productsTable, productID.String())
	}
	if err != nil {
		return 0, false, fmt.Errorf("read current stock: %w", err)
	}
	return balance, false, nil
}

// CreateMovements batch inserts stock card lines.
func (r *StockRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	rows := make([][]any, 0, len(movements))
	for _, m := range movements {
		rows = append(rows, movementRow(m))
	}
	if _, err := r.inserter.CopyRows(ctx, stockMovementsTable, movementCols, rows); err != nil {
		return fmt.Errorf("insert movements: %w", err)
	}
	return nil
}

func movementRow(m entity.StockMovement) []any {
	data := postgres.StructToMap(m)
	row := make([]any, len(movementCols))
	for i, col := range movementCols {
		row[i] = data[col]
	}
	return row
}

func (r *StockRepo) movementsQuery(productID id.ID, filter stock.MovementFilter) squirrel.SelectBuilder {
	q := r.builder.
		Select(movementCols...).
		From(stockMovementsTable).
		Where(squirrel.Eq{"product_id": productID})
	if filter.RecorderID != nil {
		q = q.Where(squirrel.Eq{"recorder_id": *filter.RecorderID})
	}
	return q
}

// ListMovements returns a product's stock card, newest first.
func (r *StockRepo) ListMovements(ctx context.Context, productID id.ID, filter stock.MovementFilter) ([]entity.StockMovement, int64, error) {
	q := r.movementsQuery(productID, filter)
	querier := r.txManager.GetQuerier(ctx)

	var total int64
	countSQL, countArgs, err := r.builder.Select("COUNT(*)").FromSelect(q, "sub").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	if err := querier.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count movements: %w", err)
	}

	q = q.OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build query: %w", err)
	}

	movements := []entity.StockMovement{}
	if err := pgxscan.Select(ctx, querier, &movements, sql, args...); err != nil {
		return nil, 0, fmt.Errorf("select movements: %w", err)
	}
	return movements, total, nil
}
