package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain/documents/adjustment"
	"stockkeeper/internal/infrastructure/storage/postgres"
)

const (
	adjustmentTable      = "management_stocks"
	adjustmentItemsTable = "management_stock_items"
)

var (
	adjustmentCols     = postgres.ExtractDBColumns[adjustment.ManagementStock]()
	adjustmentItemCols = postgres.ExtractDBColumns[adjustment.Item]()
)

// AdjustmentRepo implements adjustment.Repository.
// A second adjustment for the same count violates uq_management_stocks_linked_opname,
// which TranslateError reports as OPNAME_ALREADY_ADJUSTED.
type AdjustmentRepo struct {
	*BaseDocumentRepo[*adjustment.ManagementStock]
	inserter *postgres.BatchInserter
}

var _ adjustment.Repository = (*AdjustmentRepo)(nil)

// NewAdjustmentRepo creates a new adjustment repository.
func NewAdjustmentRepo(txManager *postgres.TxManager) *AdjustmentRepo {
	return &AdjustmentRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			DocumentTable{Name: adjustmentTable, DateColumn: "management_date", SearchColumns: []string{"produced_by"}},
			adjustmentCols,
			func() *adjustment.ManagementStock { return &adjustment.ManagementStock{} },
		),
		inserter: postgres.NewBatchInserter(txManager),
	}
}

func (r *AdjustmentRepo) itemsQuery(adjustmentID id.ID) squirrel.SelectBuilder {
	return r.Builder().
		Select(adjustmentItemCols...).
		From(adjustmentItemsTable).
		Where(squirrel.Eq{"management_stock_id": adjustmentID}).
		OrderBy("line_no")
}

// GetItems returns the lines of an adjustment in line order.
func (r *AdjustmentRepo) GetItems(ctx context.Context, adjustmentID id.ID) ([]adjustment.Item, error) {
	sql, args, err := r.itemsQuery(adjustmentID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := []adjustment.Item{}
	if err := pgxscan.Select(ctx, r.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select adjustment items: %w", err)
	}
	return items, nil
}

// CreateItems inserts the lines of a new adjustment.
func (r *AdjustmentRepo) CreateItems(ctx context.Context, adjustmentID id.ID, items []adjustment.Item) error {
	rows := make([][]any, 0, len(items))
	for _, it := range items {
		m := postgres.StructToMap(it)
		m["management_stock_id"] = adjustmentID
		row := make([]any, len(adjustmentItemCols))
		for i, col := range adjustmentItemCols {
			row[i] = m[col]
		}
		rows = append(rows, row)
	}
	_, err := r.inserter.CopyRows(ctx, adjustmentItemsTable, adjustmentItemCols, rows)
	return err
}
