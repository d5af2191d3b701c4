package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain/documents/opname"
	"stockkeeper/internal/infrastructure/storage/postgres"
)

const (
	opnameTable      = "stock_opnames"
	opnameItemsTable = "stock_opname_items"
)

var (
	opnameCols     = postgres.ExtractDBColumns[opname.Opname]()
	opnameItemCols = postgres.ExtractDBColumns[opname.Item]()
)

// OpnameRepo implements opname.Repository.
type OpnameRepo struct {
	*BaseDocumentRepo[*opname.Opname]
	inserter *postgres.BatchInserter
}

var _ opname.Repository = (*OpnameRepo)(nil)

// NewOpnameRepo creates a new stock count repository.
func NewOpnameRepo(txManager *postgres.TxManager) *OpnameRepo {
	return &OpnameRepo{
		BaseDocumentRepo: NewBaseDocumentRepo(
			txManager,
			DocumentTable{Name: opnameTable, DateColumn: "opname_date", SearchColumns: []string{"conducted_by"}},
			opnameCols,
			func() *opname.Opname { return &opname.Opname{} },
		),
		inserter: postgres.NewBatchInserter(txManager),
	}
}

func (r *OpnameRepo) itemsQuery(opnameID id.ID) squirrel.SelectBuilder {
	return r.Builder().
		Select(opnameItemCols...).
		From(opnameItemsTable).
		Where(squirrel.Eq{"opname_id": opnameID}).
		OrderBy("line_no")
}

// GetItems returns the items of a count in line order.
func (r *OpnameRepo) GetItems(ctx context.Context, opnameID id.ID) ([]opname.Item, error) {
	sql, args, err := r.itemsQuery(opnameID).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	items := []opname.Item{}
	if err := pgxscan.Select(ctx, r.Querier(ctx), &items, sql, args...); err != nil {
		return nil, fmt.Errorf("select opname items: %w", err)
	}
	return items, nil
}

// SaveItems replaces the item set of a count.
func (r *OpnameRepo) SaveItems(ctx context.Context, opnameID id.ID, items []opname.Item) error {
	sql, args, err := r.Builder().
		Delete(opnameItemsTable).
		Where(squirrel.Eq{"opname_id": opnameID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}
	if _, err := r.Querier(ctx).Exec(ctx, sql, args...); err != nil {
		return postgres.TranslateError(fmt.Errorf("delete opname items: %w", err))
	}

	rows := make([][]any, 0, len(items))
	for _, it := range items {
		rows = append(rows, opnameItemRow(opnameID, it))
	}
	_, err = r.inserter.CopyRows(ctx, opnameItemsTable, opnameItemCols, rows)
	return err
}

func opnameItemRow(opnameID id.ID, it opname.Item) []any {
	m := postgres.StructToMap(it)
	m["opname_id"] = opnameID
	row := make([]any, len(opnameItemCols))
	for i, col := range opnameItemCols {
		row[i] = m[col]
	}
	return row
}

// AdjustmentOf returns the adjustment that consumed the count, if any.
func (r *OpnameRepo) AdjustmentOf(ctx context.Context, opnameID id.ID) (*id.ID, error) {
	sql, args, err := r.Builder().
		Select("id").
		From(adjustmentTable).
		Where(squirrel.Eq{"linked_opname_id": opnameID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var ids []id.ID
	if err := pgxscan.Select(ctx, r.Querier(ctx), &ids, sql, args...); err != nil {
		return nil, fmt.Errorf("find opname adjustment: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}
