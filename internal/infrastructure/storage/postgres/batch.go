package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CopyMinRows is the row count from which CopyRows switches from a batched
// INSERT to the COPY protocol.
const CopyMinRows = 64

// BatchInserter writes document lines and stock movements in bulk.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyRows inserts rows into table. It must run inside a transaction so the
// rows commit together with the record that owns them.
// Large sets use COPY; small ones a single pgx.Batch round-trip, which keeps
// constraint names in the returned errors.
func (b *BatchInserter) CopyRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("insert into %s requires transaction context", table)
	}

	if len(rows) >= CopyMinRows {
		n, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
		if err != nil {
			return n, translateError(fmt.Errorf("copy into %s: %w", table, err))
		}
		return n, nil
	}

	sql := insertSQL(table, columns)
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(sql, r...)
	}
	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return 0, translateError(fmt.Errorf("insert into %s: %w", table, err))
		}
	}
	return int64(len(rows)), nil
}

func insertSQL(table string, columns []string) string {
	sql := "INSERT INTO " + pgx.Identifier{table}.Sanitize() + " ("
	values := ""
	for i, c := range columns {
		if i > 0 {
			sql += ", "
			values += ", "
		}
		sql += pgx.Identifier{c}.Sanitize()
		values += fmt.Sprintf("$%d", i+1)
	}
	return sql + ") VALUES (" + values + ")"
}
