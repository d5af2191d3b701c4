package register_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain/registers/stock"
)

func TestApplyDeltaQuery_Guarded(t *testing.T) {
	repo := NewStockRepo(nil)
	productID := id.New()

	sql, args, err := repo.applyDeltaQuery(productID, -8, true).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"UPDATE products SET current_stock = current_stock + $1, version = version + 1, updated_at = now() "+
			"WHERE id = $2 AND current_stock + $3 >= 0 RETURNING current_stock",
		sql)
	// squirrel.Eq passes uuid values through driver.Valuer
	assert.Equal(t, []any{int64(-8), productID.String(), int64(-8)}, args)
}

func TestApplyDeltaQuery_Unguarded(t *testing.T) {
	sql, args, err := NewStockRepo(nil).applyDeltaQuery(id.New(), 5, false).ToSql()
	require.NoError(t, err)
	assert.NotContains(t, sql, ">= 0")
	assert.Len(t, args, 2)
}

func TestMovementsQuery(t *testing.T) {
	repo := NewStockRepo(nil)
	productID, recorderID := id.New(), id.New()

	sql, args, err := repo.movementsQuery(productID, stock.MovementFilter{RecorderID: &recorderID}).ToSql()
	require.NoError(t, err)
	assert.Contains(t, sql, "FROM stock_movements WHERE product_id = $1 AND recorder_id = $2")
	assert.Equal(t, []any{productID.String(), recorderID.String()}, args)
}

func TestMovementRow(t *testing.T) {
	rec := entity.Recorder{ID: id.New(), Type: entity.RecorderManagementStock, Code: "SMN/04/2025/0001"}
	m := entity.NewStockMovement(id.New(), rec, -3, 17, false, time.Now())

	row := movementRow(m)
	require.Len(t, row, len(movementCols))
	for i, col := range movementCols {
		switch col {
		case "recorder_code":
			assert.Equal(t, "SMN/04/2025/0001", row[i])
		case "delta":
			assert.Equal(t, int64(-3), row[i])
		case "balance_after":
			assert.Equal(t, int64(17), row[i])
		}
	}
}
