package entity

import (
	"time"

	"stockkeeper/internal/core/id"
)

// RecorderType names the kind of record that caused a stock movement.
type RecorderType string

const (
	// RecorderProduct is the opening balance entered with a new product.
	RecorderProduct RecorderType = "product"
	// RecorderManagementStock is a stock adjustment (manual or from a count).
	RecorderManagementStock RecorderType = "management_stock"
)

// Recorder identifies the record a movement belongs to.
type Recorder struct {
	ID   id.ID
	Type RecorderType
	Code string
}

// StockMovement is one immutable line of a product's stock card.
// Movements are never updated; a reversal is recorded as a new movement.
type StockMovement struct {
	ID           id.ID        `db:"id" json:"id"`
	ProductID    id.ID        `db:"product_id" json:"productId"`
	RecorderID   id.ID        `db:"recorder_id" json:"recorderId"`
	RecorderType RecorderType `db:"recorder_type" json:"recorderType"`
	RecorderCode string       `db:"recorder_code" json:"recorderCode"`

	// Delta is the signed change applied to current stock.
	Delta int64 `db:"delta" json:"delta"`
	// BalanceAfter is current stock right after Delta was applied.
	BalanceAfter int64 `db:"balance_after" json:"balanceAfter"`
	// Reversal marks movements that compensate an earlier one.
	Reversal bool `db:"reversal" json:"reversal"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NewStockMovement creates a movement for an applied delta.
func NewStockMovement(productID id.ID, rec Recorder, delta, balanceAfter int64, reversal bool, now time.Time) StockMovement {
	return StockMovement{
		ID:           id.New(),
		ProductID:    productID,
		RecorderID:   rec.ID,
		RecorderType: rec.Type,
		RecorderCode: rec.Code,
		Delta:        delta,
		BalanceAfter: balanceAfter,
		Reversal:     reversal,
		CreatedAt:    now.UTC(),
	}
}
