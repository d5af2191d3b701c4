// Package stock applies signed stock deltas to products and keeps the stock card.
package stock

import (
	"context"

	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
)

// Repository defines persistence for the stock ledger.
type Repository interface {
	// ApplyDelta atomically adds delta to the product's current stock and
	// returns the new value. With guard set, the update only happens when
	// the result stays non-negative; otherwise applied is false and stock
	// holds the unchanged current value.
	ApplyDelta(ctx context.Context, productID id.ID, delta int64, guard bool) (stock int64, applied bool, err error)

	// CreateMovements batch inserts stock card lines.
	CreateMovements(ctx context.Context, movements []entity.StockMovement) error

	// ListMovements returns a product's stock card, newest first.
	ListMovements(ctx context.Context, productID id.ID, filter MovementFilter) ([]entity.StockMovement, int64, error)
}

// MovementFilter for paging the stock card.
type MovementFilter struct {
	RecorderID *id.ID
	Limit      int
	Offset     int
}
