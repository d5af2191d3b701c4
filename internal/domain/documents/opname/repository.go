package opname

import (
	"context"

	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain"
)

// Repository defines operations for stock counts.
type Repository interface {
	Create(ctx context.Context, o *Opname) error
	GetByID(ctx context.Context, opnameID id.ID) (*Opname, error)
	// GetForUpdate loads the header with a row lock held until the transaction ends.
	GetForUpdate(ctx context.Context, opnameID id.ID) (*Opname, error)
	// Update saves the header if its version still matches the stored one,
	// then increments the version.
	Update(ctx context.Context, o *Opname) error
	// Delete removes the count and, by cascade, its items.
	Delete(ctx context.Context, opnameID id.ID) error

	GetItems(ctx context.Context, opnameID id.ID) ([]Item, error)
	// SaveItems replaces the item set.
	SaveItems(ctx context.Context, opnameID id.ID, items []Item) error

	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Opname], error)

	// AdjustmentOf returns the adjustment that references the count, if any.
	AdjustmentOf(ctx context.Context, opnameID id.ID) (*id.ID, error)
}
