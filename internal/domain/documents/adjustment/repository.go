package adjustment

import (
	"context"

	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain"
)

// Repository defines operations for stock adjustments.
type Repository interface {
	// Create inserts the header. At most one adjustment may reference a
	// given stock count; a second one fails with OPNAME_ALREADY_ADJUSTED.
	Create(ctx context.Context, m *ManagementStock) error
	GetByID(ctx context.Context, adjustmentID id.ID) (*ManagementStock, error)
	GetForUpdate(ctx context.Context, adjustmentID id.ID) (*ManagementStock, error)
	// Update saves the header if its version still matches, then increments it.
	Update(ctx context.Context, m *ManagementStock) error
	Delete(ctx context.Context, adjustmentID id.ID) error

	GetItems(ctx context.Context, adjustmentID id.ID) ([]Item, error)
	// CreateItems inserts the lines of a new adjustment. Lines are never edited.
	CreateItems(ctx context.Context, adjustmentID id.ID, items []Item) error

	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*ManagementStock], error)
}
