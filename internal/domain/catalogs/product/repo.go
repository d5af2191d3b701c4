package product

import (
	"context"

	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain"
)

// Repository defines the interface for Product persistence.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, productID id.ID) (*Product, error)
	List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Product], error)

	// CurrentStocks returns current stock for each requested product.
	// Missing products are absent from the map.
	CurrentStocks(ctx context.Context, productIDs []id.ID) (map[id.ID]int64, error)
}
