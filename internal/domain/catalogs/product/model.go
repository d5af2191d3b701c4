// Package product provides the product catalog.
package product

import (
	"context"
	"strings"
	"time"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/types"
)

// Product is a stock-keeping item.
type Product struct {
	entity.Catalog

	Unit  string      `db:"unit" json:"unit"`
	Cost  types.Money `db:"cost" json:"cost"`
	Price types.Money `db:"price" json:"price"`

	// CurrentStock is maintained by the stock ledger only.
	CurrentStock int64 `db:"current_stock" json:"currentStock"`
}

// NewProduct creates a product with zero stock.
func NewProduct(name, unit string, cost, price types.Money, now time.Time) *Product {
	return &Product{
		Catalog: entity.NewCatalog(name, now),
		Unit:    strings.TrimSpace(unit),
		Cost:    types.RoundMoney(cost),
		Price:   types.RoundMoney(price),
	}
}

// Validate implements entity.Validatable.
func (p *Product) Validate(ctx context.Context) error {
	if err := p.Catalog.Validate(ctx); err != nil {
		return err
	}
	if p.Unit == "" {
		return apperror.NewValidation("unit is required").
			WithDetail("field", "unit")
	}
	if p.Cost.IsNegative() {
		return apperror.NewValidation("cost cannot be negative").
			WithDetail("field", "cost")
	}
	if p.Price.IsNegative() {
		return apperror.NewValidation("price cannot be negative").
			WithDetail("field", "price")
	}
	return nil
}
