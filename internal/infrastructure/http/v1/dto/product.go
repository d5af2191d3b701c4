package dto

import (
	"stockkeeper/internal/core/types"
	"stockkeeper/internal/domain/catalogs/product"
)

// CreateProductRequest represents a request to create a product.
type CreateProductRequest struct {
	Name         string      `json:"name" binding:"required,max=200"`
	Unit         string      `json:"unit" binding:"required,max=20"`
	Cost         types.Money `json:"cost"`
	Price        types.Money `json:"price"`
	InitialStock int64       `json:"initialStock" binding:"gte=0"`
}

// ToInput converts the request to a service input.
func (r *CreateProductRequest) ToInput() product.CreateInput {
	return product.CreateInput{
		Name:         r.Name,
		Unit:         r.Unit,
		Cost:         r.Cost,
		Price:        r.Price,
		InitialStock: r.InitialStock,
	}
}

// MovementsQuery pages the stock card.
type MovementsQuery struct {
	Limit  int `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset int `form:"offset" binding:"omitempty,min=0"`
}
