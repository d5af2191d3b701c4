package product

import (
	"context"
	"fmt"
	"time"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/code"
	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/core/numerator"
	"stockkeeper/internal/core/tx"
	"stockkeeper/internal/core/types"
	"stockkeeper/internal/domain"
	"stockkeeper/internal/domain/registers/stock"
	"stockkeeper/pkg/logger"
)

// CreateInput holds the fields of a new product.
type CreateInput struct {
	Name  string
	Unit  string
	Cost  types.Money
	Price types.Money
	// InitialStock is booked through the ledger as an opening movement.
	InitialStock int64
}

// Service provides business logic for the product catalog.
type Service struct {
	repo      Repository
	ledger    *stock.Service
	numerator numerator.Generator
	txManager tx.Manager
	now       func() time.Time
}

// NewService creates a new product service.
func NewService(repo Repository, ledger *stock.Service, gen numerator.Generator, txm tx.Manager) *Service {
	return &Service{
		repo:      repo,
		ledger:    ledger,
		numerator: gen,
		txManager: txm,
		now:       time.Now,
	}
}

// Create allocates a PDK code and stores the product.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Product, error) {
	if in.InitialStock < 0 {
		return nil, apperror.NewValidation("initial stock cannot be negative").
			WithDetail("field", "initialStock")
	}

	now := s.now()
	p := NewProduct(in.Name, in.Unit, in.Cost, in.Price, now)
	if err := p.Validate(ctx); err != nil {
		return nil, err
	}

	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		c, err := s.numerator.Next(ctx, code.Products, now)
		if err != nil {
			return err
		}
		p.Code = c

		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("create product: %w", err)
		}

		if in.InitialStock > 0 {
			rec := entity.Recorder{ID: p.ID, Type: entity.RecorderProduct, Code: p.Code}
			balance, err := s.ledger.Apply(ctx, rec, p.ID, in.InitialStock, stock.ApplyOptions{})
			if err != nil {
				return err
			}
			p.CurrentStock = balance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "product created", "id", p.ID, "code", p.Code, "stock", p.CurrentStock)
	return p, nil
}

// GetByID returns a product.
func (s *Service) GetByID(ctx context.Context, productID id.ID) (*Product, error) {
	return s.repo.GetByID(ctx, productID)
}

// List returns products page by page.
func (s *Service) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*Product], error) {
	return s.repo.List(ctx, filter.Normalize())
}

// Movements returns the stock card of a product.
func (s *Service) Movements(ctx context.Context, productID id.ID, limit, offset int) (domain.ListResult[entity.StockMovement], error) {
	if _, err := s.repo.GetByID(ctx, productID); err != nil {
		return domain.ListResult[entity.StockMovement]{}, err
	}
	return s.ledger.ProductMovements(ctx, productID, limit, offset)
}
