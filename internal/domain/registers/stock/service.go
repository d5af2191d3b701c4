package stock

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain"
	"stockkeeper/pkg/logger"
)

// Entry is one signed delta for one product.
type Entry struct {
	ProductID id.ID
	Delta     int64
}

// ApplyOptions tune a single application.
type ApplyOptions struct {
	// ForbidNegative rejects any delta that would take stock below zero,
	// regardless of the service's negative stock policy.
	ForbidNegative bool
}

// Service is the only writer of Product.CurrentStock.
// Every call must run inside the transaction of the record it backs, so the
// delta and the record commit or roll back together.
type Service struct {
	repo          Repository
	allowNegative bool
	now           func() time.Time
}

// NewService creates a stock ledger service. allowNegative is the policy for
// deltas that do not set ApplyOptions.ForbidNegative (count adjustments and
// reversals).
func NewService(repo Repository, allowNegative bool) *Service {
	return &Service{
		repo:          repo,
		allowNegative: allowNegative,
		now:           time.Now,
	}
}

// Apply adds delta to a single product and returns the new stock.
func (s *Service) Apply(ctx context.Context, rec entity.Recorder, productID id.ID, delta int64, opts ApplyOptions) (int64, error) {
	moves, err := s.ApplyBatch(ctx, rec, []Entry{{ProductID: productID, Delta: delta}}, opts)
	if err != nil {
		return 0, err
	}
	if len(moves) == 0 {
		return 0, nil
	}
	return moves[0].BalanceAfter, nil
}

// Reverse applies the negation of every entry and records the movements as
// reversals. Applying a batch and then reversing it leaves stock unchanged.
func (s *Service) Reverse(ctx context.Context, rec entity.Recorder, entries []Entry) ([]entity.StockMovement, error) {
	neg := make([]Entry, len(entries))
	for i, e := range entries {
		neg[i] = Entry{ProductID: e.ProductID, Delta: -e.Delta}
	}
	return s.apply(ctx, rec, neg, ApplyOptions{}, true)
}

// ApplyBatch applies every entry and records one stock card line per non-zero
// delta. The first failure aborts the batch; the caller's transaction then
// discards whatever was already applied.
func (s *Service) ApplyBatch(ctx context.Context, rec entity.Recorder, entries []Entry, opts ApplyOptions) ([]entity.StockMovement, error) {
	return s.apply(ctx, rec, entries, opts, false)
}

func (s *Service) apply(ctx context.Context, rec entity.Recorder, entries []Entry, opts ApplyOptions, reversal bool) ([]entity.StockMovement, error) {
	if id.IsNil(rec.ID) {
		return nil, apperror.NewValidation("recorder is required")
	}

	// Lock product rows in a fixed order so concurrent batches cannot deadlock.
	ordered := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.Delta != 0 {
			ordered = append(ordered, e)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return bytes.Compare(ordered[i].ProductID[:], ordered[j].ProductID[:]) < 0
	})

	guard := opts.ForbidNegative || !s.allowNegative
	now := s.now()
	movements := make([]entity.StockMovement, 0, len(ordered))

	for _, e := range ordered {
		balance, applied, err := s.repo.ApplyDelta(ctx, e.ProductID, e.Delta, guard && e.Delta < 0)
		if err != nil {
			return nil, fmt.Errorf("apply delta to %s: %w", e.ProductID, err)
		}
		if !applied {
			return nil, apperror.NewInsufficientStock(e.ProductID.String(), -e.Delta, balance)
		}

		movements = append(movements, entity.NewStockMovement(e.ProductID, rec, e.Delta, balance, reversal, now))
		logger.Debug(ctx, "stock delta applied",
			"product_id", e.ProductID,
			"delta", e.Delta,
			"balance", balance,
			"recorder", rec.Code,
			"reversal", reversal,
		)
	}

	if len(movements) > 0 {
		if err := s.repo.CreateMovements(ctx, movements); err != nil {
			return nil, fmt.Errorf("create movements: %w", err)
		}
	}
	return movements, nil
}

// ProductMovements returns the stock card of a product, newest first.
func (s *Service) ProductMovements(ctx context.Context, productID id.ID, limit, offset int) (domain.ListResult[entity.StockMovement], error) {
	page := domain.ListFilter{Limit: limit, Offset: offset}.Normalize()
	items, total, err := s.repo.ListMovements(ctx, productID, MovementFilter{Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		return domain.ListResult[entity.StockMovement]{}, err
	}
	return domain.ListResult[entity.StockMovement]{
		Items:      items,
		TotalCount: total,
		Limit:      page.Limit,
		Offset:     page.Offset,
	}, nil
}
