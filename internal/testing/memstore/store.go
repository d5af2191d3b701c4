// Package memstore is an in-memory implementation of the repositories and
// the transaction manager, for service tests.
//
// Transactions are serialized: RunInTransaction holds a store-wide lock, so
// row locks (GetForUpdate) need no extra bookkeeping. A transaction that
// returns an error restores the snapshot taken when it began.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/core/tx"
	"stockkeeper/internal/domain"
	"stockkeeper/internal/domain/audit"
	"stockkeeper/internal/domain/catalogs/product"
	"stockkeeper/internal/domain/documents/adjustment"
	"stockkeeper/internal/domain/documents/opname"
)

type state struct {
	products        map[id.ID]product.Product
	movements       []entity.StockMovement
	opnames         map[id.ID]opname.Opname
	opnameItems     map[id.ID][]opname.Item
	adjustments     map[id.ID]adjustment.ManagementStock
	adjustmentItems map[id.ID][]adjustment.Item
	audit           []audit.Entry
}

func newState() state {
	return state{
		products:        make(map[id.ID]product.Product),
		opnames:         make(map[id.ID]opname.Opname),
		opnameItems:     make(map[id.ID][]opname.Item),
		adjustments:     make(map[id.ID]adjustment.ManagementStock),
		adjustmentItems: make(map[id.ID][]adjustment.Item),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	c.movements = append([]entity.StockMovement(nil), s.movements...)
	for k, v := range s.opnames {
		c.opnames[k] = v
	}
	for k, v := range s.opnameItems {
		c.opnameItems[k] = append([]opname.Item(nil), v...)
	}
	for k, v := range s.adjustments {
		c.adjustments[k] = v
	}
	for k, v := range s.adjustmentItems {
		c.adjustmentItems[k] = append([]adjustment.Item(nil), v...)
	}
	c.audit = append([]audit.Entry(nil), s.audit...)
	return c
}

// Store holds all tables.
type Store struct {
	txMu sync.Mutex // held for the duration of a transaction

	mu     sync.Mutex // guards data and faults
	data   state
	faults map[string]error

	commits   int
	rollbacks int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		data:   newState(),
		faults: make(map[string]error),
	}
}

var _ tx.Manager = (*Store)(nil)

type txKey struct{}

// RunInTransaction implements tx.Manager. Nested calls join the outer transaction.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.data.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.data = snapshot
		s.rollbacks++
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.commits++
	s.mu.Unlock()
	return nil
}

// FailOn makes the named operation (e.g. "CreateMovements") return err once.
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// fault must be called with mu held.
func (s *Store) fault(op string) error {
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		return err
	}
	return nil
}

// Stats returns the number of committed and rolled back transactions.
func (s *Store) Stats() (commits, rollbacks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits, s.rollbacks
}

// Products returns the product repository.
func (s *Store) Products() *ProductRepo { return &ProductRepo{s} }

// Ledger returns the stock ledger repository.
func (s *Store) Ledger() *LedgerRepo { return &LedgerRepo{s} }

// Opnames returns the stock count repository.
func (s *Store) Opnames() *OpnameRepo { return &OpnameRepo{s} }

// Adjustments returns the adjustment repository.
func (s *Store) Adjustments() *AdjustmentRepo { return &AdjustmentRepo{s} }

// Audit returns the audit log.
func (s *Store) Audit() *AuditLog { return &AuditLog{s} }

// SeedProduct inserts a product directly, bypassing the ledger.
func (s *Store) SeedProduct(p product.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.products[p.ID] = p
}

// Stock returns a product's current stock.
func (s *Store) Stock(productID id.ID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.products[productID].CurrentStock
}

// Movements returns every stock movement in insertion order.
func (s *Store) Movements() []entity.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.StockMovement(nil), s.data.movements...)
}

// Counts returns the number of stored opnames and adjustments.
func (s *Store) Counts() (opnames, adjustments int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data.opnames), len(s.data.adjustments)
}

func paginate[T any](items []T, f domain.ListFilter) domain.ListResult[T] {
	res := domain.ListResult[T]{TotalCount: int64(len(items)), Limit: f.Limit, Offset: f.Offset}
	if f.Offset >= len(items) {
		res.Items = []T{}
		return res
	}
	end := len(items)
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	res.Items = items[f.Offset:end]
	return res
}

func matches(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

func sortByCodeDesc[T any](items []T, codeOf func(T) string) {
	sort.Slice(items, func(i, j int) bool { return codeOf(items[i]) > codeOf(items[j]) })
}

func notFound(entity string, v id.ID) error {
	return apperror.NewNotFound(entity, v.String())
}
