package memstore

import (
	"fmt"
	"time"

	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/core/numerator"
	"stockkeeper/internal/core/types"
	"stockkeeper/internal/domain"
	"stockkeeper/internal/domain/audit"
	"stockkeeper/internal/domain/catalogs/product"
	"stockkeeper/internal/domain/documents/adjustment"
	"stockkeeper/internal/domain/documents/opname"
	"stockkeeper/internal/domain/registers/stock"
)

// Env wires every domain service to one Store.
type Env struct {
	Store       *Store
	Codes       *numerator.MockGenerator
	Ledger      *stock.Service
	Products    *product.Service
	Opnames     *opname.Service
	Adjustments *adjustment.Service
	Audit       *AuditLog

	seeded int
}

// NewEnv builds the services. allowNegative is the ledger's negative stock policy.
func NewEnv(allowNegative bool) *Env {
	s := New()
	codes := &numerator.MockGenerator{}
	ledger := stock.NewService(s.Ledger(), allowNegative)
	opnames := opname.NewService(s.Opnames(), s.Products(), codes, s)
	adjustments := adjustment.NewService(s.Adjustments(), ledger, opnames, codes, s)

	log := s.Audit()
	opnames.Hooks().On(domain.BeforeDelete, audit.SnapshotOnDelete[*opname.Opname](log, string(opname.CodeEntityType)))
	adjustments.Hooks().On(domain.BeforeDelete, audit.SnapshotOnDelete[*adjustment.ManagementStock](log, string(adjustment.CodeEntityType)))

	return &Env{
		Store:       s,
		Codes:       codes,
		Ledger:      ledger,
		Products:    product.NewService(s.Products(), ledger, codes, s),
		Opnames:     opnames,
		Adjustments: adjustments,
		Audit:       log,
	}
}

// AddProduct seeds a product with the given stock and returns its id.
func (e *Env) AddProduct(name string, currentStock int64) id.ID {
	e.seeded++
	p := product.NewProduct(name, "pcs", types.MustMoney("1000"), types.MustMoney("1500"), time.Now())
	p.Code = fmt.Sprintf("PDK/01/2000/%04d", e.seeded)
	p.CurrentStock = currentStock
	e.Store.SeedProduct(*p)
	return p.ID
}

// MovementsOf returns the movements of one product in insertion order.
func (e *Env) MovementsOf(productID id.ID) []entity.StockMovement {
	var out []entity.StockMovement
	for _, m := range e.Store.Movements() {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}
