package memstore

import (
	"context"
	"sort"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain"
	"stockkeeper/internal/domain/audit"
	"stockkeeper/internal/domain/catalogs/product"
	"stockkeeper/internal/domain/documents/adjustment"
	"stockkeeper/internal/domain/documents/opname"
	"stockkeeper/internal/domain/registers/stock"
)

// --- products ---

// ProductRepo implements product.Repository.
type ProductRepo struct{ s *Store }

var _ product.Repository = (*ProductRepo)(nil)

func (r *ProductRepo) Create(ctx context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("CreateProduct"); err != nil {
		return err
	}
	for _, existing := range r.s.data.products {
		if existing.Code == p.Code {
			return apperror.NewDuplicate("product", "code", p.Code)
		}
	}
	r.s.data.products[p.ID] = *p
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, productID id.ID) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.data.products[productID]
	if !ok {
		return nil, notFound("product", productID)
	}
	return &p, nil
}

func (r *ProductRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*product.Product], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	items := make([]*product.Product, 0, len(r.s.data.products))
	for _, p := range r.s.data.products {
		if matches(filter.Search, p.Code, p.Name) {
			p := p
			items = append(items, &p)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Code < items[j].Code })
	return paginate(items, filter), nil
}

func (r *ProductRepo) CurrentStocks(ctx context.Context, productIDs []id.ID) (map[id.ID]int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[id.ID]int64, len(productIDs))
	for _, pid := range productIDs {
		if p, ok := r.s.data.products[pid]; ok {
			out[pid] = p.CurrentStock
		}
	}
	return out, nil
}

// --- ledger ---

// LedgerRepo implements stock.Repository.
type LedgerRepo struct{ s *Store }

var _ stock.Repository = (*LedgerRepo)(nil)

func (r *LedgerRepo) ApplyDelta(ctx context.Context, productID id.ID, delta int64, guard bool) (int64, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("ApplyDelta"); err != nil {
		return 0, false, err
	}
	p, ok := r.s.data.products[productID]
	if !ok {
		return 0, false, notFound("product", productID)
	}
	if guard && p.CurrentStock+delta < 0 {
		return p.CurrentStock, false, nil
	}
	p.CurrentStock += delta
	p.Version++
	r.s.data.products[productID] = p
	return p.CurrentStock, true, nil
}

func (r *LedgerRepo) CreateMovements(ctx context.Context, movements []entity.StockMovement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("CreateMovements"); err != nil {
		return err
	}
	r.s.data.movements = append(r.s.data.movements, movements...)
	return nil
}

func (r *LedgerRepo) ListMovements(ctx context.Context, productID id.ID, filter stock.MovementFilter) ([]entity.StockMovement, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.StockMovement
	for i := len(r.s.data.movements) - 1; i >= 0; i-- {
		m := r.s.data.movements[i]
		if m.ProductID != productID {
			continue
		}
		if filter.RecorderID != nil && m.RecorderID != *filter.RecorderID {
			continue
		}
		out = append(out, m)
	}
	page := paginate(out, domain.ListFilter{Limit: filter.Limit, Offset: filter.Offset})
	return page.Items, page.TotalCount, nil
}

// --- opnames ---

// OpnameRepo implements opname.Repository.
type OpnameRepo struct{ s *Store }

var _ opname.Repository = (*OpnameRepo)(nil)

func (r *OpnameRepo) Create(ctx context.Context, o *opname.Opname) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("CreateOpname"); err != nil {
		return err
	}
	row := *o
	row.Items, row.AdjustmentID = nil, nil
	r.s.data.opnames[o.ID] = row
	return nil
}

func (r *OpnameRepo) GetByID(ctx context.Context, opnameID id.ID) (*opname.Opname, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.data.opnames[opnameID]
	if !ok {
		return nil, notFound("stock_opname", opnameID)
	}
	return &o, nil
}

func (r *OpnameRepo) GetForUpdate(ctx context.Context, opnameID id.ID) (*opname.Opname, error) {
	return r.GetByID(ctx, opnameID)
}

func (r *OpnameRepo) Update(ctx context.Context, o *opname.Opname) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.opnames[o.ID]
	if !ok {
		return notFound("stock_opname", o.ID)
	}
	if stored.Version != o.Version {
		return apperror.NewConcurrentModification("stock_opname", o.ID.String())
	}
	o.Version++
	row := *o
	row.Items, row.AdjustmentID = nil, nil
	r.s.data.opnames[o.ID] = row
	return nil
}

func (r *OpnameRepo) Delete(ctx context.Context, opnameID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.opnames[opnameID]; !ok {
		return notFound("stock_opname", opnameID)
	}
	for _, m := range r.s.data.adjustments {
		if m.LinkedOpnameID != nil && *m.LinkedOpnameID == opnameID {
			return apperror.NewOpnameAlreadyAdjusted(opnameID.String())
		}
	}
	delete(r.s.data.opnames, opnameID)
	delete(r.s.data.opnameItems, opnameID)
	return nil
}

func (r *OpnameRepo) GetItems(ctx context.Context, opnameID id.ID) ([]opname.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]opname.Item(nil), r.s.data.opnameItems[opnameID]...), nil
}

func (r *OpnameRepo) SaveItems(ctx context.Context, opnameID id.ID, items []opname.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("SaveOpnameItems"); err != nil {
		return err
	}
	r.s.data.opnameItems[opnameID] = append([]opname.Item(nil), items...)
	return nil
}

func (r *OpnameRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*opname.Opname], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var items []*opname.Opname
	for _, o := range r.s.data.opnames {
		if filter.Status != "" && string(o.Status) != filter.Status {
			continue
		}
		if filter.From != nil && o.OpnameDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && o.OpnameDate.After(*filter.To) {
			continue
		}
		if !matches(filter.Search, o.Code, o.ConductedBy) {
			continue
		}
		o := o
		items = append(items, &o)
	}
	sortByCodeDesc(items, func(o *opname.Opname) string { return o.Code })
	return paginate(items, filter), nil
}

func (r *OpnameRepo) AdjustmentOf(ctx context.Context, opnameID id.ID) (*id.ID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.data.adjustments {
		if m.LinkedOpnameID != nil && *m.LinkedOpnameID == opnameID {
			adjID := m.ID
			return &adjID, nil
		}
	}
	return nil, nil
}

// --- adjustments ---

// AdjustmentRepo implements adjustment.Repository.
type AdjustmentRepo struct{ s *Store }

var _ adjustment.Repository = (*AdjustmentRepo)(nil)

func (r *AdjustmentRepo) Create(ctx context.Context, m *adjustment.ManagementStock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("CreateAdjustment"); err != nil {
		return err
	}
	if m.LinkedOpnameID != nil {
		if _, ok := r.s.data.opnames[*m.LinkedOpnameID]; !ok {
			return notFound("stock_opname", *m.LinkedOpnameID)
		}
		for _, existing := range r.s.data.adjustments {
			if existing.LinkedOpnameID != nil && *existing.LinkedOpnameID == *m.LinkedOpnameID {
				return apperror.NewOpnameAlreadyAdjusted(m.LinkedOpnameID.String())
			}
		}
	}
	row := *m
	row.Items = nil
	r.s.data.adjustments[m.ID] = row
	return nil
}

func (r *AdjustmentRepo) GetByID(ctx context.Context, adjustmentID id.ID) (*adjustment.ManagementStock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.data.adjustments[adjustmentID]
	if !ok {
		return nil, notFound("management_stock", adjustmentID)
	}
	return &m, nil
}

func (r *AdjustmentRepo) GetForUpdate(ctx context.Context, adjustmentID id.ID) (*adjustment.ManagementStock, error) {
	return r.GetByID(ctx, adjustmentID)
}

func (r *AdjustmentRepo) Update(ctx context.Context, m *adjustment.ManagementStock) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.data.adjustments[m.ID]
	if !ok {
		return notFound("management_stock", m.ID)
	}
	if stored.Version != m.Version {
		return apperror.NewConcurrentModification("management_stock", m.ID.String())
	}
	m.Version++
	row := *m
	row.Items = nil
	r.s.data.adjustments[m.ID] = row
	return nil
}

func (r *AdjustmentRepo) Delete(ctx context.Context, adjustmentID id.ID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.adjustments[adjustmentID]; !ok {
		return notFound("management_stock", adjustmentID)
	}
	delete(r.s.data.adjustments, adjustmentID)
	delete(r.s.data.adjustmentItems, adjustmentID)
	return nil
}

func (r *AdjustmentRepo) GetItems(ctx context.Context, adjustmentID id.ID) ([]adjustment.Item, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]adjustment.Item(nil), r.s.data.adjustmentItems[adjustmentID]...), nil
}

func (r *AdjustmentRepo) CreateItems(ctx context.Context, adjustmentID id.ID, items []adjustment.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("CreateAdjustmentItems"); err != nil {
		return err
	}
	r.s.data.adjustmentItems[adjustmentID] = append([]adjustment.Item(nil), items...)
	return nil
}

func (r *AdjustmentRepo) List(ctx context.Context, filter domain.ListFilter) (domain.ListResult[*adjustment.ManagementStock], error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var items []*adjustment.ManagementStock
	for _, m := range r.s.data.adjustments {
		if filter.Status != "" && string(m.Status) != filter.Status {
			continue
		}
		if filter.From != nil && m.ManagementDate.Before(*filter.From) {
			continue
		}
		if filter.To != nil && m.ManagementDate.After(*filter.To) {
			continue
		}
		if !matches(filter.Search, m.Code, m.ProducedBy) {
			continue
		}
		m := m
		items = append(items, &m)
	}
	sortByCodeDesc(items, func(m *adjustment.ManagementStock) string { return m.Code })
	return paginate(items, filter), nil
}

// --- audit ---

// AuditLog implements audit.Recorder and audit.Reader.
type AuditLog struct{ s *Store }

var (
	_ audit.Recorder = (*AuditLog)(nil)
	_ audit.Reader   = (*AuditLog)(nil)
)

func (r *AuditLog) Record(ctx context.Context, e audit.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fault("RecordAudit"); err != nil {
		return err
	}
	r.s.data.audit = append(r.s.data.audit, e)
	return nil
}

func (r *AuditLog) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]audit.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []audit.Entry
	for i := len(r.s.data.audit) - 1; i >= 0; i-- {
		e := r.s.data.audit[i]
		if e.EntityType != entityType || e.EntityID != entityID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
