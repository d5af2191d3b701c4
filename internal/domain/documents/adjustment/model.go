// Package adjustment provides stock adjustment records (management stock):
// manual stock in/out and adjustments derived from a reconciled stock count.
package adjustment

import (
	"context"
	"strings"
	"time"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain/registers/stock"
)

// Status is the kind of adjustment.
type Status string

const (
	StatusIn               Status = "IN"
	StatusOut              Status = "OUT"
	StatusOpnameAdjustment Status = "OPNAME_ADJUSTMENT"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(s)); st {
	case StatusIn, StatusOut, StatusOpnameAdjustment:
		return st, nil
	}
	return "", apperror.NewValidation("unknown adjustment status").WithDetail("status", s)
}

// ManagementStock is one stock adjustment.
type ManagementStock struct {
	entity.Document

	ManagementDate time.Time `db:"management_date" json:"managementDate"`
	Status         Status    `db:"status" json:"status"`
	ProducedBy     string    `db:"produced_by" json:"producedBy"`

	// LinkedOpnameID is set for OPNAME_ADJUSTMENT only.
	LinkedOpnameID *id.ID `db:"linked_opname_id" json:"linkedOpnameId,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Item is the adjusted quantity of one product.
type Item struct {
	ID                id.ID `db:"id" json:"id"`
	ManagementStockID id.ID `db:"management_stock_id" json:"managementStockId"`
	LineNo            int   `db:"line_no" json:"lineNo"`
	ProductID         id.ID `db:"product_id" json:"productId"`

	// Quantity is a positive magnitude for IN/OUT and the signed count
	// difference for OPNAME_ADJUSTMENT.
	Quantity int64  `db:"quantity" json:"quantity"`
	Notes    string `db:"notes" json:"notes,omitempty"`

	LinkedOpnameItemID *id.ID `db:"linked_opname_item_id" json:"linkedOpnameItemId,omitempty"`
}

// ItemInput describes a manual adjustment line.
type ItemInput struct {
	ProductID id.ID
	Quantity  int64
	Notes     string
}

// NewManagementStock creates an adjustment header.
func NewManagementStock(status Status, managementDate time.Time, producedBy, notes string, now time.Time) *ManagementStock {
	m := &ManagementStock{
		Document:       entity.NewDocument(now),
		ManagementDate: managementDate,
		Status:         status,
		ProducedBy:     strings.TrimSpace(producedBy),
	}
	m.Notes = strings.TrimSpace(notes)
	return m
}

// Delta returns the signed stock change of an item under status.
func (it Item) Delta(status Status) int64 {
	if status == StatusOut {
		return -it.Quantity
	}
	return it.Quantity
}

// Entries returns the ledger entries the adjustment applies.
func (m *ManagementStock) Entries() []stock.Entry {
	entries := make([]stock.Entry, 0, len(m.Items))
	for _, it := range m.Items {
		entries = append(entries, stock.Entry{ProductID: it.ProductID, Delta: it.Delta(m.Status)})
	}
	return entries
}

// Recorder identifies the adjustment on the stock card.
func (m *ManagementStock) Recorder() entity.Recorder {
	return entity.Recorder{ID: m.ID, Type: entity.RecorderManagementStock, Code: m.Code}
}

// SetManualItems validates and sets IN/OUT lines.
func (m *ManagementStock) SetManualItems(inputs []ItemInput) error {
	if len(inputs) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}

	seen := make(map[id.ID]struct{}, len(inputs))
	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		if id.IsNil(in.ProductID) {
			return apperror.NewValidation("product is required").WithDetail("line", i+1)
		}
		if in.Quantity <= 0 {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("line", i+1).
				WithDetail("productId", in.ProductID.String())
		}
		if _, dup := seen[in.ProductID]; dup {
			return apperror.NewValidation("product appears more than once").
				WithDetail("productId", in.ProductID.String())
		}
		seen[in.ProductID] = struct{}{}

		items = append(items, Item{
			ID:                id.New(),
			ManagementStockID: m.ID,
			LineNo:            i + 1,
			ProductID:         in.ProductID,
			Quantity:          in.Quantity,
			Notes:             strings.TrimSpace(in.Notes),
		})
	}
	m.Items = items
	return nil
}

// CanDelete rejects deletion of count-derived adjustments.
func (m *ManagementStock) CanDelete() error {
	if m.Status == StatusOpnameAdjustment {
		return apperror.NewOpnameAdjustmentImmutable(m.ID.String())
	}
	return nil
}

// Validate implements entity.Validatable.
func (m *ManagementStock) Validate(ctx context.Context) error {
	if err := m.Document.Validate(ctx); err != nil {
		return err
	}
	if m.ManagementDate.IsZero() {
		return apperror.NewValidation("management date is required").
			WithDetail("field", "managementDate")
	}
	if m.ProducedBy == "" {
		return apperror.NewValidation("producedBy is required").
			WithDetail("field", "producedBy")
	}
	switch m.Status {
	case StatusIn, StatusOut:
		if m.LinkedOpnameID != nil {
			return apperror.NewValidation("manual adjustments cannot reference a stock count")
		}
	case StatusOpnameAdjustment:
		if m.LinkedOpnameID == nil {
			return apperror.NewValidation("count adjustments must reference a stock count")
		}
	default:
		return apperror.NewValidation("unknown adjustment status").WithDetail("status", string(m.Status))
	}
	if len(m.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}
	return nil
}
