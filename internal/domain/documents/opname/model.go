// Package opname provides the stock count (opname) document and its workflow.
package opname

import (
	"bytes"
	"context"
	"sort"
	"strings"
	"time"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
)

// Status of a stock count.
type Status string

const (
	// StatusInProgress is the initial, editable state.
	StatusInProgress Status = "IN_PROGRESS"
	// StatusCompleted means every counted product matched the system stock,
	// or the differences were consumed by an adjustment.
	StatusCompleted Status = "COMPLETED"
	// StatusReconciled means some products differ and await an adjustment.
	StatusReconciled Status = "RECONCILED"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToUpper(s)); st {
	case StatusInProgress, StatusCompleted, StatusReconciled:
		return st, nil
	}
	return "", apperror.NewValidation("unknown opname status").WithDetail("status", s)
}

// IsTerminal reports whether items can no longer be edited.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusReconciled
}

// Opname is one physical stock count event.
type Opname struct {
	entity.Document

	OpnameDate  time.Time `db:"opname_date" json:"opnameDate"`
	ConductedBy string    `db:"conducted_by" json:"conductedBy"`
	Status      Status    `db:"status" json:"status"`

	// AdjustmentID references the adjustment that consumed this count.
	AdjustmentID *id.ID `db:"-" json:"adjustmentId,omitempty"`

	Items []Item `db:"-" json:"items"`
}

// Item is the count of one product.
type Item struct {
	ID       id.ID `db:"id" json:"id"`
	OpnameID id.ID `db:"opname_id" json:"opnameId"`
	LineNo   int   `db:"line_no" json:"lineNo"`

	ProductID id.ID `db:"product_id" json:"productId"`

	// SystemStock is the product's current stock when the item was added.
	SystemStock   int64 `db:"system_stock" json:"systemStock"`
	PhysicalStock int64 `db:"physical_stock" json:"physicalStock"`
	// Difference is PhysicalStock - SystemStock.
	Difference int64 `db:"difference" json:"difference"`

	Notes string `db:"notes" json:"notes,omitempty"`
}

// ItemInput describes an item to count. A nil PhysicalStock defaults to the
// system stock.
type ItemInput struct {
	ProductID     id.ID
	PhysicalStock *int64
	Notes         string
}

// NewOpname creates an IN_PROGRESS count.
func NewOpname(opnameDate time.Time, conductedBy, notes string, now time.Time) *Opname {
	o := &Opname{
		Document:    entity.NewDocument(now),
		OpnameDate:  opnameDate,
		ConductedBy: strings.TrimSpace(conductedBy),
		Status:      StatusInProgress,
	}
	o.Notes = notes
	return o
}

// DeriveStatus returns RECONCILED when any item differs, COMPLETED otherwise.
func DeriveStatus(items []Item) Status {
	for _, it := range items {
		if it.PhysicalStock != it.SystemStock {
			return StatusReconciled
		}
	}
	return StatusCompleted
}

// CheckUniqueProducts rejects inputs that list a product twice.
func CheckUniqueProducts(items []ItemInput) error {
	seen := make(map[id.ID]struct{}, len(items))
	for _, it := range items {
		if _, dup := seen[it.ProductID]; dup {
			return apperror.NewDuplicateProductInOpname(it.ProductID.String())
		}
		seen[it.ProductID] = struct{}{}
	}
	return nil
}

// BuildItems turns inputs into items. System stock is taken from the existing
// item of the same product when there is one, otherwise from current.
func (o *Opname) BuildItems(inputs []ItemInput, current map[id.ID]int64) ([]Item, error) {
	if err := CheckUniqueProducts(inputs); err != nil {
		return nil, err
	}

	snapshot := make(map[id.ID]int64, len(o.Items))
	for _, it := range o.Items {
		snapshot[it.ProductID] = it.SystemStock
	}

	items := make([]Item, 0, len(inputs))
	for i, in := range inputs {
		if id.IsNil(in.ProductID) {
			return nil, apperror.NewValidation("product is required").
				WithDetail("line", i+1)
		}

		system, ok := snapshot[in.ProductID]
		if !ok {
			system, ok = current[in.ProductID]
			if !ok {
				return nil, apperror.NewNotFound("product", in.ProductID.String())
			}
		}

		physical := system
		if in.PhysicalStock != nil {
			physical = *in.PhysicalStock
		}
		if physical < 0 {
			return nil, apperror.NewValidation("physical stock cannot be negative").
				WithDetail("productId", in.ProductID.String())
		}

		items = append(items, Item{
			ID:            id.New(),
			OpnameID:      o.ID,
			LineNo:        i + 1,
			ProductID:     in.ProductID,
			SystemStock:   system,
			PhysicalStock: physical,
			Difference:    physical - system,
			Notes:         strings.TrimSpace(in.Notes),
		})
	}
	return items, nil
}

// CanEditItems fails once the count is finalized.
func (o *Opname) CanEditItems() error {
	if o.Status.IsTerminal() {
		return apperror.NewOpnameLocked(o.ID.String(), string(o.Status))
	}
	return nil
}

// CanEditNotes allows notes edits unless an adjustment consumed the count.
func (o *Opname) CanEditNotes() error {
	if o.Status.IsTerminal() && o.AdjustmentID != nil {
		return apperror.NewOpnameAlreadyAdjusted(o.ID.String())
	}
	return nil
}

// Finalize derives the terminal status from the items. Finalizing a count
// that is already terminal keeps its status.
func (o *Opname) Finalize() Status {
	if o.Status == StatusInProgress {
		o.Status = DeriveStatus(o.Items)
	}
	return o.Status
}

// MarkConsumed records that an adjustment applied the differences.
func (o *Opname) MarkConsumed(adjustmentID id.ID) error {
	if o.Status != StatusReconciled {
		return apperror.NewOpnameNotReconciled(o.ID.String(), string(o.Status))
	}
	o.Status = StatusCompleted
	o.AdjustmentID = &adjustmentID
	return nil
}

// ProductIDs returns the counted products, sorted.
func ProductIDs(inputs []ItemInput) []id.ID {
	ids := make([]id.ID, 0, len(inputs))
	for _, in := range inputs {
		ids = append(ids, in.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}

// Validate implements entity.Validatable.
func (o *Opname) Validate(ctx context.Context) error {
	if err := o.Document.Validate(ctx); err != nil {
		return err
	}
	if o.OpnameDate.IsZero() {
		return apperror.NewValidation("opname date is required").
			WithDetail("field", "opnameDate")
	}
	if o.ConductedBy == "" {
		return apperror.NewValidation("conductedBy is required").
			WithDetail("field", "conductedBy")
	}
	if len(o.Items) == 0 {
		return apperror.NewValidation("at least one item is required").
			WithDetail("field", "items")
	}
	return nil
}
