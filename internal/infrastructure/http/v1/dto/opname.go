package dto

import (
	"time"

	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain/documents/adjustment"
	"stockkeeper/internal/domain/documents/opname"
)

// --- Request DTOs ---

// OpnameItemRequest is one counted product.
type OpnameItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	// PhysicalStock defaults to the system stock when omitted.
	PhysicalStock *int64 `json:"physicalStock" binding:"omitempty,gte=0"`
	Notes         string `json:"notes,omitempty" binding:"max=500"`
}

// CreateOpnameRequest represents a request to record a stock count.
type CreateOpnameRequest struct {
	OpnameDate  *time.Time          `json:"opnameDate"`
	ConductedBy string              `json:"conductedBy" binding:"required,max=100"`
	Notes       string              `json:"notes,omitempty" binding:"max=1000"`
	Items       []OpnameItemRequest `json:"items" binding:"required,min=1,dive"`
	Finalize    bool                `json:"finalize,omitempty"`
}

// ToInput converts the request to a service input. A missing date is today.
func (r *CreateOpnameRequest) ToInput(now time.Time) opname.RecordInput {
	date := now
	if r.OpnameDate != nil {
		date = *r.OpnameDate
	}
	return opname.RecordInput{
		OpnameDate:  date,
		ConductedBy: r.ConductedBy,
		Notes:       r.Notes,
		Items:       opnameItemInputs(r.Items),
		Finalize:    r.Finalize,
	}
}

// UpdateOpnameItemsRequest replaces the items of an IN_PROGRESS count.
type UpdateOpnameItemsRequest struct {
	Items []OpnameItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToInputs converts the request items.
func (r *UpdateOpnameItemsRequest) ToInputs() []opname.ItemInput {
	return opnameItemInputs(r.Items)
}

// ItemNoteRequest sets the notes of one counted product.
type ItemNoteRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Notes     string `json:"notes" binding:"max=500"`
}

// UpdateOpnameNotesRequest changes notes only.
type UpdateOpnameNotesRequest struct {
	Notes *string           `json:"notes" binding:"omitempty,max=1000"`
	Items []ItemNoteRequest `json:"items" binding:"omitempty,dive"`
}

// ToInput converts the request to a service input.
func (r *UpdateOpnameNotesRequest) ToInput() opname.NotesInput {
	in := opname.NotesInput{Notes: r.Notes}
	if len(r.Items) > 0 {
		in.ItemNotes = make(map[id.ID]string, len(r.Items))
		for _, it := range r.Items {
			in.ItemNotes[id.MustParse(it.ProductID)] = it.Notes
		}
	}
	return in
}

// CreateOpnameAdjustmentRequest applies a reconciled count. Every field
// is optional.
type CreateOpnameAdjustmentRequest struct {
	ManagementDate *time.Time `json:"managementDate"`
	ProducedBy     string     `json:"producedBy" binding:"max=100"`
	Notes          string     `json:"notes" binding:"max=1000"`
}

// ToInput converts the request to a service input.
func (r *CreateOpnameAdjustmentRequest) ToInput(opnameID id.ID) adjustment.FromOpnameInput {
	return adjustment.FromOpnameInput{
		OpnameID:       opnameID,
		ManagementDate: r.ManagementDate,
		ProducedBy:     r.ProducedBy,
		Notes:          r.Notes,
	}
}

// ids are validated by the binding tags before conversion.
func opnameItemInputs(items []OpnameItemRequest) []opname.ItemInput {
	out := make([]opname.ItemInput, 0, len(items))
	for _, it := range items {
		out = append(out, opname.ItemInput{
			ProductID:     id.MustParse(it.ProductID),
			PhysicalStock: it.PhysicalStock,
			Notes:         it.Notes,
		})
	}
	return out
}

// --- Response DTOs ---

// ReconcileResponse reports the status a count settled in.
type ReconcileResponse struct {
	ID     string        `json:"id"`
	Code   string        `json:"code"`
	Status opname.Status `json:"status"`
}

// FromReconciled creates ReconcileResponse from an opname.
func FromReconciled(o *opname.Opname) ReconcileResponse {
	return ReconcileResponse{ID: o.ID.String(), Code: o.Code, Status: o.Status}
}
