package dto

import (
	"time"

	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain/documents/adjustment"
)

// AdjustmentItemRequest is one manual adjustment line.
type AdjustmentItemRequest struct {
	ProductID string `json:"productId" binding:"required,uuid"`
	Quantity  int64  `json:"quantity" binding:"required,gt=0"`
	Notes     string `json:"notes,omitempty" binding:"max=500"`
}

// CreateAdjustmentRequest represents a manual stock in/out.
type CreateAdjustmentRequest struct {
	Status         string                  `json:"status" binding:"required,oneof=IN OUT"`
	ManagementDate *time.Time              `json:"managementDate"`
	ProducedBy     string                  `json:"producedBy" binding:"required,max=100"`
	Notes          string                  `json:"notes,omitempty" binding:"max=1000"`
	Items          []AdjustmentItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ToInput converts the request to a service input. A missing date is today.
func (r *CreateAdjustmentRequest) ToInput(now time.Time) (adjustment.ManualInput, error) {
	status, err := adjustment.ParseStatus(r.Status)
	if err != nil {
		return adjustment.ManualInput{}, err
	}
	date := now
	if r.ManagementDate != nil {
		date = *r.ManagementDate
	}

	items := make([]adjustment.ItemInput, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, adjustment.ItemInput{
			ProductID: id.MustParse(it.ProductID),
			Quantity:  it.Quantity,
			Notes:     it.Notes,
		})
	}

	return adjustment.ManualInput{
		Status:         status,
		ManagementDate: date,
		ProducedBy:     r.ProducedBy,
		Notes:          r.Notes,
		Items:          items,
	}, nil
}

// UpdateAdjustmentRequest changes the header. Quantities cannot be changed.
type UpdateAdjustmentRequest struct {
	ManagementDate *time.Time `json:"managementDate"`
	Notes          *string    `json:"notes" binding:"omitempty,max=1000"`
}

// ToInput converts the request to a service input.
func (r *UpdateAdjustmentRequest) ToInput() adjustment.HeaderInput {
	return adjustment.HeaderInput{ManagementDate: r.ManagementDate, Notes: r.Notes}
}
