package entity

import (
	"context"
	"strings"
	"time"

	"stockkeeper/internal/core/apperror"
)

// Catalog is the base type for reference data such as products.
type Catalog struct {
	BaseEntity

	// Code is a human-readable identifier (unique within its table)
	Code string `db:"code" json:"code"`

	// Name is the display name
	Name string `db:"name" json:"name"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewCatalog creates a new Catalog with generated ID.
func NewCatalog(name string, now time.Time) Catalog {
	now = now.UTC()
	return Catalog{
		BaseEntity: NewBaseEntity(),
		Name:       strings.TrimSpace(name),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate implements Validatable interface.
func (c *Catalog) Validate(ctx context.Context) error {
	if c.Name == "" {
		return apperror.NewValidation("name is required").
			WithDetail("field", "name")
	}
	return nil
}
