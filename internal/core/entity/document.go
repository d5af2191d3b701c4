package entity

import (
	"context"
	"time"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/code"
)

// Document is the base type for code-bearing business records
// (stock counts, stock adjustments).
type Document struct {
	BaseDocument

	// Code is allocated once at creation and never recomputed.
	Code string `db:"code" json:"code"`

	// Notes is an optional free-form comment
	Notes string `db:"notes" json:"notes,omitempty"`
}

// NewDocument creates a new Document with generated ID.
func NewDocument(now time.Time) Document {
	return Document{
		BaseDocument: NewBaseDocument(now),
	}
}

// GetCode returns the document code.
func (d *Document) GetCode() string {
	return d.Code
}

// AssignCode sets the document code. A code cannot be replaced once set.
func (d *Document) AssignCode(c string) error {
	if d.Code != "" && d.Code != c {
		return apperror.NewBusinessRule(apperror.CodeBusinessRule, "document code is immutable").
			WithDetail("code", d.Code)
	}
	d.Code = c
	return nil
}

// Validate implements Validatable interface.
func (d *Document) Validate(ctx context.Context) error {
	if d.Code == "" {
		return apperror.NewValidation("code is required").
			WithDetail("field", "code")
	}
	if _, err := code.Parse(d.Code); err != nil {
		return err
	}
	return nil
}
