// Package domain provides shared listing and lifecycle hook types for the domain services.
package domain

import "time"

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ListFilter contains common filtering options for list operations.
type ListFilter struct {
	// Search matches code or name (case-insensitive substring)
	Search string

	// Status filters documents by status
	Status string

	// From/To bound the business date, inclusive
	From *time.Time
	To   *time.Time

	// Pagination
	Limit  int
	Offset int
}

// DefaultListFilter returns sensible defaults.
func DefaultListFilter() ListFilter {
	return ListFilter{Limit: DefaultLimit}
}

// Normalize clamps pagination into the allowed range.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// ListResult contains paginated results.
type ListResult[T any] struct {
	Items      []T   `json:"items"`
	TotalCount int64 `json:"totalCount"`
	Limit      int   `json:"limit"`
	Offset     int   `json:"offset"`
}
