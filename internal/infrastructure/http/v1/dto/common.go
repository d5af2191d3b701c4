// Package dto provides Data Transfer Objects for API requests/responses.
package dto

import (
	"time"

	"stockkeeper/internal/domain"
)

// --- List ---

// ListQuery contains the common list filter parameters.
type ListQuery struct {
	Search string     `form:"search"`
	Status string     `form:"status"`
	From   *time.Time `form:"from" time_format:"2006-01-02"`
	To     *time.Time `form:"to" time_format:"2006-01-02"`
	Limit  int        `form:"limit" binding:"omitempty,min=1,max=1000"`
	Offset int        `form:"offset" binding:"omitempty,min=0"`
}

// ToFilter converts the query to a domain list filter.
func (q ListQuery) ToFilter() domain.ListFilter {
	f := domain.DefaultListFilter()
	f.Search = q.Search
	f.Status = q.Status
	f.From = q.From
	f.To = q.To
	if q.Limit > 0 {
		f.Limit = q.Limit
	}
	f.Offset = q.Offset
	return f
}

// --- ID Response ---

// IDResponse for create operations.
type IDResponse struct {
	ID   string `json:"id"`
	Code string `json:"code,omitempty"`
}

// --- Error Response ---

// ErrorResponse for error details.
type ErrorResponse struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
