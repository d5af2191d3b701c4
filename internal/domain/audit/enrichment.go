// Package audit provides utilities for audit field enrichment in domain entities.
package audit

import (
	"context"

	appctx "stockkeeper/internal/core/context"
)

// CreatedBySetter is implemented by entities with audit fields.
type CreatedBySetter interface {
	SetCreatedBy(string)
}

// UpdatedBySetter is implemented by entities with audit fields.
type UpdatedBySetter interface {
	SetUpdatedBy(string)
}

// EnrichCreatedBy stamps the acting user on a new entity.
// Use in BeforeCreate hooks. No-op without a user in context.
func EnrichCreatedBy[T CreatedBySetter](ctx context.Context, e T) error {
	if userID := appctx.GetUserID(ctx); userID != "" {
		e.SetCreatedBy(userID)
	}
	return nil
}

// EnrichUpdatedBy stamps the acting user on a modified entity.
// Use in BeforeUpdate hooks. No-op without a user in context.
func EnrichUpdatedBy[T UpdatedBySetter](ctx context.Context, e T) error {
	if userID := appctx.GetUserID(ctx); userID != "" {
		e.SetUpdatedBy(userID)
	}
	return nil
}
