// Package entity provides the base types shared by persisted records.
package entity

import (
	"context"
	"time"

	"stockkeeper/internal/core/id"
)

// Validatable is implemented by entities that support self-validation.
// Validation checks internal invariants (without database access).
type Validatable interface {
	Validate(ctx context.Context) error
}

// BaseEntity contains the primary key and the optimistic locking version.
type BaseEntity struct {
	// ID is the primary key (UUIDv7)
	ID id.ID `db:"id" json:"id"`

	// Version is incremented on each update
	Version int `db:"version" json:"version"`
}

// NewBaseEntity creates a new BaseEntity with generated ID.
func NewBaseEntity() BaseEntity {
	return BaseEntity{
		ID:      id.New(),
		Version: 1,
	}
}

// GetID returns the primary key.
func (b *BaseEntity) GetID() id.ID {
	return b.ID
}

// Touch increments version.
func (b *BaseEntity) Touch() {
	b.Version++
}

// SetVersion updates the version number (used by repository after sync).
func (b *BaseEntity) SetVersion(v int) {
	b.Version = v
}

// BaseDocument extends BaseEntity with audit fields.
type BaseDocument struct {
	BaseEntity

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	UpdatedBy string    `db:"updated_by" json:"updatedBy,omitempty"`
}

// NewBaseDocument creates a new BaseDocument stamped with now.
func NewBaseDocument(now time.Time) BaseDocument {
	now = now.UTC()
	return BaseDocument{
		BaseEntity: NewBaseEntity(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Touch updates the UpdatedAt timestamp and increments version.
func (b *BaseDocument) Touch(now time.Time) {
	b.UpdatedAt = now.UTC()
	b.BaseEntity.Touch()
}

// SetCreatedBy sets the creating user, also recorded as the last updater.
func (b *BaseDocument) SetCreatedBy(userID string) {
	b.CreatedBy = userID
	b.UpdatedBy = userID
}

// SetUpdatedBy sets the last updating user.
func (b *BaseDocument) SetUpdatedBy(userID string) {
	b.UpdatedBy = userID
}
