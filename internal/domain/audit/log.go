package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	appctx "stockkeeper/internal/core/context"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain"
)

// Action is the kind of change an entry records.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Entry is one audited change of an entity.
type Entry struct {
	ID         id.ID           `json:"id"`
	EntityType string          `json:"entityType"`
	EntityID   id.ID           `json:"entityId"`
	EntityCode string          `json:"entityCode,omitempty"`
	Action     Action          `json:"action"`
	UserID     string          `json:"userId,omitempty"`
	UserName   string          `json:"userName"`
	Changes    json.RawMessage `json:"changes"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// Recorder persists audit entries. Implementations write inside the
// caller's transaction, so a rolled back operation leaves no entry.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// Reader lists the audit entries of one entity, newest first.
type Reader interface {
	History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]Entry, error)
}

// Subject is an entity that can be audited.
type Subject interface {
	GetID() id.ID
	GetCode() string
}

// NewEntry builds an entry for the acting user with state serialized as
// its changes payload.
func NewEntry(ctx context.Context, entityType string, action Action, subject Subject, state any) (Entry, error) {
	payload, err := json.Marshal(state)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal audit state: %w", err)
	}
	return Entry{
		ID:         id.New(),
		EntityType: entityType,
		EntityID:   subject.GetID(),
		EntityCode: subject.GetCode(),
		Action:     action,
		UserID:     appctx.GetUserID(ctx),
		UserName:   appctx.GetActorName(ctx),
		Changes:    payload,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// SnapshotOnDelete returns a hook that stores the full state of an entity
// right before it is removed.
func SnapshotOnDelete[T Subject](rec Recorder, entityType string) domain.Hook[T] {
	return func(ctx context.Context, e T) error {
		entry, err := NewEntry(ctx, entityType, ActionDelete, e, e)
		if err != nil {
			return err
		}
		return rec.Record(ctx, entry)
	}
}

// Diff reports the fields that differ between two states as
// {"field": {"old": ..., "new": ...}}.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)
	for key, newVal := range newState {
		oldVal, ok := oldState[key]
		if !ok || !reflect.DeepEqual(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}
	for key, oldVal := range oldState {
		if _, ok := newState[key]; !ok {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}
	return changes
}
