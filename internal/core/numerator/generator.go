// Package numerator provides domain contracts for document code allocation.
// Implementations live in infrastructure layer.
package numerator

import (
	"context"
	"time"

	"stockkeeper/internal/core/code"
)

// Generator allocates sequential document codes.
type Generator interface {
	// Next allocates the next code for entityType in the bucket containing now.
	// Concurrent callers never receive the same code. When ctx carries a
	// transaction the allocation joins it.
	Next(ctx context.Context, entityType code.EntityType, now time.Time) (string, error)

	// Peek returns the code Next would produce without consuming it.
	Peek(ctx context.Context, entityType code.EntityType, now time.Time) (string, error)

	// Resync raises the counter of a bucket to the highest sequence found among
	// persisted codes. It never lowers a counter.
	Resync(ctx context.Context, entityType code.EntityType, bucket code.Bucket) (int, error)
}
