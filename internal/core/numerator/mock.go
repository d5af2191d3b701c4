package numerator

import (
	"context"
	"sync"
	"time"

	"stockkeeper/internal/core/code"
)

// MockGenerator is an in-memory Generator for unit tests.
// Without overrides it behaves like a strict allocator keyed by bucket.
type MockGenerator struct {
	NextFunc   func(ctx context.Context, entityType code.EntityType, now time.Time) (string, error)
	ResyncFunc func(ctx context.Context, entityType code.EntityType, bucket code.Bucket) (int, error)

	mu       sync.Mutex
	counters map[string]int
}

func mockKey(t code.EntityType, b code.Bucket) string {
	return string(t) + "|" + b.String()
}

// Next implements Generator.
func (m *MockGenerator) Next(ctx context.Context, entityType code.EntityType, now time.Time) (string, error) {
	if m.NextFunc != nil {
		return m.NextFunc(ctx, entityType, now)
	}
	if _, err := entityType.Abbreviation(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = make(map[string]int)
	}
	b := code.BucketOf(now)
	m.counters[mockKey(entityType, b)]++
	return code.ForEntity(entityType, b, m.counters[mockKey(entityType, b)])
}

// Peek implements Generator.
func (m *MockGenerator) Peek(_ context.Context, entityType code.EntityType, now time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b := code.BucketOf(now)
	return code.ForEntity(entityType, b, m.counters[mockKey(entityType, b)]+1)
}

// Resync implements Generator.
func (m *MockGenerator) Resync(ctx context.Context, entityType code.EntityType, bucket code.Bucket) (int, error) {
	if m.ResyncFunc != nil {
		return m.ResyncFunc(ctx, entityType, bucket)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[mockKey(entityType, bucket)], nil
}

var _ Generator = (*MockGenerator)(nil)
