package numerator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/code"
	corenumerator "stockkeeper/internal/core/numerator"
)

// Mock objects
type mockRow struct {
	val any
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	switch ptr := dest[0].(type) {
	case *int64:
		*ptr = m.val.(int64)
	case *string:
		*ptr = m.val.(string)
	}
	return nil
}

// mockQuerier simulates sys_sequences with an in-memory map.
type mockQuerier struct {
	mu          sync.Mutex
	counters    map[string]int64
	increments  []int64
	highestCode string
	lastSQL     string
	lastArgs    []any
	err         error
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{counters: make(map[string]int64)}
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastSQL, m.lastArgs = sql, args
	if m.err != nil {
		return &mockRow{err: m.err}
	}

	if strings.Contains(sql, "ORDER BY code DESC") {
		if m.highestCode == "" {
			return &mockRow{err: pgx.ErrNoRows}
		}
		return &mockRow{val: m.highestCode}
	}

	key := fmt.Sprintf("%v|%v|%v", args[0], args[1], args[2])
	switch sql {
	case sqlIncrement:
		if v, ok := m.counters[key]; ok && v >= args[4].(int64) {
			return &mockRow{err: pgx.ErrNoRows}
		}
		incr := args[3].(int64)
		m.increments = append(m.increments, incr)
		m.counters[key] += incr
		return &mockRow{val: m.counters[key]}
	case sqlCurrent:
		v, ok := m.counters[key]
		if !ok {
			return &mockRow{err: pgx.ErrNoRows}
		}
		return &mockRow{val: v}
	case sqlRaise:
		if v := args[3].(int64); v > m.counters[key] {
			m.counters[key] = v
		}
		return &mockRow{val: m.counters[key]}
	}
	return &mockRow{err: errors.New("unexpected sql")}
}

var april = time.Date(2025, time.April, 10, 9, 0, 0, 0, time.UTC)

func TestNext_Strict(t *testing.T) {
	q := newMockQuerier()
	svc := NewStatic(q, WithLocation(time.UTC))
	ctx := context.Background()

	got, err := svc.Next(ctx, code.Products, april)
	require.NoError(t, err)
	assert.Equal(t, "PDK/04/2025/0001", got)

	got, err = svc.Next(ctx, code.Products, april)
	require.NoError(t, err)
	assert.Equal(t, "PDK/04/2025/0002", got)

	// other entity types keep their own counter
	got, err = svc.Next(ctx, code.StockOpnames, april)
	require.NoError(t, err)
	assert.Equal(t, "SOP/04/2025/0001", got)

	assert.Equal(t, []int64{1, 1, 1}, q.increments)
}

func TestNext_BucketReset(t *testing.T) {
	q := newMockQuerier()
	svc := NewStatic(q, WithLocation(time.UTC))
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := svc.Next(ctx, code.Invoices, april)
		require.NoError(t, err)
	}

	got, err := svc.Next(ctx, code.Invoices, april.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, "INV/05/2025/0001", got)
}

func TestNext_UsesConfiguredLocation(t *testing.T) {
	q := newMockQuerier()
	jakarta := time.FixedZone("WIB", 7*3600)
	svc := NewStatic(q, WithLocation(jakarta))

	// 20:00 UTC on April 30 is already May 1 in UTC+7.
	got, err := svc.Next(context.Background(), code.Payments, time.Date(2025, time.April, 30, 20, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "PAY/05/2025/0001", got)
}

func TestNext_UnsupportedEntityType(t *testing.T) {
	svc := NewStatic(newMockQuerier())
	_, err := svc.Next(context.Background(), code.EntityType("customers"), april)
	assert.True(t, apperror.Is(err, apperror.CodeUnsupportedEntityType))
}

func TestNext_PersistenceDown(t *testing.T) {
	q := newMockQuerier()
	q.err = errors.New("connection refused")
	svc := NewStatic(q)

	got, err := svc.Next(context.Background(), code.Products, april)
	assert.Empty(t, got)
	assert.True(t, apperror.Is(err, apperror.CodeAllocationUnavailable))
}

func TestNext_SequenceExhausted(t *testing.T) {
	q := newMockQuerier()
	q.counters["products|2025|4"] = code.MaxSequence
	svc := NewStatic(q, WithLocation(time.UTC))

	_, err := svc.Next(context.Background(), code.Products, april)
	assert.True(t, apperror.Is(err, apperror.CodeSequenceExhausted))
	assert.Equal(t, int64(code.MaxSequence), q.counters["products|2025|4"], "counter stays bounded")
	assert.Empty(t, q.increments)
}

func TestNext_CachedSequenceExhausted(t *testing.T) {
	q := newMockQuerier()
	q.counters["delivery_notes|2025|4"] = code.MaxSequence
	svc := NewStatic(q, WithLocation(time.UTC),
		WithPolicy(corenumerator.CachedPolicy([]code.EntityType{code.DeliveryNotes}, 10)))

	_, err := svc.Next(context.Background(), code.DeliveryNotes, april)
	assert.True(t, apperror.Is(err, apperror.CodeSequenceExhausted))
	assert.Equal(t, int64(code.MaxSequence), q.counters["delivery_notes|2025|4"])
}

func TestNext_ContendedCounterIsRetryable(t *testing.T) {
	for _, sqlState := range []string{"55P03", "40P01", "40001"} {
		t.Run(sqlState, func(t *testing.T) {
			q := newMockQuerier()
			q.err = &pgconn.PgError{Code: sqlState, TableName: "sys_sequences"}
			svc := NewStatic(q)

			_, err := svc.Next(context.Background(), code.StockOpnames, april)
			require.Error(t, err)
			assert.True(t, apperror.IsConcurrentModification(err))
			assert.False(t, apperror.Is(err, apperror.CodeAllocationUnavailable))
		})
	}
}

func TestPeek_ContendedCounterIsRetryable(t *testing.T) {
	q := newMockQuerier()
	q.err = &pgconn.PgError{Code: "55P03"}

	_, err := NewStatic(q).Peek(context.Background(), code.Products, april)
	assert.True(t, apperror.IsConcurrentModification(err))
}

func TestNext_ConcurrentCallsGetDistinctCodes(t *testing.T) {
	q := newMockQuerier()
	svc := NewStatic(q, WithLocation(time.UTC))

	const n = 50
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		codes = make(map[string]struct{}, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := svc.Next(context.Background(), code.ManagementStocks, april)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			codes[c] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, codes, n)
	for i := 1; i <= n; i++ {
		assert.Contains(t, codes, fmt.Sprintf("SMN/04/2025/%04d", i))
	}
}

func TestNext_Cached(t *testing.T) {
	q := newMockQuerier()
	policy := corenumerator.CachedPolicy([]code.EntityType{code.DeliveryNotes}, 10)
	svc := NewStatic(q, WithLocation(time.UTC), WithPolicy(policy))
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		got, err := svc.Next(ctx, code.DeliveryNotes, april)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("SJN/04/2025/%04d", i), got)
	}
	assert.Equal(t, []int64{10}, q.increments, "one range reserved for ten codes")

	got, err := svc.Next(ctx, code.DeliveryNotes, april)
	require.NoError(t, err)
	assert.Equal(t, "SJN/04/2025/0011", got)
	assert.Equal(t, []int64{10, 10}, q.increments)

	// A second process sharing the table continues after the reserved range.
	other := NewStatic(q, WithLocation(time.UTC), WithPolicy(policy))
	got, err = other.Next(ctx, code.DeliveryNotes, april)
	require.NoError(t, err)
	assert.Equal(t, "SJN/04/2025/0021", got)
}

func TestNext_CachedReservesOutsideTransaction(t *testing.T) {
	txQ := newMockQuerier()
	txQ.err = errors.New("must not be used")
	direct := newMockQuerier()

	svc := New(func(context.Context) Querier { return txQ }, direct,
		WithLocation(time.UTC),
		WithPolicy(corenumerator.CachedPolicy([]code.EntityType{code.ProductionLogs}, 5)))

	got, err := svc.Next(context.Background(), code.ProductionLogs, april)
	require.NoError(t, err)
	assert.Equal(t, "LPR/04/2025/0001", got)
	assert.Equal(t, []int64{5}, direct.increments)
}

func TestPeek(t *testing.T) {
	q := newMockQuerier()
	svc := NewStatic(q, WithLocation(time.UTC))
	ctx := context.Background()

	got, err := svc.Peek(ctx, code.Products, april)
	require.NoError(t, err)
	assert.Equal(t, "PDK/04/2025/0001", got)

	_, err = svc.Next(ctx, code.Products, april)
	require.NoError(t, err)

	got, err = svc.Peek(ctx, code.Products, april)
	require.NoError(t, err)
	assert.Equal(t, "PDK/04/2025/0002", got)

	// peeking does not consume
	got, err = svc.Next(ctx, code.Products, april)
	require.NoError(t, err)
	assert.Equal(t, "PDK/04/2025/0002", got)
}

func TestResync_RaisesCounterAndInvalidatesCache(t *testing.T) {
	q := newMockQuerier()
	svc := NewStatic(q, WithLocation(time.UTC),
		WithPolicy(corenumerator.CachedPolicy([]code.EntityType{code.Products}, 5)))
	ctx := context.Background()

	got, err := svc.Next(ctx, code.Products, april)
	require.NoError(t, err)
	assert.Equal(t, "PDK/04/2025/0001", got)

	q.highestCode = "PDK/04/2025/0042"
	counter, err := svc.Resync(ctx, code.Products, code.Bucket{Year: 2025, Month: 4})
	require.NoError(t, err)
	assert.Equal(t, 42, counter)
	assert.Contains(t, q.lastSQL, "GREATEST")

	got, err = svc.Next(ctx, code.Products, april)
	require.NoError(t, err)
	assert.Equal(t, "PDK/04/2025/0043", got)
}

func TestResync_NeverLowers(t *testing.T) {
	q := newMockQuerier()
	q.counters["stock_opnames|2025|4"] = 30
	q.highestCode = "SOP/04/2025/0012"
	svc := NewStatic(q)

	counter, err := svc.Resync(context.Background(), code.StockOpnames, code.Bucket{Year: 2025, Month: 4})
	require.NoError(t, err)
	assert.Equal(t, 30, counter)
}

func TestResync_EntityWithoutTable(t *testing.T) {
	svc := NewStatic(newMockQuerier())
	_, err := svc.Resync(context.Background(), code.Invoices, code.Bucket{Year: 2025, Month: 4})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestHighestCodeQuery(t *testing.T) {
	query, args, err := highestCodeQuery("products", "PDK/04/2025/").ToSql()
	require.NoError(t, err)
	assert.Equal(t, "SELECT code FROM products WHERE code LIKE $1 ORDER BY code DESC LIMIT 1", query)
	assert.Equal(t, []any{"PDK/04/2025/%"}, args)
}
