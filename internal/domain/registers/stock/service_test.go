package stock_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain/registers/stock"
	"stockkeeper/internal/testing/memstore"
)

func recorder(code string) entity.Recorder {
	return entity.Recorder{ID: id.New(), Type: entity.RecorderManagementStock, Code: code}
}

func TestApply_RecordsMovement(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 10)
	ctx := context.Background()

	var balance int64
	err := env.Store.RunInTransaction(ctx, func(ctx context.Context) error {
		var err error
		balance, err = env.Ledger.Apply(ctx, recorder("SMN/04/2025/0001"), p, -4, stock.ApplyOptions{})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(6), balance)
	assert.Equal(t, int64(6), env.Store.Stock(p))

	moves := env.MovementsOf(p)
	require.Len(t, moves, 1)
	assert.Equal(t, int64(-4), moves[0].Delta)
	assert.Equal(t, int64(6), moves[0].BalanceAfter)
	assert.Equal(t, "SMN/04/2025/0001", moves[0].RecorderCode)
	assert.False(t, moves[0].Reversal)
}

func TestApply_RejectsNegativeByDefault(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Sugar", 5)

	_, err := env.Ledger.Apply(context.Background(), recorder("X"), p, -8, stock.ApplyOptions{})
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))
	assert.Equal(t, int64(5), env.Store.Stock(p))
	assert.Empty(t, env.MovementsOf(p))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, int64(8), appErr.Details["requested"])
	assert.Equal(t, int64(5), appErr.Details["available"])
}

func TestApply_AllowNegativePolicy(t *testing.T) {
	env := memstore.NewEnv(true)
	p := env.AddProduct("Salt", 2)

	balance, err := env.Ledger.Apply(context.Background(), recorder("X"), p, -3, stock.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(-1), balance)

	// ForbidNegative overrides the policy.
	_, err = env.Ledger.Apply(context.Background(), recorder("Y"), p, -1, stock.ApplyOptions{ForbidNegative: true})
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))
	assert.Equal(t, int64(-1), env.Store.Stock(p))

	// Positive deltas are never guarded, even on negative stock.
	balance, err = env.Ledger.Apply(context.Background(), recorder("Z"), p, 1, stock.ApplyOptions{ForbidNegative: true})
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestReverse_ConservesStock(t *testing.T) {
	env := memstore.NewEnv(false)
	p1 := env.AddProduct("Rice", 20)
	p2 := env.AddProduct("Oil", 7)
	ctx := context.Background()
	rec := recorder("SMN/04/2025/0002")
	entries := []stock.Entry{{ProductID: p1, Delta: 5}, {ProductID: p2, Delta: -7}}

	_, err := env.Ledger.ApplyBatch(ctx, rec, entries, stock.ApplyOptions{})
	require.NoError(t, err)
	assert.Equal(t, int64(25), env.Store.Stock(p1))
	assert.Equal(t, int64(0), env.Store.Stock(p2))

	moves, err := env.Ledger.Reverse(ctx, rec, entries)
	require.NoError(t, err)
	require.Len(t, moves, 2)
	for _, m := range moves {
		assert.True(t, m.Reversal)
	}
	assert.Equal(t, int64(20), env.Store.Stock(p1))
	assert.Equal(t, int64(7), env.Store.Stock(p2))
}

func TestApplyBatch_SkipsZeroDeltas(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Tea", 3)

	moves, err := env.Ledger.ApplyBatch(context.Background(), recorder("X"), []stock.Entry{{ProductID: p, Delta: 0}}, stock.ApplyOptions{})
	require.NoError(t, err)
	assert.Empty(t, moves)
	assert.Empty(t, env.MovementsOf(p))
}

func TestApplyBatch_AllOrNothing(t *testing.T) {
	env := memstore.NewEnv(false)
	p1 := env.AddProduct("Milk", 10)
	p2 := env.AddProduct("Eggs", 1)
	ctx := context.Background()

	err := env.Store.RunInTransaction(ctx, func(ctx context.Context) error {
		_, err := env.Ledger.ApplyBatch(ctx, recorder("X"), []stock.Entry{
			{ProductID: p1, Delta: -2},
			{ProductID: p2, Delta: -5},
		}, stock.ApplyOptions{ForbidNegative: true})
		return err
	})
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))
	assert.Equal(t, int64(10), env.Store.Stock(p1))
	assert.Equal(t, int64(1), env.Store.Stock(p2))
	assert.Empty(t, env.Store.Movements())
}

func TestApplyBatch_MovementFailureRollsBack(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Butter", 4)
	boom := errors.New("disk full")
	env.Store.FailOn("CreateMovements", boom)

	err := env.Store.RunInTransaction(context.Background(), func(ctx context.Context) error {
		_, err := env.Ledger.Apply(ctx, recorder("X"), p, 6, stock.ApplyOptions{})
		return err
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int64(4), env.Store.Stock(p))
}

func TestApply_UnknownProduct(t *testing.T) {
	env := memstore.NewEnv(false)
	_, err := env.Ledger.Apply(context.Background(), recorder("X"), id.New(), 1, stock.ApplyOptions{})
	assert.True(t, apperror.IsNotFound(err))
}

func TestApply_RequiresRecorder(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Yeast", 1)
	_, err := env.Ledger.Apply(context.Background(), entity.Recorder{}, p, 1, stock.ApplyOptions{})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func TestApply_ConcurrentUpdatesAreNotLost(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Coffee", 100)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			delta := int64(1)
			if i%2 == 1 {
				delta = -2
			}
			err := env.Store.RunInTransaction(context.Background(), func(ctx context.Context) error {
				_, err := env.Ledger.Apply(ctx, recorder("X"), p, delta, stock.ApplyOptions{})
				return err
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	// 20 * (+1) + 20 * (-2)
	assert.Equal(t, int64(80), env.Store.Stock(p))
	assert.Len(t, env.MovementsOf(p), n)
}

func TestProductMovements_NewestFirst(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Cocoa", 0)
	ctx := context.Background()

	for _, d := range []int64{5, -2, 3} {
		_, err := env.Ledger.Apply(ctx, recorder("X"), p, d, stock.ApplyOptions{})
		require.NoError(t, err)
	}

	page, err := env.Ledger.ProductMovements(ctx, p, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.TotalCount)
	require.Len(t, page.Items, 2)
	assert.Equal(t, int64(3), page.Items[0].Delta)
	assert.Equal(t, int64(6), page.Items[0].BalanceAfter)
	assert.Equal(t, int64(-2), page.Items[1].Delta)
}
