package adjustment_test

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockkeeper/internal/core/apperror"
	"stockkeeper/internal/core/entity"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain"
	"stockkeeper/internal/domain/documents/adjustment"
	"stockkeeper/internal/domain/documents/opname"
	"stockkeeper/internal/testing/memstore"
)

var smnCode = regexp.MustCompile(`^SMN/\d{2}/\d{4}/\d{4}$`)

func ptr(v int64) *int64 { return &v }

func reconciledOpname(t *testing.T, env *memstore.Env, items ...opname.ItemInput) *opname.Opname {
	t.Helper()
	o, err := env.Opnames.Record(context.Background(), opname.RecordInput{
		OpnameDate:  time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
		ConductedBy: "Budi",
		Items:       items,
		Finalize:    true,
	})
	require.NoError(t, err)
	require.Equal(t, opname.StatusReconciled, o.Status)
	return o
}

func TestCreateManual_In(t *testing.T) {
	env := memstore.NewEnv(false)
	p1 := env.AddProduct("Flour", 5)
	p2 := env.AddProduct("Sugar", 0)

	m, err := env.Adjustments.CreateManual(context.Background(), adjustment.ManualInput{
		Status:     adjustment.StatusIn,
		ProducedBy: "Sari",
		Items: []adjustment.ItemInput{
			{ProductID: p1, Quantity: 10},
			{ProductID: p2, Quantity: 3},
		},
	})
	require.NoError(t, err)
	assert.Regexp(t, smnCode, m.Code)
	assert.Equal(t, int64(15), env.Store.Stock(p1))
	assert.Equal(t, int64(3), env.Store.Stock(p2))

	mv := env.MovementsOf(p1)
	require.Len(t, mv, 1)
	assert.Equal(t, m.ID, mv[0].RecorderID)
	assert.Equal(t, entity.RecorderManagementStock, mv[0].RecorderType)
	assert.Equal(t, m.Code, mv[0].RecorderCode)
	assert.Equal(t, int64(15), mv[0].BalanceAfter)
}

func TestCreateManual_OutBeyondStockIsRejected(t *testing.T) {
	env := memstore.NewEnv(true)
	p := env.AddProduct("Flour", 5)

	_, err := env.Adjustments.CreateManual(context.Background(), adjustment.ManualInput{
		Status:     adjustment.StatusOut,
		ProducedBy: "Sari",
		Items:      []adjustment.ItemInput{{ProductID: p, Quantity: 8}},
	})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock), "manual OUT never goes negative")

	assert.Equal(t, int64(5), env.Store.Stock(p))
	assert.Empty(t, env.Store.Movements())
	_, adjustments := env.Store.Counts()
	assert.Zero(t, adjustments)
}

func TestCreateManual_BatchIsAllOrNothing(t *testing.T) {
	env := memstore.NewEnv(false)
	p1 := env.AddProduct("Flour", 50)
	p2 := env.AddProduct("Sugar", 1)

	_, err := env.Adjustments.CreateManual(context.Background(), adjustment.ManualInput{
		Status:     adjustment.StatusOut,
		ProducedBy: "Sari",
		Items: []adjustment.ItemInput{
			{ProductID: p1, Quantity: 10},
			{ProductID: p2, Quantity: 2},
		},
	})
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))
	assert.Equal(t, int64(50), env.Store.Stock(p1))
	assert.Equal(t, int64(1), env.Store.Stock(p2))
}

func TestCreateManual_Validation(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 5)
	ctx := context.Background()

	tests := []struct {
		name string
		in   adjustment.ManualInput
	}{
		{"opname status", adjustment.ManualInput{
			Status: adjustment.StatusOpnameAdjustment, ProducedBy: "Sari",
			Items: []adjustment.ItemInput{{ProductID: p, Quantity: 1}},
		}},
		{"no items", adjustment.ManualInput{Status: adjustment.StatusIn, ProducedBy: "Sari"}},
		{"zero quantity", adjustment.ManualInput{
			Status: adjustment.StatusIn, ProducedBy: "Sari",
			Items: []adjustment.ItemInput{{ProductID: p, Quantity: 0}},
		}},
		{"negative quantity", adjustment.ManualInput{
			Status: adjustment.StatusOut, ProducedBy: "Sari",
			Items: []adjustment.ItemInput{{ProductID: p, Quantity: -2}},
		}},
		{"duplicate product", adjustment.ManualInput{
			Status: adjustment.StatusIn, ProducedBy: "Sari",
			Items: []adjustment.ItemInput{{ProductID: p, Quantity: 1}, {ProductID: p, Quantity: 2}},
		}},
		{"missing producedBy", adjustment.ManualInput{
			Status: adjustment.StatusIn,
			Items:  []adjustment.ItemInput{{ProductID: p, Quantity: 1}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Adjustments.CreateManual(ctx, tt.in)
			assert.True(t, apperror.Is(err, apperror.CodeValidation), "got %v", err)
		})
	}
	assert.Equal(t, int64(5), env.Store.Stock(p))
}

func TestCreateManual_UnknownProduct(t *testing.T) {
	env := memstore.NewEnv(false)

	_, err := env.Adjustments.CreateManual(context.Background(), adjustment.ManualInput{
		Status:     adjustment.StatusIn,
		ProducedBy: "Sari",
		Items:      []adjustment.ItemInput{{ProductID: id.New(), Quantity: 1}},
	})
	assert.True(t, apperror.IsNotFound(err))
	_, adjustments := env.Store.Counts()
	assert.Zero(t, adjustments)
}

func TestCreateManual_FailedItemsRollBack(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 5)
	env.Store.FailOn("CreateAdjustmentItems", apperror.NewInternal(nil))

	_, err := env.Adjustments.CreateManual(context.Background(), adjustment.ManualInput{
		Status:     adjustment.StatusIn,
		ProducedBy: "Sari",
		Items:      []adjustment.ItemInput{{ProductID: p, Quantity: 4}},
	})
	require.Error(t, err)
	assert.Equal(t, int64(5), env.Store.Stock(p))
	_, adjustments := env.Store.Counts()
	assert.Zero(t, adjustments)
}

func TestCreateFromOpname_AppliesDifferences(t *testing.T) {
	env := memstore.NewEnv(false)
	p1 := env.AddProduct("Flour", 20)
	p2 := env.AddProduct("Sugar", 4)
	p3 := env.AddProduct("Salt", 9)
	ctx := context.Background()

	o := reconciledOpname(t, env,
		opname.ItemInput{ProductID: p1, PhysicalStock: ptr(17)},
		opname.ItemInput{ProductID: p2, PhysicalStock: ptr(6)},
		opname.ItemInput{ProductID: p3},
	)

	m, err := env.Adjustments.CreateFromOpname(ctx, adjustment.FromOpnameInput{OpnameID: o.ID})
	require.NoError(t, err)
	assert.Equal(t, adjustment.StatusOpnameAdjustment, m.Status)
	require.NotNil(t, m.LinkedOpnameID)
	assert.Equal(t, o.ID, *m.LinkedOpnameID)
	assert.Equal(t, o.OpnameDate, m.ManagementDate, "date defaults to the count date")
	assert.Equal(t, "Budi", m.ProducedBy)
	assert.Equal(t, "Stock count "+o.Code, m.Notes)

	require.Len(t, m.Items, 3)
	assert.Equal(t, int64(-3), m.Items[0].Quantity)
	assert.Equal(t, int64(2), m.Items[1].Quantity)
	assert.Zero(t, m.Items[2].Quantity)
	require.NotNil(t, m.Items[0].LinkedOpnameItemID)
	assert.Equal(t, o.Items[0].ID, *m.Items[0].LinkedOpnameItemID)

	assert.Equal(t, int64(17), env.Store.Stock(p1))
	assert.Equal(t, int64(6), env.Store.Stock(p2))
	assert.Equal(t, int64(9), env.Store.Stock(p3))
	assert.Empty(t, env.MovementsOf(p3), "matching lines move nothing")

	got, err := env.Opnames.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusCompleted, got.Status)
	require.NotNil(t, got.AdjustmentID)
	assert.Equal(t, m.ID, *got.AdjustmentID)

	_, err = env.Adjustments.CreateFromOpname(ctx, adjustment.FromOpnameInput{OpnameID: o.ID})
	assert.True(t, apperror.Is(err, apperror.CodeOpnameAlreadyAdjusted))
	assert.Equal(t, int64(17), env.Store.Stock(p1), "no double application")
}

func TestCreateFromOpname_Overrides(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 20)
	o := reconciledOpname(t, env, opname.ItemInput{ProductID: p, PhysicalStock: ptr(18)})
	date := time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC)

	m, err := env.Adjustments.CreateFromOpname(context.Background(), adjustment.FromOpnameInput{
		OpnameID:       o.ID,
		ManagementDate: &date,
		ProducedBy:     "Ana",
		Notes:          "monthly count",
	})
	require.NoError(t, err)
	assert.Equal(t, date, m.ManagementDate)
	assert.Equal(t, "Ana", m.ProducedBy)
	assert.Equal(t, "monthly count", m.Notes)
}

func TestCreateFromOpname_RequiresReconciled(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 20)
	ctx := context.Background()

	inProgress, err := env.Opnames.Record(ctx, opname.RecordInput{
		ConductedBy: "Budi",
		Items:       []opname.ItemInput{{ProductID: p, PhysicalStock: ptr(18)}},
	})
	require.NoError(t, err)
	_, err = env.Adjustments.CreateFromOpname(ctx, adjustment.FromOpnameInput{OpnameID: inProgress.ID})
	assert.True(t, apperror.Is(err, apperror.CodeOpnameNotReconciled))

	completed, err := env.Opnames.Record(ctx, opname.RecordInput{
		ConductedBy: "Budi",
		Items:       []opname.ItemInput{{ProductID: p}},
		Finalize:    true,
	})
	require.NoError(t, err)
	_, err = env.Adjustments.CreateFromOpname(ctx, adjustment.FromOpnameInput{OpnameID: completed.ID})
	assert.True(t, apperror.Is(err, apperror.CodeOpnameNotReconciled))

	_, err = env.Adjustments.CreateFromOpname(ctx, adjustment.FromOpnameInput{OpnameID: id.New()})
	assert.True(t, apperror.IsNotFound(err))

	assert.Equal(t, int64(20), env.Store.Stock(p))
}

func TestCreateFromOpname_InsufficientStockLeavesOpnameReconciled(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 10)
	ctx := context.Background()
	o := reconciledOpname(t, env, opname.ItemInput{ProductID: p, PhysicalStock: ptr(2)})

	// Stock moves after the count, so the -8 difference no longer fits.
	_, err := env.Adjustments.CreateManual(ctx, adjustment.ManualInput{
		Status:     adjustment.StatusOut,
		ProducedBy: "Sari",
		Items:      []adjustment.ItemInput{{ProductID: p, Quantity: 5}},
	})
	require.NoError(t, err)

	_, err = env.Adjustments.CreateFromOpname(ctx, adjustment.FromOpnameInput{OpnameID: o.ID})
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))

	got, err := env.Opnames.Get(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusReconciled, got.Status)
	assert.Nil(t, got.AdjustmentID)
	assert.Equal(t, int64(5), env.Store.Stock(p))
}

func TestCreateFromOpname_ConcurrentRequestsApplyOnce(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 20)
	o := reconciledOpname(t, env, opname.ItemInput{ProductID: p, PhysicalStock: ptr(17)})

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Adjustments.CreateFromOpname(context.Background(), adjustment.FromOpnameInput{OpnameID: o.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperror.Is(err, apperror.CodeOpnameAlreadyAdjusted):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	assert.Equal(t, int64(17), env.Store.Stock(p))
	assert.Len(t, env.MovementsOf(p), 1)
}

func TestDelete_ManualReversesStock(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 5)
	ctx := context.Background()

	m, err := env.Adjustments.CreateManual(ctx, adjustment.ManualInput{
		Status:     adjustment.StatusOut,
		ProducedBy: "Sari",
		Items:      []adjustment.ItemInput{{ProductID: p, Quantity: 3}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(2), env.Store.Stock(p))

	require.NoError(t, env.Adjustments.Delete(ctx, m.ID))
	assert.Equal(t, int64(5), env.Store.Stock(p))

	mv := env.MovementsOf(p)
	require.Len(t, mv, 2)
	assert.Equal(t, int64(-3), mv[0].Delta)
	assert.Equal(t, int64(3), mv[1].Delta)
	assert.True(t, mv[1].Reversal)

	var sum int64
	for _, x := range mv {
		sum += x.Delta
	}
	assert.Zero(t, sum)

	_, err = env.Adjustments.Get(ctx, m.ID)
	assert.True(t, apperror.IsNotFound(err))
}

func TestDelete_ReversalCannotDriveStockNegative(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 0)
	ctx := context.Background()

	in, err := env.Adjustments.CreateManual(ctx, adjustment.ManualInput{
		Status:     adjustment.StatusIn,
		ProducedBy: "Sari",
		Items:      []adjustment.ItemInput{{ProductID: p, Quantity: 10}},
	})
	require.NoError(t, err)
	_, err = env.Adjustments.CreateManual(ctx, adjustment.ManualInput{
		Status:     adjustment.StatusOut,
		ProducedBy: "Sari",
		Items:      []adjustment.ItemInput{{ProductID: p, Quantity: 7}},
	})
	require.NoError(t, err)

	err = env.Adjustments.Delete(ctx, in.ID)
	assert.True(t, apperror.Is(err, apperror.CodeInsufficientStock))
	assert.Equal(t, int64(3), env.Store.Stock(p))

	_, err = env.Adjustments.Get(ctx, in.ID)
	assert.NoError(t, err)
}

func TestDelete_OpnameAdjustmentIsImmutable(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 20)
	ctx := context.Background()
	o := reconciledOpname(t, env, opname.ItemInput{ProductID: p, PhysicalStock: ptr(17)})

	m, err := env.Adjustments.CreateFromOpname(ctx, adjustment.FromOpnameInput{OpnameID: o.ID})
	require.NoError(t, err)

	err = env.Adjustments.Delete(ctx, m.ID)
	assert.True(t, apperror.Is(err, apperror.CodeOpnameAdjustmentImmutable))
	assert.Equal(t, int64(17), env.Store.Stock(p))

	_, err = env.Adjustments.Get(ctx, m.ID)
	assert.NoError(t, err)
}

func TestUpdateHeader(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 5)
	ctx := context.Background()

	m, err := env.Adjustments.CreateManual(ctx, adjustment.ManualInput{
		Status:     adjustment.StatusIn,
		ProducedBy: "Sari",
		Items:      []adjustment.ItemInput{{ProductID: p, Quantity: 1}},
	})
	require.NoError(t, err)

	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	notes := "  late delivery "
	m, err = env.Adjustments.UpdateHeader(ctx, m.ID, adjustment.HeaderInput{ManagementDate: &date, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, date, m.ManagementDate)
	assert.Equal(t, "late delivery", m.Notes)
	assert.Equal(t, 2, m.Version)
	require.Len(t, m.Items, 1)
	assert.Equal(t, int64(6), env.Store.Stock(p))

	var zero time.Time
	_, err = env.Adjustments.UpdateHeader(ctx, m.ID, adjustment.HeaderInput{ManagementDate: &zero})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = env.Adjustments.UpdateHeader(ctx, id.New(), adjustment.HeaderInput{Notes: &notes})
	assert.True(t, apperror.IsNotFound(err))
}

func TestList(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Flour", 50)
	ctx := context.Background()

	for _, st := range []adjustment.Status{adjustment.StatusIn, adjustment.StatusOut, adjustment.StatusIn} {
		_, err := env.Adjustments.CreateManual(ctx, adjustment.ManualInput{
			Status:     st,
			ProducedBy: "Sari",
			Items:      []adjustment.ItemInput{{ProductID: p, Quantity: 2}},
		})
		require.NoError(t, err)
	}

	res, err := env.Adjustments.List(ctx, domain.ListFilter{Status: "in"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.TotalCount)

	res, err = env.Adjustments.List(ctx, domain.ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.TotalCount)
	assert.Len(t, res.Items, 1)

	_, err = env.Adjustments.List(ctx, domain.ListFilter{Status: "LOST"})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}
