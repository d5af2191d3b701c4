package opname_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"stockkeeper/internal/core/apperror"
	appctx "stockkeeper/internal/core/context"
	"stockkeeper/internal/core/id"
	"stockkeeper/internal/domain"
	"stockkeeper/internal/domain/catalogs/product"
	"stockkeeper/internal/domain/documents/adjustment"
	"stockkeeper/internal/domain/documents/opname"
	"stockkeeper/internal/testing/memstore"
	"stockkeeper/pkg/logger"
)

var sopCode = regexp.MustCompile(`^SOP/\d{2}/\d{4}/\d{4}$`)

func ptr(v int64) *int64 { return &v }

func TestRecord_SnapshotsSystemStock(t *testing.T) {
	env := memstore.NewEnv(false)
	p1 := env.AddProduct("Flour", 10)
	p2 := env.AddProduct("Sugar", 4)
	ctx := appctx.WithActor(context.Background(), &appctx.Actor{UserID: "u-1"})

	o, err := env.Opnames.Record(ctx, opname.RecordInput{
		OpnameDate:  time.Date(2025, 4, 30, 0, 0, 0, 0, time.UTC),
		ConductedBy: "Budi",
		Items: []opname.ItemInput{
			{ProductID: p1, PhysicalStock: ptr(7)},
			{ProductID: p2},
		},
	})
	require.NoError(t, err)
	assert.Regexp(t, sopCode, o.Code)
	assert.Equal(t, opname.StatusInProgress, o.Status)
	assert.Equal(t, "u-1", o.CreatedBy)

	// Later stock movements do not change the snapshot.
	env.Store.SeedProduct(mustProduct(t, env, p1, 99))

	got, err := env.Opnames.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 2)
	assert.Equal(t, int64(10), got.Items[0].SystemStock)
	assert.Equal(t, int64(-3), got.Items[0].Difference)
	assert.Equal(t, int64(4), got.Items[1].PhysicalStock)

	// An unadjusted count never touches stock.
	assert.Empty(t, env.Store.Movements())
}

func TestRecord_FinalizeDerivesStatus(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Rice", 10)
	ctx := context.Background()

	o, err := env.Opnames.Record(ctx, opname.RecordInput{
		ConductedBy: "Sari",
		Items:       []opname.ItemInput{{ProductID: p, PhysicalStock: ptr(10)}},
		Finalize:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, opname.StatusCompleted, o.Status)

	o, err = env.Opnames.Record(ctx, opname.RecordInput{
		ConductedBy: "Sari",
		Items:       []opname.ItemInput{{ProductID: p, PhysicalStock: ptr(7)}},
		Finalize:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, opname.StatusReconciled, o.Status)
	assert.Equal(t, int64(-3), o.Items[0].Difference)
}

func TestRecord_DuplicateProduct(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Oil", 5)

	_, err := env.Opnames.Record(context.Background(), opname.RecordInput{
		ConductedBy: "Budi",
		Items:       []opname.ItemInput{{ProductID: p}, {ProductID: p, PhysicalStock: ptr(3)}},
	})
	assert.True(t, apperror.Is(err, apperror.CodeDuplicateProductInOpname))

	opnames, _ := env.Store.Counts()
	assert.Zero(t, opnames)
}

func TestRecord_Validation(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Oil", 5)
	ctx := context.Background()

	_, err := env.Opnames.Record(ctx, opname.RecordInput{ConductedBy: "Budi"})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = env.Opnames.Record(ctx, opname.RecordInput{Items: []opname.ItemInput{{ProductID: p}}})
	assert.True(t, apperror.Is(err, apperror.CodeValidation), "conductedBy is required")

	_, err = env.Opnames.Record(ctx, opname.RecordInput{
		ConductedBy: "Budi",
		Items:       []opname.ItemInput{{ProductID: id.New()}},
	})
	assert.True(t, apperror.IsNotFound(err))
}

func TestRecord_FailedSaveLeavesNothing(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Oil", 5)
	env.Store.FailOn("SaveOpnameItems", apperror.NewInternal(nil))

	_, err := env.Opnames.Record(context.Background(), opname.RecordInput{
		ConductedBy: "Budi",
		Items:       []opname.ItemInput{{ProductID: p}},
	})
	require.Error(t, err)
	opnames, _ := env.Store.Counts()
	assert.Zero(t, opnames)
}

func TestUpdateItems(t *testing.T) {
	env := memstore.NewEnv(false)
	p1 := env.AddProduct("Tea", 10)
	p2 := env.AddProduct("Coffee", 6)
	ctx := context.Background()

	o, err := env.Opnames.Record(ctx, opname.RecordInput{
		ConductedBy: "Budi",
		Items:       []opname.ItemInput{{ProductID: p1}},
	})
	require.NoError(t, err)

	env.Store.SeedProduct(mustProduct(t, env, p1, 12))

	o, err = env.Opnames.UpdateItems(ctx, o.ID, []opname.ItemInput{
		{ProductID: p1, PhysicalStock: ptr(9)},
		{ProductID: p2, PhysicalStock: ptr(6)},
	})
	require.NoError(t, err)
	require.Len(t, o.Items, 2)
	assert.Equal(t, int64(10), o.Items[0].SystemStock, "existing snapshot is kept")
	assert.Equal(t, int64(6), o.Items[1].SystemStock)
	assert.Equal(t, 2, o.Version)

	_, err = env.Opnames.UpdateItems(ctx, o.ID, []opname.ItemInput{{ProductID: p2}, {ProductID: p2}})
	assert.True(t, apperror.Is(err, apperror.CodeDuplicateProductInOpname))

	o, err = env.Opnames.Reconcile(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusReconciled, o.Status)

	_, err = env.Opnames.UpdateItems(ctx, o.ID, []opname.ItemInput{{ProductID: p1}})
	assert.True(t, apperror.Is(err, apperror.CodeOpnameLocked))
}

func TestReconcile_IsStableOnceTerminal(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Tea", 10)
	ctx := context.Background()

	o, err := env.Opnames.Record(ctx, opname.RecordInput{
		ConductedBy: "Budi",
		Items:       []opname.ItemInput{{ProductID: p}},
	})
	require.NoError(t, err)

	o, err = env.Opnames.Reconcile(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusCompleted, o.Status)
	version := o.Version

	o, err = env.Opnames.Reconcile(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusCompleted, o.Status)
	assert.Equal(t, version, o.Version)

	_, err = env.Opnames.Reconcile(ctx, id.New())
	assert.True(t, apperror.IsNotFound(err))
}

func TestUpdateNotes_Logged(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Tea", 10)

	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.WithLogger(context.Background(), &logger.Logger{SugaredLogger: zap.New(core).Sugar()})

	o, err := env.Opnames.Record(ctx, opname.RecordInput{ConductedBy: "Budi", Items: []opname.ItemInput{{ProductID: p}}})
	require.NoError(t, err)

	notes := "recount tomorrow"
	_, err = env.Opnames.UpdateNotes(ctx, o.ID, opname.NotesInput{Notes: &notes})
	require.NoError(t, err)

	entries := logs.FilterMessage("opname notes updated").All()
	require.Len(t, entries, 1)
	assert.Equal(t, o.Code, entries[0].ContextMap()["code"])
}

func TestUpdateNotes(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Tea", 10)
	ctx := context.Background()

	o, err := env.Opnames.Record(ctx, opname.RecordInput{
		ConductedBy: "Budi",
		Items:       []opname.ItemInput{{ProductID: p, PhysicalStock: ptr(8)}},
		Finalize:    true,
	})
	require.NoError(t, err)

	notes := "two packs damaged"
	o, err = env.Opnames.UpdateNotes(ctx, o.ID, opname.NotesInput{
		Notes:     &notes,
		ItemNotes: map[id.ID]string{p: "shelf B"},
	})
	require.NoError(t, err)
	assert.Equal(t, notes, o.Notes)
	assert.Equal(t, "shelf B", o.Items[0].Notes)
	assert.Equal(t, int64(8), o.Items[0].PhysicalStock)

	_, err = env.Opnames.UpdateNotes(ctx, o.ID, opname.NotesInput{ItemNotes: map[id.ID]string{id.New(): "x"}})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))

	_, err = env.Adjustments.CreateFromOpname(ctx, adjustment.FromOpnameInput{OpnameID: o.ID})
	require.NoError(t, err)

	_, err = env.Opnames.UpdateNotes(ctx, o.ID, opname.NotesInput{Notes: &notes})
	assert.True(t, apperror.Is(err, apperror.CodeOpnameAlreadyAdjusted))
}

func TestDelete(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Tea", 10)
	ctx := context.Background()

	o, err := env.Opnames.Record(ctx, opname.RecordInput{
		ConductedBy: "Budi",
		Items:       []opname.ItemInput{{ProductID: p, PhysicalStock: ptr(8)}},
		Finalize:    true,
	})
	require.NoError(t, err)
	require.NoError(t, env.Opnames.Delete(ctx, o.ID))

	_, err = env.Opnames.Get(ctx, o.ID)
	assert.True(t, apperror.IsNotFound(err))
	items, err := env.Store.Opnames().GetItems(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, items, "items cascade")
	assert.Equal(t, int64(10), env.Store.Stock(p))
}

func TestDelete_RejectedOnceAdjusted(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Tea", 10)
	ctx := context.Background()

	o, err := env.Opnames.Record(ctx, opname.RecordInput{
		ConductedBy: "Budi",
		Items:       []opname.ItemInput{{ProductID: p, PhysicalStock: ptr(8)}},
		Finalize:    true,
	})
	require.NoError(t, err)
	adj, err := env.Adjustments.CreateFromOpname(ctx, adjustment.FromOpnameInput{OpnameID: o.ID})
	require.NoError(t, err)

	err = env.Opnames.Delete(ctx, o.ID)
	assert.True(t, apperror.Is(err, apperror.CodeOpnameAlreadyAdjusted))

	got, err := env.Opnames.Get(ctx, o.ID)
	require.NoError(t, err)
	require.NotNil(t, got.AdjustmentID)
	assert.Equal(t, adj.ID, *got.AdjustmentID)
}

func TestList(t *testing.T) {
	env := memstore.NewEnv(false)
	p := env.AddProduct("Tea", 10)
	ctx := context.Background()

	for _, physical := range []int64{10, 9, 8} {
		_, err := env.Opnames.Record(ctx, opname.RecordInput{
			ConductedBy: "Budi",
			Items:       []opname.ItemInput{{ProductID: p, PhysicalStock: ptr(physical)}},
			Finalize:    true,
		})
		require.NoError(t, err)
	}

	res, err := env.Opnames.List(ctx, domain.ListFilter{Status: "reconciled"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.TotalCount)
	assert.Equal(t, domain.DefaultLimit, res.Limit)

	_, err = env.Opnames.List(ctx, domain.ListFilter{Status: "bogus"})
	assert.True(t, apperror.Is(err, apperror.CodeValidation))
}

func mustProduct(t *testing.T, env *memstore.Env, productID id.ID, currentStock int64) product.Product {
	t.Helper()
	p, err := env.Store.Products().GetByID(context.Background(), productID)
	require.NoError(t, err)
	p.CurrentStock = currentStock
	return *p
}
