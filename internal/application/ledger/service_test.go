package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/erp/profitledger/internal/infrastructure/config"
	"github.com/erp/profitledger/internal/infrastructure/lock"
	"github.com/erp/profitledger/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fixture struct {
	store  *persistence.LedgerStore
	locker *lock.LocalRangeLocker
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := persistence.NewDatabase(&config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.AutoMigrate())

	f := &fixture{store: persistence.NewLedgerStore(db.DB), locker: lock.NewLocalRangeLocker()}
	f.svc = NewService(f.store, f.locker, nil, zaptest.NewLogger(t))
	return f
}

func (f *fixture) batch(t *testing.T, sku string, day time.Time, qty int64, cost string) ledger.Batch {
	t.Helper()
	b, err := f.store.CreateBatch(context.Background(), ledger.Batch{
		SKU: sku, IntakeDate: day, QuantityIn: qty, UnitCost: decimal.RequireFromString(cost),
	})
	require.NoError(t, err)
	return b
}

// sale stores a single-line order and returns its sale item ID.
func (f *fixture) sale(t *testing.T, orderID, sku string, soldAt time.Time, qty int64) int64 {
	t.Helper()
	ctx := context.Background()
	_, err := f.store.UpsertOrders(ctx, []ledger.Order{{
		ID: orderID, SoldAt: soldAt,
		Lines: []ledger.SaleLine{{SKU: sku, Quantity: qty, UnitPrice: decimal.NewFromInt(100)}},
	}})
	require.NoError(t, err)
	day := businessday.TruncateDate(soldAt)
	lines, err := f.store.SaleLinesInRange(ctx, ledger.DateRange{From: day, To: day})
	require.NoError(t, err)
	for _, l := range lines {
		if l.OrderID == orderID {
			return l.SaleItemID
		}
	}
	t.Fatalf("sale line for %s not found", orderID)
	return 0
}

func (f *fixture) allocations(t *testing.T, id int64) []ledger.Allocation {
	t.Helper()
	got, err := f.store.AllocationsForSaleItems(context.Background(), []int64{id})
	require.NoError(t, err)
	return got[id]
}

func at(day, hour int) time.Time {
	return time.Date(2024, 1, day, hour, 0, 0, 0, time.UTC)
}

func jan(day int) time.Time {
	return businessday.Date(2024, 1, day)
}

func totalCost(allocs []ledger.Allocation) decimal.Decimal {
	sum := decimal.Zero
	for _, a := range allocs {
		sum = sum.Add(a.Cost())
	}
	return sum
}

func TestRebuild_FIFOAcrossBatches(t *testing.T) {
	f := newFixture(t)
	first := f.batch(t, "A", jan(1), 5, "10")
	second := f.batch(t, "A", jan(5), 5, "12")
	id := f.sale(t, "o-1", "A", at(6, 10), 8)

	res, err := f.svc.Rebuild(context.Background(), jan(6), jan(6))
	require.NoError(t, err)
	assert.Equal(t, RebuildResult{DateFrom: "2024-01-06", DateTo: "2024-01-06", SaleLines: 1, Recomputed: 2}, res)

	allocs := f.allocations(t, id)
	require.Len(t, allocs, 2)
	assert.Equal(t, first.ID, *allocs[0].BatchID)
	assert.Equal(t, int64(5), allocs[0].Quantity)
	assert.Equal(t, second.ID, *allocs[1].BatchID)
	assert.Equal(t, int64(3), allocs[1].Quantity)
	assert.True(t, totalCost(allocs).Equal(decimal.NewFromInt(86)))
	assert.Equal(t, 0, f.locker.Held())
}

func TestRebuild_NoBatchesYieldsDeficit(t *testing.T) {
	f := newFixture(t)
	id := f.sale(t, "o-1", "B", at(3, 9), 2)

	res, err := f.svc.Rebuild(context.Background(), jan(1), jan(31))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deficits)
	assert.Equal(t, int64(2), res.DeficitUnits)

	allocs := f.allocations(t, id)
	require.Len(t, allocs, 1)
	assert.True(t, allocs[0].IsDeficit())
	assert.False(t, allocs[0].UnitCost.Valid)
	assert.True(t, totalCost(allocs).IsZero())
}

func TestRebuild_LateBatchIsNotEligible(t *testing.T) {
	f := newFixture(t)
	f.batch(t, "A", jan(7), 10, "5")
	id := f.sale(t, "o-1", "A", at(6, 23), 3)

	_, err := f.svc.Rebuild(context.Background(), jan(6), jan(6))
	require.NoError(t, err)
	allocs := f.allocations(t, id)
	require.Len(t, allocs, 1)
	assert.True(t, allocs[0].IsDeficit())

	// A back-dated batch heals the deficit on the next rebuild.
	f.batch(t, "A", jan(6), 3, "4")
	_, err = f.svc.Rebuild(context.Background(), jan(6), jan(6))
	require.NoError(t, err)
	allocs = f.allocations(t, id)
	require.Len(t, allocs, 1)
	assert.False(t, allocs[0].IsDeficit())
}

func TestRebuild_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.batch(t, "A", jan(1), 4, "10")
	f.batch(t, "A", jan(2), 4, "11")
	ids := []int64{
		f.sale(t, "o-1", "A", at(2, 8), 3),
		f.sale(t, "o-2", "A", at(3, 8), 3),
		f.sale(t, "o-3", "A", at(4, 8), 3),
	}

	strip := func() [][]ledger.Allocation {
		var out [][]ledger.Allocation
		for _, id := range ids {
			allocs := f.allocations(t, id)
			for i := range allocs {
				allocs[i].ID = 0
			}
			out = append(out, allocs)
		}
		return out
	}

	first, err := f.svc.Rebuild(context.Background(), jan(1), jan(31))
	require.NoError(t, err)
	before := strip()

	second, err := f.svc.Rebuild(context.Background(), jan(1), jan(31))
	require.NoError(t, err)
	assert.Equal(t, int64(first.Recomputed), second.Deleted)
	assert.Equal(t, first.Recomputed, second.Recomputed)
	assert.Equal(t, before, strip())

	for i, id := range ids {
		var qty int64
		for _, a := range f.allocations(t, id) {
			qty += a.Quantity
		}
		assert.Equal(t, int64(3), qty, "line %d conserved", i)
	}
}

func TestRebuild_SubRangeKeepsOutsideAllocations(t *testing.T) {
	f := newFixture(t)
	b := f.batch(t, "A", jan(1), 6, "10")
	early := f.sale(t, "o-1", "A", at(5, 8), 4)
	late := f.sale(t, "o-2", "A", at(10, 8), 4)

	_, err := f.svc.Rebuild(context.Background(), jan(1), jan(31))
	require.NoError(t, err)
	earlyBefore := f.allocations(t, early)

	res, err := f.svc.Rebuild(context.Background(), jan(10), jan(10))
	require.NoError(t, err)
	assert.Equal(t, 1, res.SaleLines)
	assert.Equal(t, int64(2), res.Deleted)

	assert.Equal(t, earlyBefore, f.allocations(t, early), "outside allocations untouched, IDs included")

	lateAllocs := f.allocations(t, late)
	require.Len(t, lateAllocs, 2)
	assert.Equal(t, int64(2), lateAllocs[0].Quantity, "only the stock left after the early sale")
	assert.True(t, lateAllocs[1].IsDeficit())

	held, err := f.store.AllocatedByBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, held[b.ID], b.QuantityIn)
}

func TestRebuild_EmptyRange(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.Rebuild(context.Background(), jan(1), jan(2))
	require.NoError(t, err)
	assert.Zero(t, res.Recomputed)
	assert.Zero(t, res.SaleLines)
}

func TestRebuild_InvalidRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Rebuild(context.Background(), jan(5), jan(4))
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrInvalidRange))
}

func TestRebuild_RangeTooLong(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Rebuild(context.Background(), jan(1), businessday.Date(2025, 1, 1))
	require.ErrorIs(t, err, shared.ErrInvalidArgument)
	assert.Contains(t, err.Error(), "367 days")

	_, err = f.svc.Rebuild(context.Background(), jan(1), businessday.Date(2024, 12, 31))
	require.NoError(t, err)
}

func TestRebuild_OverlappingRangeIsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	release, err := f.locker.Lock(ctx, ledger.DateRange{From: jan(3), To: jan(8)})
	require.NoError(t, err)

	_, err = f.svc.Rebuild(ctx, jan(1), jan(3))
	assert.ErrorIs(t, err, shared.ErrRangeLocked)

	_, err = f.svc.Rebuild(ctx, jan(9), jan(10))
	assert.NoError(t, err, "disjoint range proceeds")

	require.NoError(t, release(ctx))
	_, err = f.svc.Rebuild(ctx, jan(1), jan(3))
	assert.NoError(t, err)
}

// failingInsert makes InsertAllocations fail inside a real transaction.
type failingInsert struct {
	inner *persistence.LedgerStore
}

func (u failingInsert) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledger.TxStore) error) error {
	return u.inner.WithTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
		return fn(ctx, failingTx{tx})
	})
}

type failingTx struct {
	ledger.TxStore
}

func (failingTx) InsertAllocations(context.Context, []ledger.Allocation) error {
	return shared.PersistenceError("insert allocations", errors.New("disk full"))
}

func TestRebuild_FailureKeepsPreviousAllocations(t *testing.T) {
	f := newFixture(t)
	f.batch(t, "A", jan(1), 10, "10")
	id := f.sale(t, "o-1", "A", at(2, 8), 3)

	_, err := f.svc.Rebuild(context.Background(), jan(2), jan(2))
	require.NoError(t, err)
	before := f.allocations(t, id)
	require.NotEmpty(t, before)

	broken := NewService(failingInsert{f.store}, f.locker, nil, zaptest.NewLogger(t))
	_, err = broken.Rebuild(context.Background(), jan(2), jan(2))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrPersistence)

	assert.Equal(t, before, f.allocations(t, id))
	assert.Equal(t, 0, f.locker.Held(), "lock released after failure")
}

func TestAvailableStock(t *testing.T) {
	batches := map[string][]ledger.Batch{
		"A": {{ID: 1, QuantityIn: 5}, {ID: 2, QuantityIn: 5}},
	}
	got := availableStock(batches, map[int64]int64{1: 7, 2: 1})
	assert.Equal(t, int64(0), got["A"][0].QuantityIn)
	assert.Equal(t, int64(4), got["A"][1].QuantityIn)
	assert.Equal(t, int64(5), batches["A"][0].QuantityIn, "input untouched")
}
