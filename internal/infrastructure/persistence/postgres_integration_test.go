//go:build integration

package persistence

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/infrastructure/config"
	"github.com/erp/profitledger/internal/infrastructure/migration"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func migrationsDir(t *testing.T) string {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// newPostgresStore starts a disposable Postgres, applies the SQL migrations and
// returns a store over it.
func newPostgresStore(t *testing.T) *LedgerStore {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	gdb, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)

	m, err := migration.New(sqlDB, migrationsDir(t), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, m.Up())

	db := NewDatabaseFromGorm(gdb, config.DriverPostgres)
	require.NoError(t, db.Ping())
	return NewLedgerStore(db.DB)
}

func TestPostgresLedgerStore_RoundTrip(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()

	b, err := s.CreateBatch(ctx, ledger.Batch{SKU: "A", IntakeDate: businessday.Date(2024, 1, 1), QuantityIn: 5, UnitCost: decimal.RequireFromString("10.25")})
	require.NoError(t, err)

	soldAt := time.Date(2024, 1, 6, 15, 0, 0, 0, time.UTC)
	stats, err := s.UpsertOrders(ctx, []ledger.Order{{
		ID: "ord-1", SoldAt: soldAt,
		Lines: []ledger.SaleLine{{SKU: "A", Quantity: 7, UnitPrice: decimal.NewFromInt(100)}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ItemsInserted)

	r := ledger.DateRange{From: businessday.Date(2024, 1, 6), To: businessday.Date(2024, 1, 6)}
	err = s.WithTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
		lines, err := tx.SaleLinesInRange(ctx, r)
		if err != nil {
			return err
		}
		batches, err := tx.BatchesForSKUs(ctx, []string{"A"})
		if err != nil {
			return err
		}
		allocs, err := ledger.Allocate(lines, batches)
		if err != nil {
			return err
		}
		return tx.InsertAllocations(ctx, allocs)
	})
	require.NoError(t, err)

	lines, err := s.SaleLinesInRange(ctx, r)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, lines[0].SaleTimestamp.Equal(soldAt))

	got, err := s.AllocationsForSaleItems(ctx, []int64{lines[0].SaleItemID})
	require.NoError(t, err)
	require.Len(t, got[lines[0].SaleItemID], 2)
	assert.Equal(t, b.ID, *got[lines[0].SaleItemID][0].BatchID)
	assert.True(t, got[lines[0].SaleItemID][1].IsDeficit())

	byBatch, err := s.AllocatedByBatch(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), byBatch[b.ID])
}
