package persistence

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/domain/report"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/erp/profitledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// inChunk bounds the number of bind parameters per IN (...) list.
const inChunk = 500

// LedgerStore implements the ledger, ingestion and catalog ports on top of GORM.
// The same type serves both drivers; nothing here branches on the dialect.
type LedgerStore struct {
	db *gorm.DB
}

// NewLedgerStore creates a new LedgerStore
func NewLedgerStore(db *gorm.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

var (
	_ ledger.UnitOfWork    = (*LedgerStore)(nil)
	_ ledger.TxStore       = (*LedgerStore)(nil)
	_ ledger.OrderWriter   = (*LedgerStore)(nil)
	_ ledger.BatchWriter   = (*LedgerStore)(nil)
	_ report.CatalogReader = (*LedgerStore)(nil)
	_ report.OrderReader   = (*LedgerStore)(nil)
)

// WithTx runs fn in one database transaction. Domain errors returned by fn are
// passed through unchanged; begin/commit failures become persistence errors.
func (s *LedgerStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx ledger.TxStore) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &LedgerStore{db: tx})
	})
	if err == nil {
		return nil
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return shared.PersistenceError("ledger transaction failed", err)
}

// BatchesForSKUs returns batches per SKU in (intake_date, id) order.
func (s *LedgerStore) BatchesForSKUs(ctx context.Context, skus []string) (map[string][]ledger.Batch, error) {
	var rows []models.BatchModel
	query := s.db.WithContext(ctx).Model(&models.BatchModel{})
	if len(skus) > 0 {
		query = query.Where("sku IN ?", skus)
	}
	if err := query.Order("sku, intake_date, id").Find(&rows).Error; err != nil {
		return nil, shared.PersistenceError("load batches", err)
	}

	out := make(map[string][]ledger.Batch)
	for i := range rows {
		b := rows[i].ToDomain()
		out[b.SKU] = append(out[b.SKU], b)
	}
	return out, nil
}

// SaleLinesInRange returns lines whose UTC sale date lies in r.
func (s *LedgerStore) SaleLinesInRange(ctx context.Context, r ledger.DateRange) ([]ledger.SaleLine, error) {
	start, end := r.UTCBounds()
	return s.saleLinesBetween(ctx, start, end)
}

// saleLinesBetween returns lines with start <= sale_timestamp < end in
// (sale_timestamp, sale_item_id) order.
func (s *LedgerStore) saleLinesBetween(ctx context.Context, start, end time.Time) ([]ledger.SaleLine, error) {
	var rows []models.SaleLineModel
	err := s.db.WithContext(ctx).
		Where("sale_timestamp >= ? AND sale_timestamp < ?", start.UTC(), end.UTC()).
		Order("sale_timestamp, sale_item_id").
		Find(&rows).Error
	if err != nil {
		return nil, shared.PersistenceError("load sale lines", err)
	}

	lines := make([]ledger.SaleLine, len(rows))
	for i := range rows {
		lines[i] = rows[i].ToDomain()
	}
	return lines, nil
}

// OrderTimesInWindow returns sold_at of orders with start <= sold_at < end, ascending.
func (s *LedgerStore) OrderTimesInWindow(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	var rows []models.OrderModel
	err := s.db.WithContext(ctx).
		Select("id", "sold_at").
		Where("sold_at >= ? AND sold_at < ?", start.UTC(), end.UTC()).
		Order("sold_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, shared.PersistenceError("load order times", err)
	}

	times := make([]time.Time, len(rows))
	for i := range rows {
		times[i] = rows[i].SoldAt.UTC()
	}
	return times, nil
}

// AllocationsForSaleItems groups the persisted allocations of the given sale items.
func (s *LedgerStore) AllocationsForSaleItems(ctx context.Context, saleItemIDs []int64) (map[int64][]ledger.Allocation, error) {
	out := make(map[int64][]ledger.Allocation)
	for chunk := range slices.Chunk(saleItemIDs, inChunk) {
		var rows []models.AllocationModel
		err := s.db.WithContext(ctx).
			Where("sale_item_id IN ?", chunk).
			Order("sale_item_id, id").
			Find(&rows).Error
		if err != nil {
			return nil, shared.PersistenceError("load allocations", err)
		}
		for i := range rows {
			a := rows[i].ToDomain()
			out[a.SaleItemID] = append(out[a.SaleItemID], a)
		}
	}
	return out, nil
}

// AllocatedByBatch sums non-deficit allocations per batch.
func (s *LedgerStore) AllocatedByBatch(ctx context.Context, skus []string) (map[int64]int64, error) {
	var rows []struct {
		BatchID  int64
		Quantity int64
	}
	query := s.db.WithContext(ctx).Model(&models.AllocationModel{}).
		Select("batch_id, CAST(SUM(quantity) AS BIGINT) AS quantity").
		Where("batch_id IS NOT NULL")
	if len(skus) > 0 {
		query = query.Where("sku IN ?", skus)
	}
	if err := query.Group("batch_id").Scan(&rows).Error; err != nil {
		return nil, shared.PersistenceError("sum allocations by batch", err)
	}

	out := make(map[int64]int64, len(rows))
	for _, r := range rows {
		out[r.BatchID] = r.Quantity
	}
	return out, nil
}

// DeleteAllocations removes every allocation of the given sale items.
func (s *LedgerStore) DeleteAllocations(ctx context.Context, saleItemIDs []int64) (int64, error) {
	var deleted int64
	for chunk := range slices.Chunk(saleItemIDs, inChunk) {
		res := s.db.WithContext(ctx).Where("sale_item_id IN ?", chunk).Delete(&models.AllocationModel{})
		if res.Error != nil {
			return deleted, shared.PersistenceError("delete allocations", res.Error)
		}
		deleted += res.RowsAffected
	}
	return deleted, nil
}

// InsertAllocations writes allocations in insertion batches.
func (s *LedgerStore) InsertAllocations(ctx context.Context, allocations []ledger.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	rows := make([]*models.AllocationModel, len(allocations))
	for i, a := range allocations {
		rows[i] = models.AllocationModelFromDomain(a)
		rows[i].ID = 0
	}
	if err := s.db.WithContext(ctx).CreateInBatches(rows, inChunk).Error; err != nil {
		return shared.PersistenceError("insert allocations", err)
	}
	return nil
}

// UpsertOrders inserts or updates each order and replaces its lines, all in
// one transaction. Lines take the order's sold_at as their sale timestamp.
func (s *LedgerStore) UpsertOrders(ctx context.Context, orders []ledger.Order) (ledger.UpsertStats, error) {
	var stats ledger.UpsertStats
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range orders {
			st, err := upsertOrder(tx, o)
			if err != nil {
				return err
			}
			stats = stats.Add(st)
		}
		return nil
	})
	if err != nil {
		return ledger.UpsertStats{}, shared.PersistenceError("upsert orders", err)
	}
	return stats, nil
}

func upsertOrder(tx *gorm.DB, o ledger.Order) (ledger.UpsertStats, error) {
	var stats ledger.UpsertStats

	var existing int64
	if err := tx.Model(&models.OrderModel{}).Where("id = ?", o.ID).Count(&existing).Error; err != nil {
		return stats, err
	}
	if existing > 0 {
		stats.OrdersUpdated = 1
	} else {
		stats.OrdersInserted = 1
	}

	soldAt := o.SoldAt.UTC()
	order := models.OrderModel{ID: o.ID, SoldAt: soldAt, Customer: o.Customer}
	err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"sold_at", "customer"}),
	}).Create(&order).Error
	if err != nil {
		return stats, err
	}

	// Allocations are removed explicitly: SQLite only cascades with foreign keys enabled.
	var oldIDs []int64
	if err := tx.Model(&models.SaleLineModel{}).Where("order_id = ?", o.ID).Pluck("sale_item_id", &oldIDs).Error; err != nil {
		return stats, err
	}
	for chunk := range slices.Chunk(oldIDs, inChunk) {
		if err := tx.Where("sale_item_id IN ?", chunk).Delete(&models.AllocationModel{}).Error; err != nil {
			return stats, err
		}
	}
	if err := tx.Where("order_id = ?", o.ID).Delete(&models.SaleLineModel{}).Error; err != nil {
		return stats, err
	}

	if len(o.Lines) == 0 {
		return stats, nil
	}
	lines := make([]*models.SaleLineModel, len(o.Lines))
	for i, l := range o.Lines {
		l.SaleItemID = 0
		l.OrderID = o.ID
		l.SaleTimestamp = soldAt
		lines[i] = models.SaleLineModelFromDomain(l)
	}
	if err := tx.Omit(clause.Associations).Create(&lines).Error; err != nil {
		return stats, err
	}
	stats.ItemsInserted = len(lines)
	return stats, nil
}

// CreateBatch records a cost lot and returns it with its assigned ID.
func (s *LedgerStore) CreateBatch(ctx context.Context, b ledger.Batch) (ledger.Batch, error) {
	row := models.BatchModelFromDomain(b)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return ledger.Batch{}, shared.PersistenceError("create batch", err)
	}
	return row.ToDomain(), nil
}

// Categories returns every commission category.
func (s *LedgerStore) Categories(ctx context.Context) ([]report.Category, error) {
	var rows []models.CategoryModel
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, shared.PersistenceError("load categories", err)
	}
	out := make([]report.Category, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// SKUCategories maps known SKUs to their category name.
func (s *LedgerStore) SKUCategories(ctx context.Context, skus []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(skus) == 0 {
		return out, nil
	}
	for chunk := range slices.Chunk(skus, inChunk) {
		var rows []models.ProductModel
		if err := s.db.WithContext(ctx).Where("sku IN ?", chunk).Find(&rows).Error; err != nil {
			return nil, shared.PersistenceError("load product categories", err)
		}
		for _, p := range rows {
			out[p.SKU] = p.Category
		}
	}
	return out, nil
}
