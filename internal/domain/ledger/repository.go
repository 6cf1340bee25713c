package ledger

import "context"

// BatchReader loads cost lots for the allocator.
type BatchReader interface {
	// BatchesForSKUs returns, per SKU, batches ordered by (IntakeDate, ID) ascending.
	// SKUs without batches are absent from the map. An empty skus loads every SKU.
	BatchesForSKUs(ctx context.Context, skus []string) (map[string][]Batch, error)
}

// SaleLineReader loads sale lines for rebuilds and reports.
type SaleLineReader interface {
	// SaleLinesInRange returns lines whose stored sale date lies in r,
	// ordered by (SaleTimestamp, SaleItemID) ascending.
	SaleLinesInRange(ctx context.Context, r DateRange) ([]SaleLine, error)
}

// AllocationReader exposes persisted allocations.
type AllocationReader interface {
	AllocationsForSaleItems(ctx context.Context, saleItemIDs []int64) (map[int64][]Allocation, error)
	// AllocatedByBatch sums allocated quantity per batch ID across the whole
	// ledger. An empty skus covers every SKU.
	AllocatedByBatch(ctx context.Context, skus []string) (map[int64]int64, error)
}

// AllocationWriter replaces allocations during a rebuild.
type AllocationWriter interface {
	DeleteAllocations(ctx context.Context, saleItemIDs []int64) (int64, error)
	InsertAllocations(ctx context.Context, allocations []Allocation) error
}

// TxStore is the set of operations available inside one unit of work.
type TxStore interface {
	BatchReader
	SaleLineReader
	AllocationReader
	AllocationWriter
}

// UnitOfWork runs fn inside a single transaction. Returning an error from fn
// rolls back every write made through tx.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxStore) error) error
}
