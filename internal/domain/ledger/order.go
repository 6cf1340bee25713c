package ledger

import (
	"context"
	"time"
)

// Order is an ingested sale. Its lines inherit SoldAt as their sale timestamp.
type Order struct {
	ID       string
	SoldAt   time.Time
	Customer string
	Lines    []SaleLine
}

// UpsertStats counts what an order upsert changed.
type UpsertStats struct {
	OrdersInserted int `json:"orders_inserted"`
	OrdersUpdated  int `json:"orders_updated"`
	ItemsInserted  int `json:"items_inserted"`
}

// Add returns s + o.
func (s UpsertStats) Add(o UpsertStats) UpsertStats {
	return UpsertStats{
		OrdersInserted: s.OrdersInserted + o.OrdersInserted,
		OrdersUpdated:  s.OrdersUpdated + o.OrdersUpdated,
		ItemsInserted:  s.ItemsInserted + o.ItemsInserted,
	}
}

// OrderWriter persists orders. UpsertOrders is all-or-nothing: each order row
// is inserted or updated and its lines are replaced, dropping the allocations
// of the replaced lines.
type OrderWriter interface {
	UpsertOrders(ctx context.Context, orders []Order) (UpsertStats, error)
}

// BatchWriter records new cost lots.
type BatchWriter interface {
	CreateBatch(ctx context.Context, b Batch) (Batch, error)
}
