package report

import (
	"context"
	"time"
)

// CatalogReader is the read-only category lookup used to resolve commission.
type CatalogReader interface {
	Categories(ctx context.Context) ([]Category, error)
	// SKUCategories maps each known SKU to its category name. Unknown SKUs are absent.
	SKUCategories(ctx context.Context, skus []string) (map[string]string, error)
}

// OrderReader lists order timestamps for business-day order counts.
type OrderReader interface {
	// OrderTimesInWindow returns sold_at of orders with start <= sold_at < end.
	OrderTimesInWindow(ctx context.Context, start, end time.Time) ([]time.Time, error)
}
