package ledger

import (
	"slices"
	"sort"
	"time"

	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// batchCursor tracks how much of a batch is still unconsumed within one pass.
type batchCursor struct {
	batch     Batch
	remaining int64
}

// Allocate consumes batches against sale lines in FIFO order.
//
// Lines are processed by (SaleTimestamp, SaleItemID). For each line the first
// batch of its SKU with stock left and an intake date on or before the sale
// date is drawn down until the line is covered. Whatever cannot be covered is
// recorded as a single deficit allocation. Inputs are not modified.
func Allocate(lines []SaleLine, batches map[string][]Batch) ([]Allocation, error) {
	ordered := slices.Clone(lines)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Before(ordered[j])
	})

	cursors := make(map[string][]*batchCursor, len(batches))
	for sku, list := range batches {
		sorted := slices.Clone(list)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Before(sorted[j])
		})
		cs := make([]*batchCursor, 0, len(sorted))
		for _, b := range sorted {
			cs = append(cs, &batchCursor{batch: b, remaining: b.QuantityIn})
		}
		cursors[sku] = cs
	}

	out := make([]Allocation, 0, len(ordered))
	for _, line := range ordered {
		if line.Quantity <= 0 {
			return nil, shared.InvalidQuantityError(line.SaleItemID, line.Quantity)
		}
		saleDate := line.SaleDate()
		need := line.Quantity
		queue := cursors[line.SKU]

		for need > 0 {
			c := firstEligible(queue, saleDate)
			if c == nil {
				out = append(out, Allocation{
					SaleItemID: line.SaleItemID,
					SKU:        line.SKU,
					Quantity:   need,
				})
				break
			}
			take := min(need, c.remaining)
			c.remaining -= take
			need -= take

			batchID := c.batch.ID
			out = append(out, Allocation{
				SaleItemID: line.SaleItemID,
				BatchID:    &batchID,
				SKU:        line.SKU,
				Quantity:   take,
				UnitCost:   decimal.NewNullDecimal(c.batch.UnitCost),
			})
		}
	}
	return out, nil
}

// firstEligible returns the earliest cursor with stock left that was received
// no later than saleDate. Batches dated on the sale date itself are eligible.
func firstEligible(queue []*batchCursor, saleDate time.Time) *batchCursor {
	for _, c := range queue {
		if c.remaining > 0 && !saleDate.Before(businessday.TruncateDate(c.batch.IntakeDate)) {
			return c
		}
	}
	return nil
}
