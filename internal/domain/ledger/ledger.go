// Package ledger holds the cost-lot ledger model: batches received into stock,
// sale lines that consume them and the allocation records linking the two.
package ledger

import (
	"fmt"
	"time"

	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Batch is a dated inventory lot. Per SKU, batches are consumed in
// (IntakeDate, ID) ascending order.
type Batch struct {
	ID         int64
	SKU        string
	IntakeDate time.Time
	QuantityIn int64
	UnitCost   decimal.Decimal
	Note       string
	CreatedAt  time.Time
}

// Before reports whether b precedes other in FIFO order.
func (b Batch) Before(other Batch) bool {
	if !b.IntakeDate.Equal(other.IntakeDate) {
		return b.IntakeDate.Before(other.IntakeDate)
	}
	return b.ID < other.ID
}

// SaleLine is one line item of an ingested order.
type SaleLine struct {
	SaleItemID    int64
	OrderID       string
	SKU           string
	Quantity      int64
	UnitPrice     decimal.Decimal
	CommissionPct decimal.NullDecimal
	SaleTimestamp time.Time
}

// SaleDate returns the stored calendar date of the sale (UTC).
func (l SaleLine) SaleDate() time.Time {
	return businessday.TruncateDate(l.SaleTimestamp.UTC())
}

// Before reports whether l is consumed before other: (SaleTimestamp, SaleItemID) ascending.
func (l SaleLine) Before(other SaleLine) bool {
	if !l.SaleTimestamp.Equal(other.SaleTimestamp) {
		return l.SaleTimestamp.Before(other.SaleTimestamp)
	}
	return l.SaleItemID < other.SaleItemID
}

// Revenue is quantity times unit price.
func (l SaleLine) Revenue() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(l.Quantity))
}

// Allocation links part of a sale line's quantity to the batch that funded it.
// A nil BatchID marks a deficit: no dated stock was available, so UnitCost is null.
type Allocation struct {
	ID         int64
	SaleItemID int64
	BatchID    *int64
	SKU        string
	Quantity   int64
	UnitCost   decimal.NullDecimal
}

// IsDeficit reports whether the allocation records missing stock.
func (a Allocation) IsDeficit() bool {
	return a.BatchID == nil
}

// Cost is quantity times unit cost, with a null unit cost counted as zero.
func (a Allocation) Cost() decimal.Decimal {
	if !a.UnitCost.Valid {
		return decimal.Zero
	}
	return a.UnitCost.Decimal.Mul(decimal.NewFromInt(a.Quantity))
}

// MaxRebuildDays bounds the range of one rebuild. Longer backfills run as
// consecutive rebuilds.
const MaxRebuildDays = 366

// DateRange is an inclusive calendar date range.
type DateRange struct {
	From time.Time
	To   time.Time
}

// NewDateRange validates from <= to and normalises both to calendar dates.
func NewDateRange(from, to time.Time) (DateRange, error) {
	r := DateRange{From: businessday.TruncateDate(from), To: businessday.TruncateDate(to)}
	if r.From.After(r.To) {
		return DateRange{}, shared.NewDomainError(shared.CodeInvalidRange,
			fmt.Sprintf("date_from %s is after date_to %s",
				r.From.Format(businessday.DateLayout), r.To.Format(businessday.DateLayout)))
	}
	return r, nil
}

// ParseDateRange parses two YYYY-MM-DD strings into a DateRange.
func ParseDateRange(from, to string) (DateRange, error) {
	f, err := businessday.ParseDate(from)
	if err != nil {
		return DateRange{}, err
	}
	t, err := businessday.ParseDate(to)
	if err != nil {
		return DateRange{}, err
	}
	return NewDateRange(f, t)
}

// Contains reports whether the calendar date of d lies within the range.
func (r DateRange) Contains(d time.Time) bool {
	day := businessday.TruncateDate(d)
	return !day.Before(r.From) && !day.After(r.To)
}

// Days returns the number of calendar days in the range.
func (r DateRange) Days() int {
	return int(r.To.Sub(r.From)/(24*time.Hour)) + 1
}

// Overlaps reports whether two ranges share at least one day.
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.From.After(other.To) && !other.From.After(r.To)
}

// UTCBounds returns the half-open instant window [From 00:00 UTC, To+1 00:00 UTC).
func (r DateRange) UTCBounds() (time.Time, time.Time) {
	return r.From, r.To.AddDate(0, 0, 1)
}

// String formats the range as "from..to".
func (r DateRange) String() string {
	return r.From.Format(businessday.DateLayout) + ".." + r.To.Format(businessday.DateLayout)
}
