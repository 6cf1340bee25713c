package report

import (
	"sort"

	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimal places monetary figures are rounded to on output.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Category carries the marketplace commission components of a product category, in percent.
type Category struct {
	Name         string          `json:"name"`
	BasePercent  decimal.Decimal `json:"base_percent"`
	ExtraPercent decimal.Decimal `json:"extra_percent"`
	TaxPercent   decimal.Decimal `json:"tax_percent"`
}

// CommissionPct is base + extra + tax.
func (c Category) CommissionPct() decimal.Decimal {
	return c.BasePercent.Add(c.ExtraPercent).Add(c.TaxPercent)
}

// CommissionTable resolves the commission percent of a sale line.
type CommissionTable struct {
	categories  map[string]Category
	skuCategory map[string]string
}

// NewCommissionTable builds a table from category definitions and a SKU to category mapping.
func NewCommissionTable(categories []Category, skuCategory map[string]string) CommissionTable {
	byName := make(map[string]Category, len(categories))
	for _, c := range categories {
		byName[c.Name] = c
	}
	return CommissionTable{categories: byName, skuCategory: skuCategory}
}

// PctFor returns the line's own commission percent when set, else its category's.
// The second result is false when the SKU has no known category and 0 was used.
func (t CommissionTable) PctFor(line ledger.SaleLine) (decimal.Decimal, bool) {
	if line.CommissionPct.Valid {
		return line.CommissionPct.Decimal, true
	}
	name, ok := t.skuCategory[line.SKU]
	if !ok || name == "" {
		return decimal.Zero, false
	}
	cat, ok := t.categories[name]
	if !ok {
		return decimal.Zero, false
	}
	return cat.CommissionPct(), true
}

// Figures accumulates unrounded revenue, commission and cost.
type Figures struct {
	Revenue    decimal.Decimal
	Commission decimal.Decimal
	Cost       decimal.Decimal
}

// LineFigures computes the figures of one sale line. A line without
// allocations has not been rebuilt yet and costs zero.
func LineFigures(line ledger.SaleLine, allocations []ledger.Allocation, commissionPct decimal.Decimal) Figures {
	revenue := line.Revenue()
	cost := decimal.Zero
	for _, a := range allocations {
		cost = cost.Add(a.Cost())
	}
	return Figures{
		Revenue:    revenue,
		Commission: revenue.Mul(commissionPct).Div(hundred),
		Cost:       cost,
	}
}

// Add returns f + o.
func (f Figures) Add(o Figures) Figures {
	return Figures{
		Revenue:    f.Revenue.Add(o.Revenue),
		Commission: f.Commission.Add(o.Commission),
		Cost:       f.Cost.Add(o.Cost),
	}
}

// Profit is revenue - commission - cost.
func (f Figures) Profit() decimal.Decimal {
	return f.Revenue.Sub(f.Commission).Sub(f.Cost)
}

// Amounts rounds the figures for output. Profit is derived from the unrounded values.
func (f Figures) Amounts() Amounts {
	return Amounts{
		Revenue:    f.Revenue.Round(MoneyPlaces),
		Commission: f.Commission.Round(MoneyPlaces),
		Cost:       f.Cost.Round(MoneyPlaces),
		Profit:     f.Profit().Round(MoneyPlaces),
	}
}

// Amounts is the rounded, caller-facing form of Figures.
type Amounts struct {
	Revenue    decimal.Decimal `json:"revenue"`
	Commission decimal.Decimal `json:"commission"`
	Cost       decimal.Decimal `json:"cost"`
	Profit     decimal.Decimal `json:"profit"`
}

// PeriodRow is one bucket of a profit summary.
type PeriodRow struct {
	Period string `json:"period"`
	Amounts
}

// ProfitSummary is the result of a period-bucketed profit query.
type ProfitSummary struct {
	GroupBy GroupBy     `json:"group_by"`
	Rows    []PeriodRow `json:"rows"`
	Total   Amounts     `json:"total"`
	// UncategorizedSKUs lists SKUs whose commission fell back to zero.
	UncategorizedSKUs []string `json:"uncategorized_skus,omitempty"`
}

// SKURow is one SKU's accumulated figures.
type SKURow struct {
	SKU string `json:"sku"`
	Amounts
}

// Accumulator sums Figures per key.
type Accumulator struct {
	byKey map[string]Figures
	total Figures
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{byKey: make(map[string]Figures)}
}

// Add adds f under key and into the grand total.
func (a *Accumulator) Add(key string, f Figures) {
	a.byKey[key] = a.byKey[key].Add(f)
	a.total = a.total.Add(f)
}

// Total returns the unrounded grand total.
func (a *Accumulator) Total() Figures {
	return a.total
}

// Periods returns one row per key, sorted ascending by key.
func (a *Accumulator) Periods() []PeriodRow {
	keys := make([]string, 0, len(a.byKey))
	for k := range a.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]PeriodRow, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, PeriodRow{Period: k, Amounts: a.byKey[k].Amounts()})
	}
	return rows
}

// TopByProfit returns up to limit rows ranked by unrounded profit descending,
// ties broken by key ascending. limit <= 0 returns every row.
func (a *Accumulator) TopByProfit(limit int) []SKURow {
	type ranked struct {
		key    string
		f      Figures
		profit decimal.Decimal
	}
	all := make([]ranked, 0, len(a.byKey))
	for k, f := range a.byKey {
		all = append(all, ranked{key: k, f: f, profit: f.Profit()})
	}
	sort.Slice(all, func(i, j int) bool {
		if c := all[i].profit.Cmp(all[j].profit); c != 0 {
			return c > 0
		}
		return all[i].key < all[j].key
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	rows := make([]SKURow, 0, len(all))
	for _, r := range all {
		rows = append(rows, SKURow{SKU: r.key, Amounts: r.f.Amounts()})
	}
	return rows
}

// DeficitRow reports deficit allocations for one SKU.
type DeficitRow struct {
	SKU         string `json:"sku"`
	Allocations int    `json:"allocations"`
	SaleLines   int    `json:"sale_lines"`
	Quantity    int64  `json:"quantity"`
}

// DeficitReport is the per-SKU view of uncovered quantity in a range.
type DeficitReport struct {
	Rows             []DeficitRow `json:"rows"`
	TotalAllocations int          `json:"total_allocations"`
	TotalQuantity    int64        `json:"total_quantity"`
}

// DayCount is the number of orders of one business day.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// OrderCountReport counts orders per business day. Every day of the range has a
// row, days without orders included.
type OrderCountReport struct {
	BusinessDayStart string     `json:"business_day_start"`
	Timezone         string     `json:"timezone"`
	Rows             []DayCount `json:"rows"`
	Total            int        `json:"total"`
}

// StockRow is the remaining quantity of one SKU according to the ledger.
type StockRow struct {
	SKU        string `json:"sku"`
	QuantityIn int64  `json:"quantity_in"`
	Allocated  int64  `json:"allocated"`
	Remaining  int64  `json:"remaining"`
	Batches    int    `json:"batches"`
}
