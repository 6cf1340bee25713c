// Package report aggregates ledger data into profit, deficit and stock reports.
package report

import (
	"context"
	"slices"
	"sort"

	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/domain/report"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/erp/profitledger/internal/infrastructure/logger"
	"github.com/erp/profitledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// BySKU limits.
const (
	DefaultSKULimit = 20
	MaxSKULimit     = 200
)

// Store is the read side the reports need.
type Store interface {
	ledger.BatchReader
	ledger.SaleLineReader
	ledger.AllocationReader
	report.CatalogReader
	report.OrderReader
}

// Service computes read-only reports. It may run concurrently with rebuilds;
// lines whose allocations are being rewritten are read as not yet allocated.
type Service struct {
	store    Store
	policy   businessday.Policy
	dayStart string
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithConfiguredDayStart records the configured business-day start. It is
// used by use_bd=true when the default policy runs on calendar days.
func WithConfiguredDayStart(hhmm string) Option {
	return func(s *Service) {
		s.dayStart = hhmm
	}
}

// NewService creates a report service bucketing by policy unless a query overrides it.
func NewService(store Store, policy businessday.Policy, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		policy:   policy,
		dayStart: policy.DayStart(),
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the default business-day policy.
func (s *Service) Policy() businessday.Policy {
	return s.policy
}

// PolicyOverride holds per-request changes to the default policy.
type PolicyOverride struct {
	// UseBusinessDay nil keeps the default, true uses the configured start,
	// false uses plain calendar days.
	UseBusinessDay *bool
	// DayStart replaces the start when non-empty and business days are in use.
	DayStart string
	// Timezone replaces the configured timezone when non-empty.
	Timezone string
}

// PolicyFor derives the policy of one request.
func (s *Service) PolicyFor(o PolicyOverride) (businessday.Policy, error) {
	if o.UseBusinessDay == nil && o.DayStart == "" && o.Timezone == "" {
		return s.policy, nil
	}

	start := s.policy.DayStart()
	if o.UseBusinessDay != nil && *o.UseBusinessDay {
		start = s.dayStart
	}
	if o.DayStart != "" {
		if _, err := businessday.ParseOffset(o.DayStart); err != nil {
			return businessday.Policy{}, shared.InvalidArgumentError("invalid bd_start %q: expected HH:MM", o.DayStart)
		}
		start = o.DayStart
	}
	if o.UseBusinessDay != nil && !*o.UseBusinessDay {
		start = "00:00"
	}

	tz := s.policy.Location().String()
	if o.Timezone != "" {
		tz = o.Timezone
	}
	p, err := businessday.NewPolicy(tz, start)
	if err != nil {
		return businessday.Policy{}, shared.InvalidArgumentError("invalid tz %q: expected an IANA zone name", o.Timezone)
	}
	return p, nil
}

// SummaryQuery selects a profit summary.
type SummaryQuery struct {
	Range   ledger.DateRange
	GroupBy report.GroupBy
	// Policy overrides the service policy when set.
	Policy *businessday.Policy
}

// Summarize buckets revenue, commission, cost and profit of the sale lines
// stored in q.Range by business day. A line sold late in the evening UTC may
// land in the next day's bucket, one sold early may land in the previous one.
// An empty range yields no rows and an all-zero total.
func (s *Service) Summarize(ctx context.Context, q SummaryQuery) (report.ProfitSummary, error) {
	groupBy, err := report.ParseGroupBy(string(q.GroupBy))
	if err != nil {
		return report.ProfitSummary{}, err
	}
	policy := s.policy
	if q.Policy != nil {
		policy = *q.Policy
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "report", "summarize",
		telemetry.WithAttribute(telemetry.SpanAttrGroupBy, string(groupBy)),
		telemetry.WithAttribute(telemetry.SpanAttrDateFrom, q.Range.From.Format(businessday.DateLayout)),
		telemetry.WithAttribute(telemetry.SpanAttrDateTo, q.Range.To.Format(businessday.DateLayout)),
	)
	defer span.End()

	data, err := s.load(ctx, q.Range)
	if err != nil {
		telemetry.RecordError(span, err)
		return report.ProfitSummary{}, err
	}

	acc := report.NewAccumulator()
	for _, line := range data.lines {
		key := groupBy.Key(policy.BucketDate(line.SaleTimestamp))
		acc.Add(key, data.figures(line))
	}

	s.warnUncategorized(ctx, "summarize", data.uncategorized)
	return report.ProfitSummary{
		GroupBy:           groupBy,
		Rows:              acc.Periods(),
		Total:             acc.Total().Amounts(),
		UncategorizedSKUs: data.uncategorizedSKUs(),
	}, nil
}

// OrderCounts counts orders per business day of r. Unlike the profit reports
// it selects by the business-day window, so every row key lies in r. A nil
// policy uses the service default.
func (s *Service) OrderCounts(ctx context.Context, r ledger.DateRange, policy *businessday.Policy) (report.OrderCountReport, error) {
	if r.Days() > ledger.MaxRebuildDays {
		return report.OrderCountReport{}, shared.InvalidArgumentError(
			"order counts cover at most %d days, got %d", ledger.MaxRebuildDays, r.Days())
	}
	p := s.policy
	if policy != nil {
		p = *policy
	}

	start, end := p.WindowToUTC(r.From, r.To)
	times, err := s.store.OrderTimesInWindow(ctx, start, end)
	if err != nil {
		return report.OrderCountReport{}, err
	}

	counts := make(map[string]int, r.Days())
	for _, at := range times {
		counts[p.BucketDate(at).Format(businessday.DateLayout)]++
	}
	out := report.OrderCountReport{
		BusinessDayStart: p.DayStart(),
		Timezone:         p.Location().String(),
		Rows:             make([]report.DayCount, 0, r.Days()),
		Total:            len(times),
	}
	for day := r.From; !day.After(r.To); day = day.AddDate(0, 0, 1) {
		key := day.Format(businessday.DateLayout)
		out.Rows = append(out.Rows, report.DayCount{Day: key, Count: counts[key]})
	}
	return out, nil
}

// BySKU ranks SKUs in r by profit, highest first, ties by SKU.
func (s *Service) BySKU(ctx context.Context, r ledger.DateRange, limit int) ([]report.SKURow, error) {
	if limit < 1 || limit > MaxSKULimit {
		return nil, shared.InvalidArgumentError("limit must be between 1 and %d, got %d", MaxSKULimit, limit)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "report", "by_sku")
	defer span.End()

	data, err := s.load(ctx, r)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	acc := report.NewAccumulator()
	for _, line := range data.lines {
		acc.Add(line.SKU, data.figures(line))
	}
	s.warnUncategorized(ctx, "by_sku", data.uncategorized)
	return acc.TopByProfit(limit), nil
}

// Deficits reports, per SKU, the deficit allocations of sale lines in r.
func (s *Service) Deficits(ctx context.Context, r ledger.DateRange) (report.DeficitReport, error) {
	lines, err := s.store.SaleLinesInRange(ctx, r)
	if err != nil {
		return report.DeficitReport{}, err
	}
	allocations, err := s.store.AllocationsForSaleItems(ctx, saleItemIDs(lines))
	if err != nil {
		return report.DeficitReport{}, err
	}

	bySKU := make(map[string]*report.DeficitRow)
	out := report.DeficitReport{Rows: []report.DeficitRow{}}
	for _, line := range lines {
		counted := false
		for _, a := range allocations[line.SaleItemID] {
			if !a.IsDeficit() {
				continue
			}
			row, ok := bySKU[line.SKU]
			if !ok {
				row = &report.DeficitRow{SKU: line.SKU}
				bySKU[line.SKU] = row
			}
			row.Allocations++
			row.Quantity += a.Quantity
			if !counted {
				row.SaleLines++
				counted = true
			}
			out.TotalAllocations++
			out.TotalQuantity += a.Quantity
		}
	}

	for _, row := range bySKU {
		out.Rows = append(out.Rows, *row)
	}
	sort.Slice(out.Rows, func(i, j int) bool {
		if out.Rows[i].Quantity != out.Rows[j].Quantity {
			return out.Rows[i].Quantity > out.Rows[j].Quantity
		}
		return out.Rows[i].SKU < out.Rows[j].SKU
	})
	return out, nil
}

// Stock reports intake, allocated and remaining quantity per SKU as of the
// last rebuild. An empty skus covers every SKU with batches.
func (s *Service) Stock(ctx context.Context, skus []string) ([]report.StockRow, error) {
	batches, err := s.store.BatchesForSKUs(ctx, skus)
	if err != nil {
		return nil, err
	}
	allocated, err := s.store.AllocatedByBatch(ctx, skus)
	if err != nil {
		return nil, err
	}

	rows := make([]report.StockRow, 0, len(batches))
	for sku, list := range batches {
		row := report.StockRow{SKU: sku, Batches: len(list)}
		for _, b := range list {
			row.QuantityIn += b.QuantityIn
			row.Allocated += allocated[b.ID]
		}
		row.Remaining = row.QuantityIn - row.Allocated
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SKU < rows[j].SKU })
	return rows, nil
}

// lineData is everything needed to compute per-line figures for a range.
type lineData struct {
	lines         []ledger.SaleLine
	allocations   map[int64][]ledger.Allocation
	commission    report.CommissionTable
	uncategorized map[string]struct{}
}

func (d *lineData) figures(line ledger.SaleLine) report.Figures {
	pct, ok := d.commission.PctFor(line)
	if !ok {
		d.uncategorized[line.SKU] = struct{}{}
	}
	return report.LineFigures(line, d.allocations[line.SaleItemID], pct)
}

func (d *lineData) uncategorizedSKUs() []string {
	if len(d.uncategorized) == 0 {
		return nil
	}
	skus := make([]string, 0, len(d.uncategorized))
	for sku := range d.uncategorized {
		skus = append(skus, sku)
	}
	slices.Sort(skus)
	return skus
}

// load selects lines the same way Rebuild does, by stored UTC sale date, so a
// report over a rebuilt range covers exactly the lines that were costed.
func (s *Service) load(ctx context.Context, r ledger.DateRange) (*lineData, error) {
	lines, err := s.store.SaleLinesInRange(ctx, r)
	if err != nil {
		return nil, err
	}
	allocations, err := s.store.AllocationsForSaleItems(ctx, saleItemIDs(lines))
	if err != nil {
		return nil, err
	}
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	skuCategory, err := s.store.SKUCategories(ctx, distinctSKUs(lines))
	if err != nil {
		return nil, err
	}
	return &lineData{
		lines:         lines,
		allocations:   allocations,
		commission:    report.NewCommissionTable(categories, skuCategory),
		uncategorized: make(map[string]struct{}),
	}, nil
}

func (s *Service) warnUncategorized(ctx context.Context, op string, skus map[string]struct{}) {
	if len(skus) == 0 {
		return
	}
	list := make([]string, 0, len(skus))
	for sku := range skus {
		list = append(list, sku)
	}
	slices.Sort(list)
	logger.FromContextOr(ctx, s.logger).Warn("SKUs without category counted with zero commission",
		zap.String("operation", op),
		zap.Strings("skus", list),
	)
}

func saleItemIDs(lines []ledger.SaleLine) []int64 {
	ids := make([]int64, len(lines))
	for i, l := range lines {
		ids[i] = l.SaleItemID
	}
	return ids
}

func distinctSKUs(lines []ledger.SaleLine) []string {
	skus := make([]string, 0, len(lines))
	for _, l := range lines {
		skus = append(skus, l.SKU)
	}
	slices.Sort(skus)
	return slices.Compact(skus)
}
