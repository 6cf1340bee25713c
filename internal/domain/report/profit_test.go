package report

import (
	"errors"
	"testing"
	"time"

	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseGroupBy(t *testing.T) {
	tests := []struct {
		input   string
		want    GroupBy
		wantErr bool
	}{
		{input: "", want: GroupByDay},
		{input: "day", want: GroupByDay},
		{input: "WEEK", want: GroupByWeek},
		{input: " month ", want: GroupByMonth},
		{input: "total", want: GroupByTotal},
		{input: "year", wantErr: true},
		{input: "hour", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseGroupBy(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, shared.ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroupBy_Key(t *testing.T) {
	d := businessday.Date(2024, 1, 6)
	assert.Equal(t, "2024-01-06", GroupByDay.Key(d))
	assert.Equal(t, "2024-W01", GroupByWeek.Key(d))
	assert.Equal(t, "2024-01", GroupByMonth.Key(d))
	assert.Equal(t, "total", GroupByTotal.Key(d))

	// ISO week of 2021-01-01 belongs to 2020.
	assert.Equal(t, "2020-W53", GroupByWeek.Key(businessday.Date(2021, 1, 1)))
}

func TestCommissionTable_PctFor(t *testing.T) {
	table := NewCommissionTable(
		[]Category{{Name: "phones", BasePercent: dec("8"), ExtraPercent: dec("1.5"), TaxPercent: dec("0.5")}},
		map[string]string{"P1": "phones", "P2": "", "P3": "missing"},
	)

	t.Run("line override wins", func(t *testing.T) {
		pct, ok := table.PctFor(ledger.SaleLine{SKU: "P1", CommissionPct: decimal.NewNullDecimal(dec("12"))})
		assert.True(t, ok)
		assert.True(t, pct.Equal(dec("12")))
	})

	t.Run("category sum", func(t *testing.T) {
		pct, ok := table.PctFor(ledger.SaleLine{SKU: "P1"})
		assert.True(t, ok)
		assert.True(t, pct.Equal(dec("10")))
	})

	t.Run("zero override is still an override", func(t *testing.T) {
		pct, ok := table.PctFor(ledger.SaleLine{SKU: "P1", CommissionPct: decimal.NewNullDecimal(decimal.Zero)})
		assert.True(t, ok)
		assert.True(t, pct.IsZero())
	})

	for _, sku := range []string{"P2", "P3", "unknown"} {
		t.Run("uncategorized "+sku, func(t *testing.T) {
			pct, ok := table.PctFor(ledger.SaleLine{SKU: sku})
			assert.False(t, ok)
			assert.True(t, pct.IsZero())
		})
	}
}

func TestLineFigures(t *testing.T) {
	id := int64(1)
	line := ledger.SaleLine{SaleItemID: 1, SKU: "B", Quantity: 2, UnitPrice: dec("100"), SaleTimestamp: time.Now()}

	t.Run("deficit only", func(t *testing.T) {
		f := LineFigures(line, []ledger.Allocation{{SaleItemID: 1, Quantity: 2}}, dec("10"))
		a := f.Amounts()
		assert.True(t, a.Revenue.Equal(dec("200")))
		assert.True(t, a.Commission.Equal(dec("20")))
		assert.True(t, a.Cost.IsZero())
		assert.True(t, a.Profit.Equal(dec("180")))
	})

	t.Run("not yet allocated", func(t *testing.T) {
		f := LineFigures(line, nil, decimal.Zero)
		assert.True(t, f.Cost.IsZero())
		assert.True(t, f.Profit().Equal(dec("200")))
	})

	t.Run("mixed allocations", func(t *testing.T) {
		allocs := []ledger.Allocation{
			{BatchID: &id, Quantity: 1, UnitCost: decimal.NewNullDecimal(dec("30.5"))},
			{Quantity: 1},
		}
		f := LineFigures(line, allocs, decimal.Zero)
		assert.True(t, f.Cost.Equal(dec("30.5")))
	})
}

func TestFigures_RoundingAtOutputOnly(t *testing.T) {
	third := Figures{Revenue: dec("0.004"), Commission: decimal.Zero, Cost: decimal.Zero}
	acc := NewAccumulator()
	acc.Add("k", third)
	acc.Add("k", third)
	acc.Add("k", third)

	// three unrounded 0.004s give 0.012 -> 0.01; rounding each first would give 0.00
	assert.True(t, acc.Total().Amounts().Revenue.Equal(dec("0.01")))
}

func TestAccumulator_Periods(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("2024-01-07", Figures{Revenue: dec("10")})
	acc.Add("2024-01-05", Figures{Revenue: dec("5"), Cost: dec("1")})
	acc.Add("2024-01-07", Figures{Revenue: dec("2"), Commission: dec("0.5")})

	rows := acc.Periods()
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-01-05", rows[0].Period)
	assert.Equal(t, "2024-01-07", rows[1].Period)
	assert.True(t, rows[1].Revenue.Equal(dec("12")))
	assert.True(t, rows[1].Profit.Equal(dec("11.5")))
	assert.True(t, acc.Total().Profit().Equal(dec("15.5")))
}

func TestAccumulator_TopByProfit(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("C", Figures{Revenue: dec("50")})
	acc.Add("A", Figures{Revenue: dec("50")})
	acc.Add("B", Figures{Revenue: dec("80")})
	acc.Add("D", Figures{Revenue: dec("10"), Cost: dec("40")})

	rows := acc.TopByProfit(0)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"B", "A", "C", "D"}, []string{rows[0].SKU, rows[1].SKU, rows[2].SKU, rows[3].SKU})
	assert.True(t, rows[3].Profit.Equal(dec("-30")))

	top := acc.TopByProfit(2)
	require.Len(t, top, 2)
	assert.Equal(t, "B", top[0].SKU)
	assert.Equal(t, "A", top[1].SKU)
}

func TestEmptyAccumulatorTotalsAreZero(t *testing.T) {
	acc := NewAccumulator()
	total := acc.Total().Amounts()
	assert.True(t, total.Revenue.IsZero())
	assert.True(t, total.Profit.IsZero())
	assert.Empty(t, acc.Periods())
	assert.Empty(t, acc.TopByProfit(5))
}
