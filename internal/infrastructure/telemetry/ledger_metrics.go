package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics constructor gets no meter.
var ErrMeterNil = errors.New("meter cannot be nil")

// Rebuild outcomes recorded under the "outcome" attribute.
const (
	OutcomeSuccess = "success"
	OutcomeLocked  = "locked"
	OutcomeFailed  = "failed"
)

// LedgerMetrics records ledger rebuild activity.
type LedgerMetrics struct {
	rebuildsTotal    *Counter
	rebuildDuration  *Histogram
	allocationsTotal *Counter
	deficitsTotal    *Counter
}

// NewLedgerMetrics registers the ledger instruments on meter.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   LedgerMetrics
		err error
	)
	if m.rebuildsTotal, err = NewCounter(meter, "ledger_rebuilds_total",
		"Ledger rebuild attempts by outcome", "{rebuild}"); err != nil {
		return nil, err
	}
	if m.rebuildDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "ledger_rebuild_duration_seconds",
		Description: "Duration of ledger rebuilds",
		Unit:        "s",
		Boundaries:  RebuildDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.allocationsTotal, err = NewCounter(meter, "ledger_allocations_written_total",
		"Allocation rows written by rebuilds", "{allocation}"); err != nil {
		return nil, err
	}
	if m.deficitsTotal, err = NewCounter(meter, "ledger_deficit_units_total",
		"Units allocated with no batch available", "{unit}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordRebuild records one rebuild attempt. allocations and deficitUnits are
// only counted for successful rebuilds.
func (m *LedgerMetrics) RecordRebuild(ctx context.Context, outcome string, d time.Duration, allocations, deficitUnits int64) {
	if m == nil {
		return
	}
	m.rebuildsTotal.Inc(ctx, AttrOutcome.String(outcome))
	m.rebuildDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
	if outcome != OutcomeSuccess {
		return
	}
	if allocations > 0 {
		m.allocationsTotal.Add(ctx, allocations)
	}
	if deficitUnits > 0 {
		m.deficitsTotal.Add(ctx, deficitUnits)
	}
}
