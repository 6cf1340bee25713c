// Package ledger rebuilds FIFO cost allocations for a date range.
package ledger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/erp/profitledger/internal/infrastructure/lock"
	"github.com/erp/profitledger/internal/infrastructure/logger"
	"github.com/erp/profitledger/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RebuildResult summarizes one rebuild.
type RebuildResult struct {
	DateFrom     string `json:"date_from"`
	DateTo       string `json:"date_to"`
	SaleLines    int    `json:"sale_lines"`
	Deleted      int64  `json:"deleted"`
	Recomputed   int    `json:"recomputed"`
	Deficits     int    `json:"deficits"`
	DeficitUnits int64  `json:"deficit_units"`
}

// Service recomputes the allocation ledger.
type Service struct {
	uow     ledger.UnitOfWork
	locker  lock.RangeLocker
	metrics *telemetry.LedgerMetrics
	logger  *zap.Logger
}

// NewService creates a ledger service. metrics may be nil.
func NewService(uow ledger.UnitOfWork, locker lock.RangeLocker, metrics *telemetry.LedgerMetrics, logger *zap.Logger) *Service {
	return &Service{
		uow:     uow,
		locker:  locker,
		metrics: metrics,
		logger:  logger,
	}
}

// Rebuild deletes and recomputes the allocations of every sale line whose
// stored sale date lies in [from, to]. The delete and the reinsert commit
// together; on error the previous allocations are left untouched.
//
// Stock already held by allocations outside the range is not handed out
// again, so a narrow rebuild never pushes a batch past its intake quantity.
// Overlapping rebuilds are rejected with shared.ErrRangeLocked.
func (s *Service) Rebuild(ctx context.Context, from, to time.Time) (RebuildResult, error) {
	r, err := ledger.NewDateRange(from, to)
	if err != nil {
		return RebuildResult{}, err
	}
	if r.Days() > ledger.MaxRebuildDays {
		return RebuildResult{}, shared.InvalidArgumentError(
			"rebuild of %s covers %d days, at most %d per call", r, r.Days(), ledger.MaxRebuildDays)
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "rebuild",
		telemetry.WithAttribute(telemetry.SpanAttrDateFrom, r.From.Format(time.DateOnly)),
		telemetry.WithAttribute(telemetry.SpanAttrDateTo, r.To.Format(time.DateOnly)),
	)
	defer span.End()

	log := logger.FromContextOr(ctx, s.logger).With(zap.Stringer("range", r))
	started := time.Now()

	release, err := s.locker.Lock(ctx, r)
	if err != nil {
		outcome := telemetry.OutcomeFailed
		if errors.Is(err, shared.ErrRangeLocked) {
			outcome = telemetry.OutcomeLocked
			log.Warn("Ledger rebuild rejected, range is locked", zap.Error(err))
		}
		s.metrics.RecordRebuild(ctx, outcome, time.Since(started), 0, 0)
		telemetry.RecordError(span, err)
		return RebuildResult{}, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("Failed to release rebuild lock", zap.Error(err))
		}
	}()

	result := RebuildResult{
		DateFrom: r.From.Format(time.DateOnly),
		DateTo:   r.To.Format(time.DateOnly),
	}
	err = s.uow.WithTx(ctx, func(ctx context.Context, tx ledger.TxStore) error {
		lines, err := tx.SaleLinesInRange(ctx, r)
		if err != nil {
			return err
		}
		result.SaleLines = len(lines)

		ids := make([]int64, len(lines))
		for i, l := range lines {
			ids[i] = l.SaleItemID
		}
		if result.Deleted, err = tx.DeleteAllocations(ctx, ids); err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}

		skus := distinctSKUs(lines)
		batches, err := tx.BatchesForSKUs(ctx, skus)
		if err != nil {
			return err
		}
		held, err := tx.AllocatedByBatch(ctx, skus)
		if err != nil {
			return err
		}

		allocations, err := ledger.Allocate(lines, availableStock(batches, held))
		if err != nil {
			return err
		}
		for _, a := range allocations {
			if a.IsDeficit() {
				result.Deficits++
				result.DeficitUnits += a.Quantity
			}
		}
		result.Recomputed = len(allocations)
		return tx.InsertAllocations(ctx, allocations)
	})
	if err != nil {
		s.metrics.RecordRebuild(ctx, telemetry.OutcomeFailed, time.Since(started), 0, 0)
		telemetry.RecordError(span, err)
		log.Error("Ledger rebuild failed", zap.Error(err))
		return RebuildResult{}, err
	}

	s.metrics.RecordRebuild(ctx, telemetry.OutcomeSuccess, time.Since(started),
		int64(result.Recomputed), result.DeficitUnits)
	telemetry.SetAttributes(span,
		telemetry.SpanAttrSaleLines, result.SaleLines,
		telemetry.SpanAttrRecomputed, result.Recomputed,
		telemetry.SpanAttrDeficits, result.Deficits,
	)
	telemetry.SetOK(span)

	fields := []zap.Field{
		zap.Int("sale_lines", result.SaleLines),
		zap.Int64("deleted", result.Deleted),
		zap.Int("recomputed", result.Recomputed),
		zap.Duration("elapsed", time.Since(started)),
	}
	if result.Deficits > 0 {
		log.Warn("Ledger rebuilt with stock deficits",
			append(fields, zap.Int("deficits", result.Deficits), zap.Int64("deficit_units", result.DeficitUnits))...)
	} else {
		log.Info("Ledger rebuilt", fields...)
	}
	return result, nil
}

func distinctSKUs(lines []ledger.SaleLine) []string {
	skus := make([]string, 0, len(lines))
	for _, l := range lines {
		skus = append(skus, l.SKU)
	}
	slices.Sort(skus)
	return slices.Compact(skus)
}

// availableStock reduces each batch's quantity by what other allocations
// already hold against it. Exhausted batches stay in place with zero stock.
func availableStock(batches map[string][]ledger.Batch, held map[int64]int64) map[string][]ledger.Batch {
	if len(held) == 0 {
		return batches
	}
	out := make(map[string][]ledger.Batch, len(batches))
	for sku, list := range batches {
		adjusted := make([]ledger.Batch, len(list))
		for i, b := range list {
			b.QuantityIn = max(b.QuantityIn-held[b.ID], 0)
			adjusted[i] = b
		}
		out[sku] = adjusted
	}
	return out
}
