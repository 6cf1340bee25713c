// Package ingest records sale orders and cost batches.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/erp/profitledger/internal/domain/businessday"
	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/domain/shared"
	"github.com/erp/profitledger/internal/infrastructure/logger"
	"github.com/erp/profitledger/internal/infrastructure/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MaxOrdersPerRequest bounds one bulk upsert.
const MaxOrdersPerRequest = 1000

// ItemInput is one order line as submitted.
type ItemInput struct {
	SKU           string           `json:"sku" validate:"required,max=128"`
	Qty           int64            `json:"qty" validate:"gt=0"`
	UnitPrice     decimal.Decimal  `json:"unit_price" validate:"gte=0"`
	CommissionPct *decimal.Decimal `json:"commission_pct,omitempty"`
}

// OrderInput is an order as submitted. Date is an RFC 3339 timestamp; a value
// without zone is read as UTC.
type OrderInput struct {
	ID       string      `json:"id" validate:"required,max=64"`
	Date     string      `json:"date" validate:"required"`
	Customer string      `json:"customer" validate:"max=255"`
	Items    []ItemInput `json:"items" validate:"dive"`
}

// BatchInput is a cost lot as submitted.
type BatchInput struct {
	SKU      string          `json:"sku" validate:"required,max=128"`
	Date     string          `json:"date" validate:"required,datetime=2006-01-02"`
	Qty      int64           `json:"qty" validate:"gte=0"`
	UnitCost decimal.Decimal `json:"unit_cost" validate:"gte=0"`
	Note     string          `json:"note" validate:"max=500"`
}

// Store is the write side used by ingestion.
type Store interface {
	ledger.OrderWriter
	ledger.BatchWriter
}

// Service validates and persists incoming orders and batches.
type Service struct {
	store    Store
	validate *validator.Validate
	logger   *zap.Logger
}

// NewService creates an ingest service.
func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		validate: NewValidator(),
		logger:   logger,
	}
}

// NewValidator returns a validator that reports JSON field names and compares
// decimal.Decimal fields numerically.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	RegisterDecimal(v)
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// RegisterDecimal lets numeric tags such as gte=0 apply to decimal.Decimal.
func RegisterDecimal(v *validator.Validate) {
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// UpsertOrders inserts new orders and fully replaces the lines of existing
// ones, in one transaction. Replaced lines lose their allocations until the
// next rebuild.
func (s *Service) UpsertOrders(ctx context.Context, inputs []OrderInput) (ledger.UpsertStats, error) {
	if len(inputs) == 0 {
		return ledger.UpsertStats{}, nil
	}
	if len(inputs) > MaxOrdersPerRequest {
		return ledger.UpsertStats{}, shared.InvalidArgumentError(
			"at most %d orders per request, got %d", MaxOrdersPerRequest, len(inputs))
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "ingest", "upsert_orders",
		telemetry.WithAttribute(telemetry.SpanAttrOrders, len(inputs)))
	defer span.End()

	orders := make([]ledger.Order, 0, len(inputs))
	for i, in := range inputs {
		o, err := s.toOrder(in)
		if err != nil {
			telemetry.RecordError(span, err)
			var de *shared.DomainError
			if errors.As(err, &de) {
				return ledger.UpsertStats{}, shared.WrapDomainError(de.Code, fmt.Sprintf("orders[%d]: %s", i, de.Message), de.Err)
			}
			return ledger.UpsertStats{}, err
		}
		orders = append(orders, o)
	}

	stats, err := s.store.UpsertOrders(ctx, orders)
	if err != nil {
		telemetry.RecordError(span, err)
		return ledger.UpsertStats{}, err
	}

	logger.FromContextOr(ctx, s.logger).Info("Orders upserted",
		zap.Int("orders_inserted", stats.OrdersInserted),
		zap.Int("orders_updated", stats.OrdersUpdated),
		zap.Int("items_inserted", stats.ItemsInserted),
	)
	return stats, nil
}

func (s *Service) toOrder(in OrderInput) (ledger.Order, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.Items = slices.Clone(in.Items)
	for i := range in.Items {
		in.Items[i].SKU = strings.TrimSpace(in.Items[i].SKU)
	}
	if err := s.validate.Struct(in); err != nil {
		return ledger.Order{}, validationError(err)
	}

	soldAt, err := ParseTimestamp(in.Date)
	if err != nil {
		return ledger.Order{}, err
	}

	o := ledger.Order{
		ID:       in.ID,
		SoldAt:   soldAt,
		Customer: strings.TrimSpace(in.Customer),
		Lines:    make([]ledger.SaleLine, 0, len(in.Items)),
	}
	for _, it := range in.Items {
		line := ledger.SaleLine{
			OrderID:   in.ID,
			SKU:       it.SKU,
			Quantity:  it.Qty,
			UnitPrice: it.UnitPrice,
		}
		if it.CommissionPct != nil {
			if it.CommissionPct.IsNegative() || it.CommissionPct.GreaterThan(decimal.NewFromInt(100)) {
				return ledger.Order{}, shared.NewDomainError(shared.CodeValidation,
					fmt.Sprintf("commission_pct of %s must be between 0 and 100", it.SKU))
			}
			line.CommissionPct = decimal.NewNullDecimal(*it.CommissionPct)
		}
		o.Lines = append(o.Lines, line)
	}
	return o, nil
}

// AddBatch records a cost lot.
func (s *Service) AddBatch(ctx context.Context, in BatchInput) (ledger.Batch, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Date = strings.TrimSpace(in.Date)
	if err := s.validate.Struct(in); err != nil {
		return ledger.Batch{}, validationError(err)
	}
	day, err := businessday.ParseDate(in.Date)
	if err != nil {
		return ledger.Batch{}, err
	}

	b, err := s.store.CreateBatch(ctx, ledger.Batch{
		SKU:        in.SKU,
		IntakeDate: day,
		QuantityIn: in.Qty,
		UnitCost:   in.UnitCost,
		Note:       strings.TrimSpace(in.Note),
	})
	if err != nil {
		return ledger.Batch{}, err
	}

	logger.FromContextOr(ctx, s.logger).Info("Batch recorded",
		zap.Int64("batch_id", b.ID),
		zap.String("sku", b.SKU),
		zap.String("intake_date", in.Date),
		zap.Int64("qty", b.QuantityIn),
	)
	return b, nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp accepts RFC 3339 or a zone-less date/time (read as UTC).
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, shared.NewDomainError(shared.CodeValidation,
		fmt.Sprintf("invalid date %q: expected an ISO 8601 timestamp", s))
}

func validationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", e.Namespace(), e.Tag()))
		}
		return shared.WrapDomainError(shared.CodeValidation, strings.Join(msgs, "; "), err)
	}
	return shared.WrapDomainError(shared.CodeValidation, "validation failed", err)
}
