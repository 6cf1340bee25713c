package models

import (
	"time"

	"github.com/erp/profitledger/internal/domain/ledger"
	"github.com/erp/profitledger/internal/domain/report"
	"github.com/shopspring/decimal"
)

// CategoryModel is the persistence model for a commission category.
type CategoryModel struct {
	Name         string          `gorm:"primaryKey;size:200"`
	BasePercent  decimal.Decimal `gorm:"type:decimal(9,4);not null;default:0"`
	ExtraPercent decimal.Decimal `gorm:"type:decimal(9,4);not null;default:0"`
	TaxPercent   decimal.Decimal `gorm:"type:decimal(9,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (CategoryModel) TableName() string {
	return "categories"
}

// ToDomain converts the persistence model to a report.Category.
func (m *CategoryModel) ToDomain() report.Category {
	return report.Category{
		Name:         m.Name,
		BasePercent:  m.BasePercent,
		ExtraPercent: m.ExtraPercent,
		TaxPercent:   m.TaxPercent,
	}
}

// ProductModel maps a SKU to its category.
type ProductModel struct {
	SKU      string `gorm:"column:sku;primaryKey;size:100"`
	Name     string `gorm:"size:300"`
	Category string `gorm:"size:200;index"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// BatchModel is the persistence model for a cost lot.
type BatchModel struct {
	ID         int64           `gorm:"primaryKey;autoIncrement;index:idx_batches_sku_date_id,priority:3"`
	SKU        string          `gorm:"column:sku;size:100;not null;index:idx_batches_sku_date_id,priority:1"`
	IntakeDate time.Time       `gorm:"type:date;not null;index:idx_batches_sku_date_id,priority:2"`
	QuantityIn int64           `gorm:"not null"`
	UnitCost   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Note       string          `gorm:"size:500"`
	CreatedAt  time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// ToDomain converts the persistence model to a ledger.Batch.
func (m *BatchModel) ToDomain() ledger.Batch {
	return ledger.Batch{
		ID:         m.ID,
		SKU:        m.SKU,
		IntakeDate: time.Date(m.IntakeDate.Year(), m.IntakeDate.Month(), m.IntakeDate.Day(), 0, 0, 0, 0, time.UTC),
		QuantityIn: m.QuantityIn,
		UnitCost:   m.UnitCost,
		Note:       m.Note,
		CreatedAt:  m.CreatedAt,
	}
}

// BatchModelFromDomain creates a persistence model from a ledger.Batch.
func BatchModelFromDomain(b ledger.Batch) *BatchModel {
	return &BatchModel{
		ID:         b.ID,
		SKU:        b.SKU,
		IntakeDate: b.IntakeDate,
		QuantityIn: b.QuantityIn,
		UnitCost:   b.UnitCost,
		Note:       b.Note,
		CreatedAt:  b.CreatedAt,
	}
}

// OrderModel is the persistence model for an ingested order.
type OrderModel struct {
	ID       string          `gorm:"primaryKey;size:100"`
	SoldAt   time.Time       `gorm:"not null;index"`
	Customer string          `gorm:"size:300"`
	Lines    []SaleLineModel `gorm:"foreignKey:OrderID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// SaleLineModel is the persistence model for one sale line.
type SaleLineModel struct {
	SaleItemID    int64               `gorm:"primaryKey;autoIncrement"`
	OrderID       string              `gorm:"size:100;not null;index"`
	SKU           string              `gorm:"column:sku;size:100;not null;index"`
	Quantity      int64               `gorm:"not null"`
	UnitPrice     decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	CommissionPct decimal.NullDecimal `gorm:"type:decimal(9,4)"`
	SaleTimestamp time.Time           `gorm:"not null;index"`
	Allocations   []AllocationModel   `gorm:"foreignKey:SaleItemID;references:SaleItemID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (SaleLineModel) TableName() string {
	return "sale_lines"
}

// ToDomain converts the persistence model to a ledger.SaleLine.
func (m *SaleLineModel) ToDomain() ledger.SaleLine {
	return ledger.SaleLine{
		SaleItemID:    m.SaleItemID,
		OrderID:       m.OrderID,
		SKU:           m.SKU,
		Quantity:      m.Quantity,
		UnitPrice:     m.UnitPrice,
		CommissionPct: m.CommissionPct,
		SaleTimestamp: m.SaleTimestamp.UTC(),
	}
}

// SaleLineModelFromDomain creates a persistence model from a ledger.SaleLine.
// A zero SaleItemID lets the store assign one.
func SaleLineModelFromDomain(l ledger.SaleLine) *SaleLineModel {
	return &SaleLineModel{
		SaleItemID:    l.SaleItemID,
		OrderID:       l.OrderID,
		SKU:           l.SKU,
		Quantity:      l.Quantity,
		UnitPrice:     l.UnitPrice,
		CommissionPct: l.CommissionPct,
		SaleTimestamp: l.SaleTimestamp.UTC(),
	}
}

// AllocationModel is the persistence model for a ledger allocation.
// A NULL BatchID marks a deficit.
type AllocationModel struct {
	ID         int64               `gorm:"primaryKey;autoIncrement"`
	SaleItemID int64               `gorm:"not null;index"`
	BatchID    *int64              `gorm:"index"`
	SKU        string              `gorm:"column:sku;size:100;not null;index"`
	Quantity   int64               `gorm:"not null"`
	UnitCost   decimal.NullDecimal `gorm:"type:decimal(18,4)"`
}

// TableName returns the table name for GORM
func (AllocationModel) TableName() string {
	return "allocations"
}

// ToDomain converts the persistence model to a ledger.Allocation.
func (m *AllocationModel) ToDomain() ledger.Allocation {
	return ledger.Allocation{
		ID:         m.ID,
		SaleItemID: m.SaleItemID,
		BatchID:    m.BatchID,
		SKU:        m.SKU,
		Quantity:   m.Quantity,
		UnitCost:   m.UnitCost,
	}
}

// AllocationModelFromDomain creates a persistence model from a ledger.Allocation.
func AllocationModelFromDomain(a ledger.Allocation) *AllocationModel {
	return &AllocationModel{
		ID:         a.ID,
		SaleItemID: a.SaleItemID,
		BatchID:    a.BatchID,
		SKU:        a.SKU,
		Quantity:   a.Quantity,
		UnitCost:   a.UnitCost,
	}
}

// All returns every ledger model in dependency order, for AutoMigrate.
func All() []any {
	return []any{
		&CategoryModel{},
		&ProductModel{},
		&BatchModel{},
		&OrderModel{},
		&SaleLineModel{},
		&AllocationModel{},
	}
}
