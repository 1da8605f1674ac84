package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/shared"
)

// BatchModel is the persistence model for the Batch domain entity.
type BatchModel struct {
	Row
	BatchNumber string    `gorm:"type:varchar(50);not null;uniqueIndex:uq_batches_batch_number"`
	ReceivedAt  time.Time `gorm:"not null"`
	Warehouse   string    `gorm:"type:varchar(100);not null;index"`
	CreatedBy   int64     `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (BatchModel) TableName() string {
	return "batches"
}

// ToDomain converts the persistence model to a domain Batch entity.
func (m *BatchModel) ToDomain() *catalog.Batch {
	return &catalog.Batch{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.CreatedAt,
			},
			Version: 1,
		},
		BatchNumber: m.BatchNumber,
		ReceivedAt:  m.ReceivedAt,
		Warehouse:   m.Warehouse,
		CreatedBy:   m.CreatedBy,
	}
}

// BatchModelFromDomain creates a new persistence model from a domain Batch entity.
func BatchModelFromDomain(b *catalog.Batch) *BatchModel {
	return &BatchModel{
		Row:         Row{ID: b.ID, CreatedAt: b.CreatedAt},
		BatchNumber: b.BatchNumber,
		ReceivedAt:  b.ReceivedAt,
		Warehouse:   b.Warehouse,
		CreatedBy:   b.CreatedBy,
	}
}

// ProductModel is the persistence model for the Product domain entity.
type ProductModel struct {
	VersionedRow
	BatchID        int64            `gorm:"not null;index;uniqueIndex:uq_products_ean_batch,priority:2"`
	EAN            string           `gorm:"column:ean;type:varchar(13);not null;index;uniqueIndex:uq_products_ean_batch,priority:1"`
	Name           string           `gorm:"type:varchar(200);not null"`
	Model          string           `gorm:"type:varchar(100)"`
	Color          string           `gorm:"type:varchar(50)"`
	Size           string           `gorm:"type:varchar(10)"`
	Age            string           `gorm:"type:varchar(10)"`
	Fit            string           `gorm:"type:varchar(10);not null;default:'regular'"`
	Weight         decimal.Decimal  `gorm:"type:numeric(8,3);not null;check:chk_products_weight,weight > 0"`
	Quantity       int              `gorm:"not null;default:0;check:chk_products_quantity,quantity >= 0"`
	PriceEUR       decimal.Decimal  `gorm:"column:price_eur;type:numeric(12,2);not null;check:chk_products_price,price_eur >= 0"`
	ExchangeRate   decimal.Decimal  `gorm:"type:numeric(12,4);not null"`
	Coefficient    decimal.Decimal  `gorm:"type:numeric(8,4);not null"`
	LogisticsPerKg decimal.Decimal  `gorm:"type:numeric(12,2);not null;default:0"`
	CostPrice      decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	RetailPrice    *decimal.Decimal `gorm:"type:numeric(12,2)"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product entity.
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseAggregateRoot: m.root(),
		BatchID:           m.BatchID,
		EAN:               m.EAN,
		Name:              m.Name,
		Model:             m.Model,
		Color:             m.Color,
		Size:              m.Size,
		Age:               m.Age,
		Fit:               catalog.Fit(m.Fit),
		Weight:            m.Weight,
		Quantity:          m.Quantity,
		PriceEUR:          m.PriceEUR,
		ExchangeRate:      m.ExchangeRate,
		Coefficient:       m.Coefficient,
		LogisticsPerKg:    m.LogisticsPerKg,
		CostPrice:         m.CostPrice,
		RetailPrice:       m.RetailPrice,
	}
}

// FromDomain populates the persistence model from a domain Product entity.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.VersionedRow = versionedRow(p.BaseAggregateRoot)
	m.BatchID = p.BatchID
	m.EAN = p.EAN
	m.Name = p.Name
	m.Model = p.Model
	m.Color = p.Color
	m.Size = p.Size
	m.Age = p.Age
	m.Fit = string(p.Fit)
	m.Weight = p.Weight
	m.Quantity = p.Quantity
	m.PriceEUR = p.PriceEUR
	m.ExchangeRate = p.ExchangeRate
	m.Coefficient = p.Coefficient
	m.LogisticsPerKg = p.LogisticsPerKg
	m.CostPrice = p.CostPrice
	m.RetailPrice = p.RetailPrice
}

// ProductModelFromDomain creates a new persistence model from a domain Product entity.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}
