package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/sales"
)

// SaleModel is the persistence model for the Sale domain entity.
type SaleModel struct {
	VersionedRow
	ProductID     int64           `gorm:"not null;index"`
	AgentID       int64           `gorm:"not null;index"`
	Quantity      int             `gorm:"not null;check:chk_sales_quantity,quantity >= 1"`
	SalePrice     decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	UnitCost      decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Margin        decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	MarginPercent decimal.Decimal `gorm:"type:numeric(7,2);not null"`
	Warehouse     string          `gorm:"type:varchar(100);index"`
	IsReturn      bool            `gorm:"not null;default:false;index"`
	ReturnReason  string          `gorm:"type:text"`
	ReturnedAt    *time.Time
	SaleDate      time.Time `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (SaleModel) TableName() string {
	return "sales"
}

// ToDomain converts the persistence model to a domain Sale entity.
func (m *SaleModel) ToDomain() *sales.Sale {
	return &sales.Sale{
		BaseAggregateRoot: m.root(),
		ProductID:         m.ProductID,
		AgentID:           m.AgentID,
		Quantity:          m.Quantity,
		SalePrice:         m.SalePrice,
		UnitCost:          m.UnitCost,
		Margin:            m.Margin,
		MarginPercent:     m.MarginPercent,
		Warehouse:         m.Warehouse,
		IsReturn:          m.IsReturn,
		ReturnReason:      m.ReturnReason,
		ReturnedAt:        m.ReturnedAt,
		SaleDate:          m.SaleDate,
	}
}

// FromDomain populates the persistence model from a domain Sale entity.
func (m *SaleModel) FromDomain(s *sales.Sale) {
	m.VersionedRow = versionedRow(s.BaseAggregateRoot)
	m.ProductID = s.ProductID
	m.AgentID = s.AgentID
	m.Quantity = s.Quantity
	m.SalePrice = s.SalePrice
	m.UnitCost = s.UnitCost
	m.Margin = s.Margin
	m.MarginPercent = s.MarginPercent
	m.Warehouse = s.Warehouse
	m.IsReturn = s.IsReturn
	m.ReturnReason = s.ReturnReason
	m.ReturnedAt = s.ReturnedAt
	m.SaleDate = s.SaleDate
}

// SaleModelFromDomain creates a new persistence model from a domain Sale entity.
func SaleModelFromDomain(s *sales.Sale) *SaleModel {
	m := &SaleModel{}
	m.FromDomain(s)
	return m
}
