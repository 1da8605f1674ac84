package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/domain/stock"
)

// PriceHistoryModel is the persistence model for PriceHistory entries.
type PriceHistoryModel struct {
	ID        int64            `gorm:"primaryKey;autoIncrement"`
	ProductID int64            `gorm:"not null;index"`
	OldPrice  *decimal.Decimal `gorm:"type:numeric(12,2)"`
	NewPrice  decimal.Decimal  `gorm:"type:numeric(12,2);not null"`
	ChangedBy int64            `gorm:"not null"`
	ChangedAt time.Time        `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (PriceHistoryModel) TableName() string {
	return "price_history"
}

// ToDomain converts the persistence model to a domain PriceHistory entry.
func (m *PriceHistoryModel) ToDomain() *audit.PriceHistory {
	return &audit.PriceHistory{
		ID:        m.ID,
		ProductID: m.ProductID,
		OldPrice:  m.OldPrice,
		NewPrice:  m.NewPrice,
		ChangedBy: m.ChangedBy,
		ChangedAt: m.ChangedAt,
	}
}

// PriceHistoryModelFromDomain creates a new persistence model from a domain entry.
func PriceHistoryModelFromDomain(h *audit.PriceHistory) *PriceHistoryModel {
	return &PriceHistoryModel{
		ID:        h.ID,
		ProductID: h.ProductID,
		OldPrice:  h.OldPrice,
		NewPrice:  h.NewPrice,
		ChangedBy: h.ChangedBy,
		ChangedAt: h.ChangedAt,
	}
}

// StockLogModel is the persistence model for stock movements.
type StockLogModel struct {
	Row
	ProductID     int64  `gorm:"not null;index"`
	OperationType string `gorm:"type:varchar(10);not null"`
	Quantity      int    `gorm:"not null;check:chk_stock_logs_quantity,quantity > 0"`
	Warehouse     string `gorm:"type:varchar(100)"`
	ReferenceType string `gorm:"type:varchar(20);not null"`
	ReferenceID   int64  `gorm:"not null;default:0"`
	AgentID       *int64 `gorm:"index"`
}

// TableName returns the table name for GORM
func (StockLogModel) TableName() string {
	return "stock_logs"
}

// ToDomain converts the persistence model to a domain stock Log.
func (m *StockLogModel) ToDomain() *stock.Log {
	return &stock.Log{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.CreatedAt,
		},
		ProductID:     m.ProductID,
		OperationType: stock.OperationType(m.OperationType),
		Quantity:      m.Quantity,
		Warehouse:     m.Warehouse,
		ReferenceType: stock.ReferenceType(m.ReferenceType),
		ReferenceID:   m.ReferenceID,
		AgentID:       m.AgentID,
	}
}

// StockLogModelFromDomain creates a new persistence model from a domain stock Log.
func StockLogModelFromDomain(l *stock.Log) *StockLogModel {
	return &StockLogModel{
		Row:           Row{ID: l.ID, CreatedAt: l.CreatedAt},
		ProductID:     l.ProductID,
		OperationType: string(l.OperationType),
		Quantity:      l.Quantity,
		Warehouse:     l.Warehouse,
		ReferenceType: string(l.ReferenceType),
		ReferenceID:   l.ReferenceID,
		AgentID:       l.AgentID,
	}
}

// ActionLogModel is the persistence model for agent action logs.
type ActionLogModel struct {
	Row
	AgentID    *int64 `gorm:"index"`
	ActionType string `gorm:"type:varchar(50);not null;index"`
	EntityType string `gorm:"type:varchar(50);index:idx_action_logs_entity,priority:1"`
	EntityID   int64  `gorm:"index:idx_action_logs_entity,priority:2"`
	Details    string `gorm:"type:text"`
	IPAddress  string `gorm:"type:varchar(45)"`
}

// TableName returns the table name for GORM
func (ActionLogModel) TableName() string {
	return "action_logs"
}

// ToDomain converts the persistence model to a domain ActionLog.
func (m *ActionLogModel) ToDomain() *audit.ActionLog {
	return &audit.ActionLog{
		ID:         m.ID,
		AgentID:    m.AgentID,
		ActionType: audit.ActionType(m.ActionType),
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Details:    m.Details,
		IPAddress:  m.IPAddress,
		CreatedAt:  m.CreatedAt,
	}
}

// ActionLogModelFromDomain creates a new persistence model from a domain ActionLog.
func ActionLogModelFromDomain(l *audit.ActionLog) *ActionLogModel {
	return &ActionLogModel{
		Row:        Row{ID: l.ID, CreatedAt: l.CreatedAt},
		AgentID:    l.AgentID,
		ActionType: string(l.ActionType),
		EntityType: l.EntityType,
		EntityID:   l.EntityID,
		Details:    l.Details,
		IPAddress:  l.IPAddress,
	}
}
