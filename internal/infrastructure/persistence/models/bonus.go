package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/bonus"
)

// BonusRuleModel is the persistence model for the bonus Rule domain entity.
type BonusRuleModel struct {
	VersionedRow
	MinAmount decimal.Decimal  `gorm:"type:numeric(14,2);not null;check:chk_bonus_rules_min,min_amount >= 0"`
	MaxAmount *decimal.Decimal `gorm:"type:numeric(14,2)"`
	Percent   decimal.Decimal  `gorm:"type:numeric(5,2);not null;check:chk_bonus_rules_percent,percent >= 0 AND percent <= 100"`
	IsActive  bool             `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (BonusRuleModel) TableName() string {
	return "bonus_rules"
}

// ToDomain converts the persistence model to a domain Rule entity.
func (m *BonusRuleModel) ToDomain() *bonus.Rule {
	return &bonus.Rule{
		BaseAggregateRoot: m.root(),
		MinAmount:         m.MinAmount,
		MaxAmount:         m.MaxAmount,
		Percent:           m.Percent,
		IsActive:          m.IsActive,
	}
}

// BonusRuleModelFromDomain creates a new persistence model from a domain Rule entity.
func BonusRuleModelFromDomain(r *bonus.Rule) *BonusRuleModel {
	m := &BonusRuleModel{
		MinAmount: r.MinAmount,
		MaxAmount: r.MaxAmount,
		Percent:   r.Percent,
		IsActive:  r.IsActive,
	}
	m.VersionedRow = versionedRow(r.BaseAggregateRoot)
	return m
}

// BonusModel is the persistence model for the Bonus domain entity.
type BonusModel struct {
	VersionedRow
	AgentID     int64           `gorm:"not null;index"`
	SaleID      int64           `gorm:"not null;uniqueIndex:uq_bonuses_sale_id"`
	RuleID      int64           `gorm:"not null;index"`
	SaleAmount  decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	PercentUsed decimal.Decimal `gorm:"type:numeric(5,2);not null"`
	IsPaid      bool            `gorm:"not null;default:false;index"`
	PaidAt      *time.Time
	VoidedAt    *time.Time `gorm:"index"`
	VoidReason  string     `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (BonusModel) TableName() string {
	return "bonuses"
}

// ToDomain converts the persistence model to a domain Bonus entity.
func (m *BonusModel) ToDomain() *bonus.Bonus {
	return &bonus.Bonus{
		BaseAggregateRoot: m.root(),
		AgentID:           m.AgentID,
		SaleID:            m.SaleID,
		RuleID:            m.RuleID,
		SaleAmount:        m.SaleAmount,
		Amount:            m.Amount,
		PercentUsed:       m.PercentUsed,
		IsPaid:            m.IsPaid,
		PaidAt:            m.PaidAt,
		VoidedAt:          m.VoidedAt,
		VoidReason:        m.VoidReason,
	}
}

// BonusModelFromDomain creates a new persistence model from a domain Bonus entity.
func BonusModelFromDomain(b *bonus.Bonus) *BonusModel {
	m := &BonusModel{
		AgentID:     b.AgentID,
		SaleID:      b.SaleID,
		RuleID:      b.RuleID,
		SaleAmount:  b.SaleAmount,
		Amount:      b.Amount,
		PercentUsed: b.PercentUsed,
		IsPaid:      b.IsPaid,
		PaidAt:      b.PaidAt,
		VoidedAt:    b.VoidedAt,
		VoidReason:  b.VoidReason,
	}
	m.VersionedRow = versionedRow(b.BaseAggregateRoot)
	return m
}
