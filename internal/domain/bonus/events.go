package bonus

import (
	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/shared"
)

// AggregateTypeBonus is the aggregate type of bonus events
const AggregateTypeBonus = "Bonus"

// Event type constants
const (
	EventTypeBonusAccrued = "BonusAccrued"
	EventTypeBonusVoided  = "BonusVoided"
	EventTypeBonusesPaid  = "BonusesPaid"
)

// BonusAccruedEvent is published when a bonus is attributed to a sale
type BonusAccruedEvent struct {
	shared.EventMeta
	BonusID int64           `json:"bonus_id"`
	AgentID int64           `json:"agent_id"`
	SaleID  int64           `json:"sale_id"`
	RuleID  int64           `json:"rule_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// NewBonusAccruedEvent creates a new BonusAccruedEvent
func NewBonusAccruedEvent(b *Bonus) *BonusAccruedEvent {
	return &BonusAccruedEvent{
		EventMeta: shared.NewEventMeta(EventTypeBonusAccrued, AggregateTypeBonus, b.ID),
		BonusID:   b.ID,
		AgentID:   b.AgentID,
		SaleID:    b.SaleID,
		RuleID:    b.RuleID,
		Amount:    b.Amount,
	}
}

// BonusVoidedEvent is published when a bonus is voided by a return
type BonusVoidedEvent struct {
	shared.EventMeta
	BonusID int64           `json:"bonus_id"`
	AgentID int64           `json:"agent_id"`
	SaleID  int64           `json:"sale_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// NewBonusVoidedEvent creates a new BonusVoidedEvent
func NewBonusVoidedEvent(b *Bonus) *BonusVoidedEvent {
	return &BonusVoidedEvent{
		EventMeta: shared.NewEventMeta(EventTypeBonusVoided, AggregateTypeBonus, b.ID),
		BonusID:   b.ID,
		AgentID:   b.AgentID,
		SaleID:    b.SaleID,
		Amount:    b.Amount,
	}
}

// BonusesPaidEvent is published after an agent's payout
type BonusesPaidEvent struct {
	shared.EventMeta
	AgentID int64           `json:"agent_id"`
	Count   int             `json:"count"`
	Total   decimal.Decimal `json:"total"`
}

// NewBonusesPaidEvent creates a new BonusesPaidEvent. The aggregate id is the agent.
func NewBonusesPaidEvent(agentID int64, count int, total decimal.Decimal) *BonusesPaidEvent {
	return &BonusesPaidEvent{
		EventMeta: shared.NewEventMeta(EventTypeBonusesPaid, AggregateTypeBonus, agentID),
		AgentID:   agentID,
		Count:     count,
		Total:     total,
	}
}
