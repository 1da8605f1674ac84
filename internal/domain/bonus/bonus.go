package bonus

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/shared"
)

// Bonus is the commission attributed to one sale. It is an immutable snapshot of the
// rule that matched; later rule edits never recompute it. Voiding keeps the row.
type Bonus struct {
	shared.BaseAggregateRoot
	AgentID     int64
	SaleID      int64
	RuleID      int64
	SaleAmount  decimal.Decimal
	Amount      decimal.Decimal
	PercentUsed decimal.Decimal
	IsPaid      bool
	PaidAt      *time.Time
	VoidedAt    *time.Time
	VoidReason  string
}

// NewBonus computes the bonus of a sale amount under rule
func NewBonus(agentID, saleID int64, rule *Rule, saleAmount decimal.Decimal) (*Bonus, error) {
	if agentID <= 0 || saleID <= 0 {
		return nil, shared.NewValidationError("Bonus must reference an agent and a sale")
	}
	if rule == nil || rule.ID <= 0 {
		return nil, shared.NewValidationError("Bonus must reference a persisted rule")
	}
	if !rule.Contains(saleAmount) {
		return nil, shared.NewDomainError(shared.CodeInvalidState, "Rule does not cover the sale amount")
	}
	return &Bonus{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		AgentID:           agentID,
		SaleID:            saleID,
		RuleID:            rule.ID,
		SaleAmount:        saleAmount,
		Amount:            rule.Compute(saleAmount),
		PercentUsed:       rule.Percent,
	}, nil
}

// IsLive reports whether the bonus still counts for its sale
func (b *Bonus) IsLive() bool {
	return b.VoidedAt == nil
}

// Void invalidates an unpaid bonus. Paid bonuses cannot be voided.
func (b *Bonus) Void(reason string, at time.Time) error {
	if b.IsPaid {
		return shared.ErrCannotVoidPaidBonus
	}
	if !b.IsLive() {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	b.VoidedAt = &at
	b.VoidReason = strings.TrimSpace(reason)
	b.UpdatedAt = at
	b.IncrementVersion()
	b.AddDomainEvent(NewBonusVoidedEvent(b))
	return nil
}

// MarkPaid records the payout of a live bonus
func (b *Bonus) MarkPaid(at time.Time) error {
	if !b.IsLive() {
		return shared.NewDomainError(shared.CodeInvalidState, "Voided bonus cannot be paid")
	}
	if b.IsPaid {
		return nil
	}
	if at.IsZero() {
		at = time.Now()
	}
	b.IsPaid = true
	b.PaidAt = &at
	b.UpdatedAt = at
	b.IncrementVersion()
	return nil
}

// RecordAccrued queues the BonusAccrued event once the bonus has an ID
func (b *Bonus) RecordAccrued() {
	b.AddDomainEvent(NewBonusAccruedEvent(b))
}

// Summary aggregates an agent's bonuses
type Summary struct {
	AgentID int64           `json:"agent_id"`
	Count   int             `json:"count"`
	Accrued decimal.Decimal `json:"accrued"`
	Paid    decimal.Decimal `json:"paid"`
	Unpaid  decimal.Decimal `json:"unpaid"`
}

// Summarize totals live bonuses; voided ones are ignored
func Summarize(agentID int64, bonuses []Bonus) Summary {
	s := Summary{AgentID: agentID, Accrued: decimal.Zero, Paid: decimal.Zero, Unpaid: decimal.Zero}
	for i := range bonuses {
		b := &bonuses[i]
		if !b.IsLive() {
			continue
		}
		s.Count++
		s.Accrued = s.Accrued.Add(b.Amount)
		if b.IsPaid {
			s.Paid = s.Paid.Add(b.Amount)
		} else {
			s.Unpaid = s.Unpaid.Add(b.Amount)
		}
	}
	return s
}
