package bonus

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/bonus"
)

// BonusResponse represents a bonus in API responses
type BonusResponse struct {
	ID          int64           `json:"id"`
	AgentID     int64           `json:"agent_id"`
	SaleID      int64           `json:"sale_id"`
	RuleID      int64           `json:"rule_id"`
	SaleAmount  decimal.Decimal `json:"sale_amount"`
	Amount      decimal.Decimal `json:"amount"`
	PercentUsed decimal.Decimal `json:"percent_used"`
	IsPaid      bool            `json:"is_paid"`
	PaidAt      *time.Time      `json:"paid_at,omitempty"`
	VoidedAt    *time.Time      `json:"voided_at,omitempty"`
	VoidReason  string          `json:"void_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ToBonusResponse converts a domain bonus to a response
func ToBonusResponse(b *bonus.Bonus) BonusResponse {
	return BonusResponse{
		ID:          b.ID,
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
		CreatedAt:   b.CreatedAt,
	}
}

// RuleRequest is the input for creating or updating a bonus rule.
// A nil MaxAmount means the tier is unbounded above.
type RuleRequest struct {
	MinAmount decimal.Decimal  `json:"min_amount" binding:"required"`
	MaxAmount *decimal.Decimal `json:"max_amount"`
	Percent   decimal.Decimal  `json:"percent" binding:"required"`
}

// RuleResponse represents a bonus rule in API responses
type RuleResponse struct {
	ID        int64            `json:"id"`
	MinAmount decimal.Decimal  `json:"min_amount"`
	MaxAmount *decimal.Decimal `json:"max_amount"`
	Percent   decimal.Decimal  `json:"percent"`
	IsActive  bool             `json:"is_active"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// ToRuleResponse converts a domain rule to a response
func ToRuleResponse(r *bonus.Rule) RuleResponse {
	return RuleResponse{
		ID:        r.ID,
		MinAmount: r.MinAmount,
		MaxAmount: r.MaxAmount,
		Percent:   r.Percent,
		IsActive:  r.IsActive,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// BonusQuery narrows bonus listings
type BonusQuery struct {
	AgentID     int64
	UnpaidOnly  bool
	IncludeVoid bool
	Page        int
	PageSize    int
}

// PayoutResponse is the result of paying an agent's bonuses
type PayoutResponse struct {
	AgentID int64           `json:"agent_id"`
	Count   int             `json:"count"`
	Total   decimal.Decimal `json:"total"`
}

// PendingResult summarises a recovery run over sales without bonuses
type PendingResult struct {
	Checked    int `json:"checked"`
	Accrued    int `json:"accrued"`
	Unassigned int `json:"unassigned"`
	Failed     int `json:"failed"`
}
