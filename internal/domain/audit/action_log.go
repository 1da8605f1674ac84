package audit

import (
	"encoding/json"
	"time"
)

// ActionType names an audited agent action
type ActionType string

const (
	ActionBatchCreated           ActionType = "batch_created"
	ActionProductAdded           ActionType = "product_added"
	ActionStockReceived          ActionType = "stock_received"
	ActionSaleCreated            ActionType = "sale_created"
	ActionSaleReturned           ActionType = "sale_returned"
	ActionPriceChanged           ActionType = "price_changed"
	ActionBulkPriceUpdate        ActionType = "bulk_price_update"
	ActionBonusAccrued           ActionType = "bonus_accrued"
	ActionBonusVoided            ActionType = "bonus_voided"
	ActionBonusUnassigned        ActionType = "bonus_unassigned"
	ActionBonusesPaid            ActionType = "bonuses_paid"
	ActionReturnBlockedPaidBonus ActionType = "return_blocked_paid_bonus"
	ActionBonusRuleChanged       ActionType = "bonus_rule_changed"
	ActionAgentChanged           ActionType = "agent_changed"
)

// Entity type labels used in action logs
const (
	EntityAgent     = "agent"
	EntityBatch     = "batch"
	EntityProduct   = "product"
	EntitySale      = "sale"
	EntityBonus     = "bonus"
	EntityBonusRule = "bonus_rule"
)

// Details is the free-form payload of an action log
type Details map[string]any

// ActionLog is an append-only audit record of an agent action
type ActionLog struct {
	ID         int64
	AgentID    *int64
	ActionType ActionType
	EntityType string
	EntityID   int64
	Details    string // JSON
	IPAddress  string
	CreatedAt  time.Time
}

// NewActionLog builds an action log. A zero agentID records a system action.
func NewActionLog(agentID int64, action ActionType, entityType string, entityID int64, details Details) *ActionLog {
	l := &ActionLog{
		ActionType: action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    encodeDetails(details),
		CreatedAt:  time.Now(),
	}
	if agentID > 0 {
		l.AgentID = &agentID
	}
	return l
}

// WithIP sets the client address the action originated from
func (l *ActionLog) WithIP(ip string) *ActionLog {
	l.IPAddress = ip
	return l
}

// DecodeDetails parses the JSON payload
func (l *ActionLog) DecodeDetails() (Details, error) {
	if l.Details == "" {
		return Details{}, nil
	}
	var d Details
	if err := json.Unmarshal([]byte(l.Details), &d); err != nil {
		return nil, err
	}
	return d, nil
}

func encodeDetails(d Details) string {
	if len(d) == 0 {
		return "{}"
	}
	b, err := json.Marshal(d)
	if err != nil {
		return "{}"
	}
	return string(b)
}
