package audit

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/audit"
	"github.com/stickroom/ledger/internal/domain/stock"
)

// PriceHistoryResponse is one retail price change
type PriceHistoryResponse struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"product_id"`
	OldPrice  *decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal  `json:"new_price"`
	ChangedBy int64            `json:"changed_by"`
	ChangedAt time.Time        `json:"changed_at"`
}

// ToPriceHistoryResponse converts a domain price change to a response
func ToPriceHistoryResponse(h *audit.PriceHistory) PriceHistoryResponse {
	return PriceHistoryResponse{
		ID:        h.ID,
		ProductID: h.ProductID,
		OldPrice:  h.OldPrice,
		NewPrice:  h.NewPrice,
		ChangedBy: h.ChangedBy,
		ChangedAt: h.ChangedAt,
	}
}

// StockLogResponse is one stock movement
type StockLogResponse struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	OperationType string    `json:"operation_type"`
	Quantity      int       `json:"quantity"`
	Delta         int       `json:"delta"`
	Warehouse     string    `json:"warehouse"`
	ReferenceType string    `json:"reference_type"`
	ReferenceID   int64     `json:"reference_id"`
	AgentID       *int64    `json:"agent_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// ToStockLogResponse converts a stock movement to a response
func ToStockLogResponse(l *stock.Log) StockLogResponse {
	return StockLogResponse{
		ID:            l.ID,
		ProductID:     l.ProductID,
		OperationType: string(l.OperationType),
		Quantity:      l.Quantity,
		Delta:         l.Delta(),
		Warehouse:     l.Warehouse,
		ReferenceType: string(l.ReferenceType),
		ReferenceID:   l.ReferenceID,
		AgentID:       l.AgentID,
		CreatedAt:     l.CreatedAt,
	}
}

// ActionLogResponse is one audited action with its decoded details
type ActionLogResponse struct {
	ID         int64          `json:"id"`
	AgentID    *int64         `json:"agent_id"`
	ActionType string         `json:"action_type"`
	EntityType string         `json:"entity_type"`
	EntityID   int64          `json:"entity_id"`
	Details    map[string]any `json:"details"`
	IPAddress  string         `json:"ip_address,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ToActionLogResponse converts an action log to a response.
// Undecodable details are returned under the "raw" key.
func ToActionLogResponse(l *audit.ActionLog) ActionLogResponse {
	details, err := l.DecodeDetails()
	if err != nil {
		details = audit.Details{"raw": l.Details}
	}
	return ActionLogResponse{
		ID:         l.ID,
		AgentID:    l.AgentID,
		ActionType: string(l.ActionType),
		EntityType: l.EntityType,
		EntityID:   l.EntityID,
		Details:    details,
		IPAddress:  l.IPAddress,
		CreatedAt:  l.CreatedAt,
	}
}

// ActionLogQuery narrows action log listings
type ActionLogQuery struct {
	AgentID    int64
	EntityType string
	EntityID   int64
	ActionType string
	From       time.Time
	To         time.Time
	Page       int
	PageSize   int
}
