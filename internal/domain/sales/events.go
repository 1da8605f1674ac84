package sales

import (
	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/shared"
)

// AggregateTypeSale is the aggregate type of sale events
const AggregateTypeSale = "Sale"

// Event type constants
const (
	EventTypeSaleRecorded = "SaleRecorded"
	EventTypeSaleReturned = "SaleReturned"
)

// SaleRecordedEvent is published after a sale commits
type SaleRecordedEvent struct {
	shared.EventMeta
	SaleID    int64           `json:"sale_id"`
	ProductID int64           `json:"product_id"`
	AgentID   int64           `json:"agent_id"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	Margin    decimal.Decimal `json:"margin"`
	Warehouse string          `json:"warehouse"`
}

// NewSaleRecordedEvent creates a new SaleRecordedEvent
func NewSaleRecordedEvent(s *Sale) *SaleRecordedEvent {
	return &SaleRecordedEvent{
		EventMeta: shared.NewEventMeta(EventTypeSaleRecorded, AggregateTypeSale, s.ID),
		SaleID:    s.ID,
		ProductID: s.ProductID,
		AgentID:   s.AgentID,
		Quantity:  s.Quantity,
		Amount:    s.Amount(),
		Margin:    s.Margin,
		Warehouse: s.Warehouse,
	}
}

// SaleReturnedEvent is published after a return commits
type SaleReturnedEvent struct {
	shared.EventMeta
	SaleID    int64           `json:"sale_id"`
	ProductID int64           `json:"product_id"`
	AgentID   int64           `json:"agent_id"`
	Quantity  int             `json:"quantity"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

// NewSaleReturnedEvent creates a new SaleReturnedEvent
func NewSaleReturnedEvent(s *Sale) *SaleReturnedEvent {
	return &SaleReturnedEvent{
		EventMeta: shared.NewEventMeta(EventTypeSaleReturned, AggregateTypeSale, s.ID),
		SaleID:    s.ID,
		ProductID: s.ProductID,
		AgentID:   s.AgentID,
		Quantity:  s.Quantity,
		Amount:    s.Amount(),
		Reason:    s.ReturnReason,
	}
}
