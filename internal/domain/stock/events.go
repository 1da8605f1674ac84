package stock

import "github.com/stickroom/ledger/internal/domain/shared"

// AggregateTypeProduct is the aggregate stock events are attributed to
const AggregateTypeProduct = "Product"

// EventTypeStockMoved is published after every committed stock movement
const EventTypeStockMoved = "StockMoved"

// MovedEvent carries a committed stock movement
type MovedEvent struct {
	shared.EventMeta
	ProductID     int64         `json:"product_id"`
	OperationType OperationType `json:"operation_type"`
	Quantity      int           `json:"quantity"`
	Balance       int           `json:"balance"`
	Warehouse     string        `json:"warehouse"`
}

// NewMovedEvent creates a new MovedEvent
func NewMovedEvent(log *Log, balance int) *MovedEvent {
	return &MovedEvent{
		EventMeta:     shared.NewEventMeta(EventTypeStockMoved, AggregateTypeProduct, log.ProductID),
		ProductID:     log.ProductID,
		OperationType: log.OperationType,
		Quantity:      log.Quantity,
		Balance:       balance,
		Warehouse:     log.Warehouse,
	}
}
