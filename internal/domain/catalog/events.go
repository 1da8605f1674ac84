package catalog

import (
	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeBatch   = "Batch"
	AggregateTypeProduct = "Product"
)

// Event type constants
const (
	EventTypeBatchCreated       = "BatchCreated"
	EventTypeProductAdded       = "ProductAdded"
	EventTypeRetailPriceChanged = "RetailPriceChanged"
)

// BatchCreatedEvent is published when a batch is received
type BatchCreatedEvent struct {
	shared.EventMeta
	BatchID     int64  `json:"batch_id"`
	BatchNumber string `json:"batch_number"`
	Warehouse   string `json:"warehouse"`
	CreatedBy   int64  `json:"created_by"`
}

// NewBatchCreatedEvent creates a new BatchCreatedEvent
func NewBatchCreatedEvent(b *Batch) *BatchCreatedEvent {
	return &BatchCreatedEvent{
		EventMeta:   shared.NewEventMeta(EventTypeBatchCreated, AggregateTypeBatch, b.ID),
		BatchID:     b.ID,
		BatchNumber: b.BatchNumber,
		Warehouse:   b.Warehouse,
		CreatedBy:   b.CreatedBy,
	}
}

// ProductAddedEvent is published when a product is added to a batch
type ProductAddedEvent struct {
	shared.EventMeta
	ProductID int64           `json:"product_id"`
	BatchID   int64           `json:"batch_id"`
	EAN       string          `json:"ean"`
	Quantity  int             `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
}

// NewProductAddedEvent creates a new ProductAddedEvent
func NewProductAddedEvent(p *Product) *ProductAddedEvent {
	return &ProductAddedEvent{
		EventMeta: shared.NewEventMeta(EventTypeProductAdded, AggregateTypeProduct, p.ID),
		ProductID: p.ID,
		BatchID:   p.BatchID,
		EAN:       p.EAN,
		Quantity:  p.Quantity,
		CostPrice: p.CostPrice,
	}
}

// RetailPriceChangedEvent is published when a product's retail price changes
type RetailPriceChangedEvent struct {
	shared.EventMeta
	ProductID int64            `json:"product_id"`
	OldPrice  *decimal.Decimal `json:"old_price,omitempty"`
	NewPrice  decimal.Decimal  `json:"new_price"`
	ChangedBy int64            `json:"changed_by"`
}

// NewRetailPriceChangedEvent creates a new RetailPriceChangedEvent
func NewRetailPriceChangedEvent(productID int64, oldPrice *decimal.Decimal, newPrice decimal.Decimal, changedBy int64) *RetailPriceChangedEvent {
	return &RetailPriceChangedEvent{
		EventMeta: shared.NewEventMeta(EventTypeRetailPriceChanged, AggregateTypeProduct, productID),
		ProductID: productID,
		OldPrice:  oldPrice,
		NewPrice:  newPrice,
		ChangedBy: changedBy,
	}
}
