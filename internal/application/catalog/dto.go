package catalog

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/catalog"
)

// CreateBatchRequest is the input for creating a batch.
// An empty BatchNumber is generated from the receiving time.
type CreateBatchRequest struct {
	BatchNumber string    `json:"batch_number" binding:"max=50"`
	Warehouse   string    `json:"warehouse" binding:"required,max=100"`
	ReceivedAt  time.Time `json:"received_at"`
	ActorID     int64     `json:"-"`
}

// BatchResponse represents a batch in API responses
type BatchResponse struct {
	ID           int64     `json:"id"`
	BatchNumber  string    `json:"batch_number"`
	Warehouse    string    `json:"warehouse"`
	ReceivedAt   time.Time `json:"received_at"`
	CreatedBy    int64     `json:"created_by"`
	ProductCount int64     `json:"product_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// ToBatchResponse converts a domain batch to a response
func ToBatchResponse(b *catalog.Batch) BatchResponse {
	return BatchResponse{
		ID:          b.ID,
		BatchNumber: b.BatchNumber,
		Warehouse:   b.Warehouse,
		ReceivedAt:  b.ReceivedAt,
		CreatedBy:   b.CreatedBy,
		CreatedAt:   b.CreatedAt,
	}
}

// AddProductRequest is the input for adding a product to a batch.
// A nil Coefficient uses the configured default.
type AddProductRequest struct {
	EAN            string           `json:"ean" binding:"required,max=13,numeric"`
	Name           string           `json:"name" binding:"required,max=200"`
	Model          string           `json:"model" binding:"max=100"`
	Color          string           `json:"color" binding:"max=50"`
	Size           string           `json:"size" binding:"max=10"`
	Age            string           `json:"age" binding:"max=10"`
	Fit            string           `json:"fit" binding:"omitempty,oneof=regular tapered wide"`
	Weight         decimal.Decimal  `json:"weight" binding:"required"`
	Quantity       int              `json:"quantity" binding:"gte=0"`
	PriceEUR       decimal.Decimal  `json:"price_eur"`
	ExchangeRate   decimal.Decimal  `json:"exchange_rate" binding:"required"`
	Coefficient    *decimal.Decimal `json:"coefficient"`
	LogisticsPerKg decimal.Decimal  `json:"logistics_per_kg"`
	RetailPrice    *decimal.Decimal `json:"retail_price"`
	ActorID        int64            `json:"-"`
}

// ReceiveStockRequest is the input for receiving more units of an existing EAN
type ReceiveStockRequest struct {
	Quantity int   `json:"quantity" binding:"required,gte=1"`
	ActorID  int64 `json:"-"`
}

// UpdateRetailPriceRequest is the input for changing a retail price
type UpdateRetailPriceRequest struct {
	RetailPrice decimal.Decimal `json:"retail_price" binding:"required"`
	ActorID     int64           `json:"-"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID             int64            `json:"id"`
	BatchID        int64            `json:"batch_id"`
	EAN            string           `json:"ean"`
	Name           string           `json:"name"`
	Model          string           `json:"model,omitempty"`
	Color          string           `json:"color,omitempty"`
	Size           string           `json:"size,omitempty"`
	Age            string           `json:"age,omitempty"`
	Fit            string           `json:"fit,omitempty"`
	Weight         decimal.Decimal  `json:"weight"`
	Quantity       int              `json:"quantity"`
	PriceEUR       decimal.Decimal  `json:"price_eur"`
	ExchangeRate   decimal.Decimal  `json:"exchange_rate"`
	Coefficient    decimal.Decimal  `json:"coefficient"`
	LogisticsPerKg decimal.Decimal  `json:"logistics_per_kg"`
	CostPrice      decimal.Decimal  `json:"cost_price"`
	RetailPrice    *decimal.Decimal `json:"retail_price,omitempty"`
	Margin         decimal.Decimal  `json:"margin"`
	MarginPercent  decimal.Decimal  `json:"margin_percent"`
	Version        int              `json:"version"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// ToProductResponse converts a domain product to a response
func ToProductResponse(p *catalog.Product) ProductResponse {
	margin, percent := p.Margin()
	return ProductResponse{
		ID:             p.ID,
		BatchID:        p.BatchID,
		EAN:            p.EAN,
		Name:           p.Name,
		Model:          p.Model,
		Color:          p.Color,
		Size:           p.Size,
		Age:            p.Age,
		Fit:            string(p.Fit),
		Weight:         p.Weight,
		Quantity:       p.Quantity,
		PriceEUR:       p.PriceEUR,
		ExchangeRate:   p.ExchangeRate,
		Coefficient:    p.Coefficient,
		LogisticsPerKg: p.LogisticsPerKg,
		CostPrice:      p.CostPrice,
		RetailPrice:    p.RetailPrice,
		Margin:         margin,
		MarginPercent:  percent,
		Version:        p.Version,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// ToProductResponses converts a slice of products
func ToProductResponses(products []catalog.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i := range products {
		out[i] = ToProductResponse(&products[i])
	}
	return out
}

// ProductQuery narrows product listings
type ProductQuery struct {
	BatchID     int64
	Warehouse   string
	EAN         string
	Search      string
	InStockOnly bool
	OrderBy     string
	OrderDir    string
	Page        int
	PageSize    int
}

// BatchQuery narrows batch listings
type BatchQuery struct {
	Warehouse string
	Search    string
	Page      int
	PageSize  int
}

// PriceMode selects how a bulk price update computes new prices
type PriceMode string

const (
	// PriceModeFixed sets every product to Value
	PriceModeFixed PriceMode = "fixed"
	// PriceModeMarkup sets every product to cost * (1 + Value/100)
	PriceModeMarkup PriceMode = "markup"
)

// BulkPriceRequest is the input for previewing or applying a bulk price update
type BulkPriceRequest struct {
	ProductIDs []int64         `json:"product_ids" binding:"required,min=1,max=1000"`
	Mode       PriceMode       `json:"mode" binding:"required,oneof=fixed markup"`
	Value      decimal.Decimal `json:"value"`
	ActorID    int64           `json:"-"`
}

// BulkPriceRow is one line of a bulk price preview
type BulkPriceRow struct {
	ProductID     int64            `json:"product_id"`
	EAN           string           `json:"ean"`
	Name          string           `json:"name"`
	CostPrice     decimal.Decimal  `json:"cost_price"`
	OldPrice      *decimal.Decimal `json:"old_price,omitempty"`
	NewPrice      decimal.Decimal  `json:"new_price"`
	ChangePercent decimal.Decimal  `json:"change_percent"`
	Changed       bool             `json:"changed"`
}

// BulkPriceResult summarises an applied bulk price update
type BulkPriceResult struct {
	Rows    []BulkPriceRow `json:"rows"`
	Updated int            `json:"updated"`
}
