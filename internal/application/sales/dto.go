package sales

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/application/bonus"
	"github.com/stickroom/ledger/internal/domain/sales"
)

// RecordSaleRequest is the input for recording a sale.
// An empty Warehouse defaults to the warehouse of the product's batch.
type RecordSaleRequest struct {
	ProductID int64           `json:"product_id" binding:"required,gt=0"`
	Quantity  int             `json:"quantity" binding:"required,gte=1"`
	SalePrice decimal.Decimal `json:"sale_price" binding:"required"`
	Warehouse string          `json:"warehouse" binding:"max=100"`
	AgentID   int64           `json:"-"`
}

// ReturnSaleRequest is the input for returning a sale
type ReturnSaleRequest struct {
	Reason  string `json:"reason" binding:"max=500"`
	ActorID int64  `json:"-"`
}

// SaleResponse represents a sale in API responses
type SaleResponse struct {
	ID            int64           `json:"id"`
	ProductID     int64           `json:"product_id"`
	AgentID       int64           `json:"agent_id"`
	Quantity      int             `json:"quantity"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	Amount        decimal.Decimal `json:"amount"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Margin        decimal.Decimal `json:"margin"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	Warehouse     string          `json:"warehouse"`
	IsReturn      bool            `json:"is_return"`
	ReturnReason  string          `json:"return_reason,omitempty"`
	ReturnedAt    *time.Time      `json:"returned_at,omitempty"`
	SaleDate      time.Time       `json:"sale_date"`
}

// ToSaleResponse converts a domain sale to a response
func ToSaleResponse(s *sales.Sale) SaleResponse {
	return SaleResponse{
		ID:            s.ID,
		ProductID:     s.ProductID,
		AgentID:       s.AgentID,
		Quantity:      s.Quantity,
		SalePrice:     s.SalePrice,
		Amount:        s.Amount(),
		UnitCost:      s.UnitCost,
		Margin:        s.Margin,
		MarginPercent: s.MarginPercent,
		Warehouse:     s.Warehouse,
		IsReturn:      s.IsReturn,
		ReturnReason:  s.ReturnReason,
		ReturnedAt:    s.ReturnedAt,
		SaleDate:      s.SaleDate,
	}
}

// SaleReceipt is the outcome of RecordSale. A bonus failure never invalidates the sale;
// it is reported in BonusError instead.
type SaleReceipt struct {
	Sale          SaleResponse         `json:"sale"`
	StockBalance  int                  `json:"stock_balance"`
	Bonus         *bonus.BonusResponse `json:"bonus,omitempty"`
	BonusError    string               `json:"bonus_error,omitempty"`
	BonusErrorMsg string               `json:"bonus_error_message,omitempty"`
}

// ReturnReceipt is the outcome of ReturnSale
type ReturnReceipt struct {
	Sale         SaleResponse         `json:"sale"`
	StockBalance int                  `json:"stock_balance"`
	VoidedBonus  *bonus.BonusResponse `json:"voided_bonus,omitempty"`
}

// SaleQuery narrows sale listings
type SaleQuery struct {
	AgentID        int64
	ProductID      int64
	Warehouse      string
	From           time.Time
	To             time.Time
	IncludeReturns bool
	Page           int
	PageSize       int
}
