package audit

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/shared"
)

// PriceHistory is an append-only record of one retail price change
type PriceHistory struct {
	ID        int64
	ProductID int64
	OldPrice  *decimal.Decimal
	NewPrice  decimal.Decimal
	ChangedBy int64
	ChangedAt time.Time
}

// NewPriceHistory records a change from oldPrice to newPrice
func NewPriceHistory(productID int64, oldPrice *decimal.Decimal, newPrice decimal.Decimal, changedBy int64) (*PriceHistory, error) {
	if productID <= 0 {
		return nil, shared.NewValidationError("Price history must reference a product")
	}
	if changedBy <= 0 {
		return nil, shared.NewValidationError("Price history must reference an agent")
	}
	if newPrice.IsNegative() {
		return nil, shared.NewValidationError("Retail price cannot be negative")
	}
	return &PriceHistory{
		ProductID: productID,
		OldPrice:  oldPrice,
		NewPrice:  newPrice,
		ChangedBy: changedBy,
		ChangedAt: time.Now(),
	}, nil
}
