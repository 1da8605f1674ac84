package sales

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/pricing"
	"github.com/stickroom/ledger/internal/domain/shared"
)

const maxReturnReasonLength = 500

// Sale is one transaction of N units of a product by an agent.
// Economics are frozen at sale time; a sale is never deleted, only flagged as returned.
type Sale struct {
	shared.BaseAggregateRoot
	ProductID     int64
	AgentID       int64
	Quantity      int
	SalePrice     decimal.Decimal // per unit
	UnitCost      decimal.Decimal // cost price snapshot
	Margin        decimal.Decimal // total margin of the sale line
	MarginPercent decimal.Decimal
	Warehouse     string
	IsReturn      bool
	ReturnReason  string
	ReturnedAt    *time.Time
	SaleDate      time.Time
}

// NewSale creates a sale priced with the given snapshot
func NewSale(productID, agentID int64, quantity int, salePrice decimal.Decimal, unitCost decimal.Decimal, warehouse string, at time.Time) (*Sale, error) {
	if productID <= 0 {
		return nil, shared.NewValidationError("Sale must reference a product")
	}
	if agentID <= 0 {
		return nil, shared.NewValidationError("Sale must reference an agent")
	}
	if quantity < 1 {
		return nil, shared.NewValidationError("Quantity must be at least 1")
	}
	if salePrice.IsNegative() {
		return nil, shared.NewValidationError("Sale price cannot be negative")
	}
	if at.IsZero() {
		at = time.Now()
	}

	salePrice = salePrice.Round(pricing.Places)
	snap := pricing.Snapshot(unitCost, salePrice, quantity)
	sale := &Sale{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		ProductID:         productID,
		AgentID:           agentID,
		Quantity:          quantity,
		SalePrice:         salePrice,
		UnitCost:          snap.UnitCost,
		Margin:            snap.Margin,
		MarginPercent:     snap.MarginPercent,
		Warehouse:         strings.TrimSpace(warehouse),
		SaleDate:          at,
	}
	sale.CreatedAt = at
	return sale, nil
}

// Amount returns sale price times quantity, the basis for bonus tiers
func (s *Sale) Amount() decimal.Decimal {
	return s.SalePrice.Mul(decimal.NewFromInt(int64(s.Quantity))).Round(pricing.Places)
}

// MarkReturned flags the sale as returned. A sale can be returned only once.
func (s *Sale) MarkReturned(reason string, at time.Time) error {
	if s.IsReturn {
		return shared.ErrAlreadyReturned
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReturnReasonLength {
		return shared.NewValidationError("Return reason cannot exceed 500 characters")
	}
	if at.IsZero() {
		at = time.Now()
	}
	s.IsReturn = true
	s.ReturnReason = reason
	s.ReturnedAt = &at
	s.UpdatedAt = at
	s.IncrementVersion()
	s.AddDomainEvent(NewSaleReturnedEvent(s))
	return nil
}

// RecordCreated queues the SaleRecorded event once the sale has an ID
func (s *Sale) RecordCreated() {
	s.AddDomainEvent(NewSaleRecordedEvent(s))
}
