package sales

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stickroom/ledger/internal/domain/shared"
)

// SaleFilter narrows sale listings
type SaleFilter struct {
	shared.Filter
	AgentID        int64
	ProductID      int64
	Warehouse      string
	Period         shared.DateRange
	IncludeReturns bool
}

// PendingQuery pages through sales still waiting for a bonus, by ascending id
type PendingQuery struct {
	AfterID int64
	Limit   int
}

// SaleRepository defines the interface for sale persistence
type SaleRepository interface {
	// FindByID finds a sale by its ID
	FindByID(ctx context.Context, id int64) (*Sale, error)

	// FindByIDForUpdate finds a sale and locks its row until the transaction ends
	FindByIDForUpdate(ctx context.Context, id int64) (*Sale, error)

	// Create inserts a sale
	Create(ctx context.Context, sale *Sale) error

	// SaveReturn persists the return flag, reason and time
	SaveReturn(ctx context.Context, sale *Sale) error

	// FindAll lists sales newest first. PageSize 0 returns every match.
	FindAll(ctx context.Context, filter SaleFilter) ([]Sale, error)

	// Count counts sales matching the filter
	Count(ctx context.Context, filter SaleFilter) (int64, error)

	// LastSalePrice returns the price of the latest non-returned sale of a product, or nil
	LastSalePrice(ctx context.Context, productID int64) (*decimal.Decimal, error)

	// FindWithoutBonus lists non-returned sales with id > AfterID that have no bonus
	// row. A sale already logged as bonus_unassigned is left out until a bonus rule
	// changes after that log.
	FindWithoutBonus(ctx context.Context, query PendingQuery) ([]Sale, error)
}
