package stock

import (
	"context"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// LogRepository is the append-only store of stock movements
type LogRepository interface {
	// Create appends a movement
	Create(ctx context.Context, log *Log) error

	// FindByProduct lists movements of a product, newest first
	FindByProduct(ctx context.Context, productID int64, filter shared.Filter) ([]Log, error)

	// CountByProduct counts movements of a product
	CountByProduct(ctx context.Context, productID int64) (int64, error)

	// SumDeltasByProduct returns the signed movement total of every product
	SumDeltasByProduct(ctx context.Context) (map[int64]int, error)
}
