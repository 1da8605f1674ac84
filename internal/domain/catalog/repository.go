package catalog

import (
	"context"

	"github.com/stickroom/ledger/internal/domain/shared"
)

// BatchRepository defines the interface for batch persistence
type BatchRepository interface {
	// FindByID finds a batch by its ID
	FindByID(ctx context.Context, id int64) (*Batch, error)

	// FindByNumber finds a batch by its human-readable number
	FindByNumber(ctx context.Context, number string) (*Batch, error)

	// FindAll lists batches; Filters["warehouse"] narrows by warehouse
	FindAll(ctx context.Context, filter shared.Filter) ([]Batch, error)

	// Count counts batches matching the filter
	Count(ctx context.Context, filter shared.Filter) (int64, error)

	// ExistsByNumber checks whether a batch number is taken
	ExistsByNumber(ctx context.Context, number string) (bool, error)

	// Create inserts a batch; a taken number yields ErrDuplicateBatchNumber
	Create(ctx context.Context, batch *Batch) error

	// Warehouses returns the distinct warehouse labels used by batches
	Warehouses(ctx context.Context) ([]string, error)
}

// ProductFilter narrows product listings
type ProductFilter struct {
	shared.Filter
	BatchID     int64
	Warehouse   string
	EAN         string
	InStockOnly bool
}

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	// FindByID finds a product by its ID
	FindByID(ctx context.Context, id int64) (*Product, error)

	// FindByIDForUpdate finds a product and locks its row until the transaction ends
	FindByIDForUpdate(ctx context.Context, id int64) (*Product, error)

	// FindByIDs finds multiple products by their IDs
	FindByIDs(ctx context.Context, ids []int64) ([]Product, error)

	// FindByEANInBatch finds the product with the given EAN inside a batch
	FindByEANInBatch(ctx context.Context, batchID int64, ean string) (*Product, error)

	// FindAll lists products matching the filter
	FindAll(ctx context.Context, filter ProductFilter) ([]Product, error)

	// Count counts products matching the filter
	Count(ctx context.Context, filter ProductFilter) (int64, error)

	// Search matches the query against EAN, name and model
	Search(ctx context.Context, query string, limit int) ([]Product, error)

	// Create inserts a product; a taken (ean, batch) pair yields ErrDuplicateEANInBatch
	Create(ctx context.Context, product *Product) error

	// SaveRetailPrice persists a retail price change, checking the version
	SaveRetailPrice(ctx context.Context, product *Product) error

	// AdjustQuantity applies delta to the quantity counter and returns the new quantity.
	// A negative delta that would drop below zero yields ErrInsufficientStock and writes nothing.
	AdjustQuantity(ctx context.Context, id int64, delta int) (int, error)

	// Quantities returns the quantity counter of every product keyed by ID
	Quantities(ctx context.Context) (map[int64]int, error)
}
