package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/stickroom/ledger/internal/domain/catalog"
	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id int64) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate finds a product with SELECT ... FOR UPDATE.
// SQLite ignores the locking clause; its writers are serialised by the connection.
func (r *GormProductRepository) FindByIDForUpdate(ctx context.Context, id int64) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindByIDs finds multiple products by their IDs
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return []catalog.Product{}, nil
	}
	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return toProducts(rows), nil
}

// FindByEANInBatch finds the product with the given EAN inside a batch
func (r *GormProductRepository) FindByEANInBatch(ctx context.Context, batchID int64, ean string) (*catalog.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).
		First(&model, "batch_id = ? AND ean = ?", batchID, ean).Error; err != nil {
		return nil, translateNotFound(err)
	}
	return model.ToDomain(), nil
}

// FindAll lists products matching the filter
func (r *GormProductRepository) FindAll(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	var rows []models.ProductModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ProductModel{}), filter)
	query = productSort.apply(query, filter.Filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toProducts(rows), nil
}

// Count counts products matching the filter
func (r *GormProductRepository) Count(ctx context.Context, filter catalog.ProductFilter) (int64, error) {
	var count int64
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.ProductModel{}), filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Search matches the query against EAN, name and model, case-insensitively.
// Products in stock come first.
func (r *GormProductRepository) Search(ctx context.Context, query string, limit int) ([]catalog.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []catalog.Product{}, nil
	}
	like := "%" + strings.ToLower(query) + "%"

	var rows []models.ProductModel
	q := r.db.WithContext(ctx).
		Where("ean LIKE ? OR LOWER(name) LIKE ? OR LOWER(model) LIKE ?", "%"+query+"%", like, like).
		Order("CASE WHEN quantity > 0 THEN 0 ELSE 1 END").
		Order("name").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toProducts(rows), nil
}

// Create inserts a product
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	model := models.ProductModelFromDomain(product)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateUnique(err, shared.ErrDuplicateEANInBatch)
	}
	product.ID = model.ID
	return nil
}

// SaveRetailPrice persists a retail price change with optimistic locking
func (r *GormProductRepository) SaveRetailPrice(ctx context.Context, product *catalog.Product) error {
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("id = ? AND version = ?", product.ID, product.Version-1).
		Updates(map[string]any{
			"retail_price": product.RetailPrice,
			"updated_at":   product.UpdatedAt,
			"version":      product.Version,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// AdjustQuantity applies delta with a single conditional UPDATE and reads the new value back.
func (r *GormProductRepository) AdjustQuantity(ctx context.Context, id int64, delta int) (int, error) {
	db := r.db.WithContext(ctx)
	query := db.Model(&models.ProductModel{}).Where("id = ?", id)
	if delta < 0 {
		query = query.Where("quantity >= ?", -delta)
	}
	result := query.Updates(map[string]any{
		"quantity":   gorm.Expr("quantity + ?", delta),
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return 0, result.Error
	}

	var model models.ProductModel
	if err := db.Select("id", "quantity").First(&model, "id = ?", id).Error; err != nil {
		return 0, translateNotFound(err)
	}
	if result.RowsAffected == 0 {
		return model.Quantity, shared.ErrInsufficientStock
	}
	return model.Quantity, nil
}

// Quantities returns the quantity counter of every product keyed by ID
func (r *GormProductRepository) Quantities(ctx context.Context) (map[int64]int, error) {
	var rows []struct {
		ID       int64
		Quantity int
	}
	if err := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Select("id", "quantity").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]int, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Quantity
	}
	return out, nil
}

func (r *GormProductRepository) applyFilter(query *gorm.DB, filter catalog.ProductFilter) *gorm.DB {
	if filter.BatchID > 0 {
		query = query.Where("products.batch_id = ?", filter.BatchID)
	}
	if filter.EAN != "" {
		query = query.Where("products.ean = ?", filter.EAN)
	}
	if filter.InStockOnly {
		query = query.Where("products.quantity > 0")
	}
	if filter.Warehouse != "" {
		query = query.Joins("JOIN batches ON batches.id = products.batch_id").
			Where("batches.warehouse = ?", filter.Warehouse)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query = query.Where("LOWER(products.name) LIKE ? OR LOWER(products.model) LIKE ? OR products.ean LIKE ?",
			like, like, "%"+filter.Search+"%")
	}
	return query
}

func toProducts(rows []models.ProductModel) []catalog.Product {
	products := make([]catalog.Product, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain()
	}
	return products
}

// Ensure GormProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
