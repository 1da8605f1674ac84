package persistence

import (
	"context"

	"github.com/stickroom/ledger/internal/domain/shared"
	"github.com/stickroom/ledger/internal/domain/stock"
	"github.com/stickroom/ledger/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStockLogRepository implements stock.LogRepository using GORM
type GormStockLogRepository struct {
	db *gorm.DB
}

// NewGormStockLogRepository creates a new GormStockLogRepository
func NewGormStockLogRepository(db *gorm.DB) *GormStockLogRepository {
	return &GormStockLogRepository{db: db}
}

// Create appends a movement
func (r *GormStockLogRepository) Create(ctx context.Context, log *stock.Log) error {
	model := models.StockLogModelFromDomain(log)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	log.ID = model.ID
	return nil
}

// FindByProduct lists movements of a product, newest first by default
func (r *GormStockLogRepository) FindByProduct(ctx context.Context, productID int64, filter shared.Filter) ([]stock.Log, error) {
	var rows []models.StockLogModel
	query := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if op, ok := filter.Filters["operation_type"]; ok {
		query = query.Where("operation_type = ?", op)
	}
	query = stockLogSort.apply(query, filter)
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]stock.Log, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// CountByProduct counts movements of a product
func (r *GormStockLogRepository) CountByProduct(ctx context.Context, productID int64) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.StockLogModel{}).
		Where("product_id = ?", productID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// SumDeltasByProduct returns the signed movement total of every product
func (r *GormStockLogRepository) SumDeltasByProduct(ctx context.Context) (map[int64]int, error) {
	var rows []struct {
		ProductID int64
		Total     int
	}
	if err := r.db.WithContext(ctx).Model(&models.StockLogModel{}).
		Select("product_id, SUM(CASE WHEN operation_type = ? THEN -quantity ELSE quantity END) AS total", string(stock.OperationOut)).
		Group("product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]int, len(rows))
	for _, row := range rows {
		out[row.ProductID] = row.Total
	}
	return out, nil
}

// Ensure GormStockLogRepository implements LogRepository
var _ stock.LogRepository = (*GormStockLogRepository)(nil)
